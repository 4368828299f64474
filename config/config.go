package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/preset"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "KILLSOUND_"

// Config holds runtime settings. Environment supplies defaults; flags override.
type Config struct {
	Preset  string  `env:"PRESET" envDefault:"crossfire"`
	Variant string  `env:"VARIANT"`
	Device  string  `env:"DEVICE" envDefault:"default"`
	SteamID string  `env:"STEAMID"`
	Volume  float64 `env:"VOLUME" envDefault:"1.0"`
	NoVoice bool    `env:"NO_VOICE"`
	Sounds  string  `env:"SOUNDS" envDefault:"sounds"`

	Addr    string        `env:"ADDR" envDefault:"127.0.0.1:3000"`
	Token   string        `env:"TOKEN"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	MaxJobs int           `env:"MAX_JOBS" envDefault:"16"`

	Debug        bool   `env:"DEBUG"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	// Flag-only actions
	ListDevices bool
	ListPresets bool
}

// ParseEnv loads configuration from KILLSOUND_ environment variables
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns a Config populated from the environment
func Load() (*Config, error) {
	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags registers command-line flags using the current values as defaults
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Preset, "preset", "p", c.Preset, "sound preset to use")
	fs.StringVar(&c.Variant, "variant", c.Variant, "preset variant (e.g. women for crossfire_v_women)")
	fs.StringVarP(&c.Device, "device", "d", c.Device, "audio output device")
	fs.StringVar(&c.SteamID, "steamid", c.SteamID, "play sounds only for this steamid")
	fs.Float64VarP(&c.Volume, "volume", "v", c.Volume, "playback volume (1.0 is unchanged)")
	fs.BoolVarP(&c.NoVoice, "no-voice", "n", c.NoVoice, "disable numbered voice clips")
	fs.StringVar(&c.Sounds, "sounds", c.Sounds, "directory containing presets")

	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address for game-state updates")
	fs.StringVar(&c.Token, "token", c.Token, "auth token expected in updates")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "request timeout")
	fs.IntVar(&c.MaxJobs, "max-jobs", c.MaxJobs, "maximum concurrent playback jobs")

	fs.BoolVar(&c.Debug, "debug", c.Debug, "log every update")

	fs.BoolVarP(&c.ListDevices, "list-devices", "l", false, "list output devices and exit")
	fs.BoolVarP(&c.ListPresets, "list-presets", "L", false, "list presets and exit")
}

// Validate checks values that would fail later at runtime
func (c *Config) Validate() error {
	var errs []error

	c.Preset = strings.TrimSpace(c.Preset)
	if c.Preset == "" {
		errs = append(errs, errors.New("preset name is required"))
	} else if master, variant := preset.ParseName(c.Preset); master == "" || (variant != "" && c.Variant != "" && variant != c.Variant) {
		errs = append(errs, fmt.Errorf("invalid preset name %q", c.Preset))
	}
	if c.Volume < 0 {
		errs = append(errs, fmt.Errorf("volume must not be negative, got %g", c.Volume))
	}
	if c.MaxJobs <= 0 {
		errs = append(errs, fmt.Errorf("max jobs must be positive, got %d", c.MaxJobs))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Sounds == "" {
		c.Sounds = constant.DefaultSoundsDir
	}

	return errors.Join(errs...)
}

// PresetName returns the qualified preset name including the variant
func (c *Config) PresetName() string {
	master, variant := preset.ParseName(c.Preset)
	if variant == "" {
		variant = c.Variant
	}
	return preset.QualifiedName(master, variant)
}
