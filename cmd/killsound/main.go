package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/killsound/audio"
	"github.com/lixenwraith/killsound/config"
	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/gsi"
	"github.com/lixenwraith/killsound/preset"
	"github.com/lixenwraith/killsound/service"
	"github.com/lixenwraith/killsound/state"
	"github.com/lixenwraith/killsound/status"
	"github.com/lixenwraith/killsound/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("killsound: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		stop()
		config.Exitf("killsound: %v", err)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "killsound",
		Short:         "Play kill sounds from game-state updates",
		Long:          `Listens for game-state updates and plays the clips of a sound preset on every new kill.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case cfg.ListDevices:
				return listDevices(cmd.OutOrStdout())
			case cfg.ListPresets:
				return listPresets(cmd.OutOrStdout(), cfg.Sounds)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(cmd.Flags())
	return cmd
}

// run wires the services and blocks until ctx ends or a service fails
func run(ctx context.Context, cfg *config.Config) error {
	flags := log.LstdFlags
	if cfg.Debug {
		flags |= log.Lmicroseconds
	}
	presetLog := log.New(os.Stdout, "[PRESET] ", flags)
	audioLog := log.New(os.Stdout, "[AUDIO] ", flags)
	gsiLog := log.New(os.Stdout, "[GSI] ", flags)

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constant.ShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	p, err := preset.Load(cfg.Sounds, cfg.Preset, cfg.Variant)
	if err != nil {
		return fmt.Errorf("failed to load preset '%s': %w", cfg.PresetName(), err)
	}
	presetLog.Printf("preset '%s' loaded successfully (%s)", p.Name(), p.Selector.Kind())
	variant := p.Variant
	if variant == "" {
		variant = "none"
	}
	presetLog.Printf("variant: %s", variant)

	reg := status.NewRegistry()
	reg.SetLabel("preset", p.Name())
	reg.SetLabel("preset.selector", p.Selector.Kind())

	devices := audio.NewDeviceService(cfg.Device, audioLog, reg)
	playback := audio.NewPipelineService(devices, audioLog, cfg.MaxJobs, reg)

	handler := gsi.NewHandler(gsi.HandlerConfig{
		Tracker:  state.NewTracker(cfg.SteamID),
		Resolver: p,
		Player:   playback,
		Options:  preset.Options{NoVoice: cfg.NoVoice},
		Volume:   cfg.Volume,
		Token:    cfg.Token,
		Logger:   gsiLog,
		Status:   reg,
		Debug:    cfg.Debug,
	})
	server := gsi.NewServer(gsi.ServerConfig{
		Addr:           cfg.Addr,
		RequestTimeout: cfg.Timeout,
		Logger:         gsiLog,
		Status:         reg,
	}, handler)

	hub := service.NewHub()
	for _, svc := range []service.Service{devices, playback, server} {
		if err := hub.Register(svc); err != nil {
			return err
		}
	}

	return hub.Run(ctx)
}
