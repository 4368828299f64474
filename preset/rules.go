package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/lixenwraith/killsound/constant"
)

// Rules is the declarative selector read from info.json or info.toml
type Rules struct {
	HasVariant        bool
	HasVoice          bool
	HasCommon         bool
	HasHeadshot       bool
	HasCommonHeadshot bool
	Start             uint
	End               uint
}

// descriptorFile mirrors the on-disk keys; pointers detect missing fields
type descriptorFile struct {
	HasVariant        *bool `json:"has_variant" toml:"has_variant"`
	HasVoice          *bool `json:"has_voice" toml:"has_voice"`
	HasCommon         *bool `json:"has_common" toml:"has_common"`
	HasHeadshot       *bool `json:"has_headshot" toml:"has_headshot"`
	HasCommonHeadshot *bool `json:"has_common_headshot" toml:"has_common_headshot"`
	Start             *uint `json:"start" toml:"start"`
	End               *uint `json:"end" toml:"end"`
}

func (Rules) selector() {}

// Kind implements Selector
func (Rules) Kind() string { return "declarative" }

// Select implements Selector
func (r Rules) Select(ctx SelectContext) ([]string, error) {
	ev := ctx.Event

	n := ev.KillCount
	if n > r.End {
		n = r.End
	}

	dir := ctx.MasterDir
	if r.HasVariant && ctx.Variant != "" {
		dir = ctx.Dir
	}
	asset := func(name string) string {
		return filepath.Join(dir, name+constant.AssetExtension)
	}

	firstHeadshot := ev.IsHeadshot && ev.IsFirstKill
	headshotVoice := r.HasHeadshot && !ctx.NoVoice && firstHeadshot

	var paths []string
	switch {
	case r.HasCommonHeadshot && firstHeadshot:
		paths = append(paths, asset(constant.AssetCommonHS))
	case r.HasCommon && !headshotVoice:
		// The headshot callout replaces the common clip
		paths = append(paths, asset(constant.AssetCommon))
	}

	if headshotVoice {
		paths = append(paths, asset(constant.AssetHeadshot))
	}

	voice := r.HasVoice && !ctx.NoVoice && (n >= r.Start || !r.HasHeadshot) && n <= r.End
	if voice || !r.HasCommon {
		paths = append(paths, asset(strconv.FormatUint(uint64(n), 10)))
	}

	return paths, nil
}

// loadRules reads a descriptor; the decoder is chosen by extension
func loadRules(path string) (Rules, error) {
	var f descriptorFile
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return Rules{}, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, path, err)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return Rules{}, fmt.Errorf("read descriptor: %w", err)
		}
		if err := json.Unmarshal(data, &f); err != nil {
			return Rules{}, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, path, err)
		}
	}
	return f.rules(path)
}

func (f descriptorFile) rules(path string) (Rules, error) {
	required := []struct {
		key   string
		isSet bool
	}{
		{"has_variant", f.HasVariant != nil},
		{"has_voice", f.HasVoice != nil},
		{"has_common", f.HasCommon != nil},
		{"has_headshot", f.HasHeadshot != nil},
		{"has_common_headshot", f.HasCommonHeadshot != nil},
		{"start", f.Start != nil},
		{"end", f.End != nil},
	}
	for _, r := range required {
		if !r.isSet {
			return Rules{}, fmt.Errorf("%w: %s: missing %q", ErrInvalidDescriptor, path, r.key)
		}
	}

	r := Rules{
		HasVariant:        *f.HasVariant,
		HasVoice:          *f.HasVoice,
		HasCommon:         *f.HasCommon,
		HasHeadshot:       *f.HasHeadshot,
		HasCommonHeadshot: *f.HasCommonHeadshot,
		Start:             *f.Start,
		End:               *f.End,
	}
	if r.End < 1 {
		return Rules{}, fmt.Errorf("%w: %s: end must be at least 1", ErrInvalidDescriptor, path)
	}
	if r.Start > r.End {
		return Rules{}, fmt.Errorf("%w: %s: start %d exceeds end %d", ErrInvalidDescriptor, path, r.Start, r.End)
	}
	return r, nil
}
