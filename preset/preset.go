// Package preset loads soundpacks and maps highlight events onto the clips
// they declare, either through declarative rules or a scripted selector.
package preset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/state"
)

// Sentinel errors
var (
	ErrNotFound          = errors.New("preset not found")
	ErrInvalidDescriptor = errors.New("invalid preset descriptor")
	ErrNoEntryPoint      = errors.New("script entry point not defined")
)

var tracer = otel.Tracer("github.com/lixenwraith/killsound/preset")

// Selector maps one event onto ordered asset paths.
// Implemented by Rules, *LuaScript and *JSScript only.
type Selector interface {
	Select(ctx SelectContext) ([]string, error)
	Kind() string
	selector()
}

// scriptPaths anchors relative script results at the preset directory
func scriptPaths(dir string, paths []string) []string {
	for i, p := range paths {
		if !filepath.IsAbs(p) {
			paths[i] = filepath.Join(dir, p)
		}
	}
	return paths
}

// SelectContext is the read-only input of one selection
type SelectContext struct {
	Event     state.HighlightEvent
	Master    string
	Variant   string
	Dir       string // directory the preset was loaded from
	MasterDir string
	NoVoice   bool
}

// Name returns the qualified preset name
func (c SelectContext) Name() string {
	return QualifiedName(c.Master, c.Variant)
}

// Options are run-wide resolution switches
type Options struct {
	NoVoice bool
}

// Preset is an immutable, loaded soundpack
type Preset struct {
	Master    string
	Variant   string
	Dir       string
	MasterDir string
	Selector  Selector
}

// Load reads the preset name (optionally with variant) under root.
// A script entry takes precedence over a declarative descriptor.
func Load(root, name, variant string) (*Preset, error) {
	master, embedded := ParseName(name)
	if master == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	if embedded != "" {
		if variant != "" && variant != embedded {
			return nil, fmt.Errorf("conflicting variants %q and %q", embedded, variant)
		}
		variant = embedded
	}

	p := &Preset{
		Master:    master,
		Variant:   variant,
		Dir:       filepath.Join(root, QualifiedName(master, variant)),
		MasterDir: filepath.Join(root, master),
	}

	info, err := os.Stat(p.Dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p.Dir)
	}

	sel, err := loadSelector(p.Dir)
	if err != nil {
		return nil, err
	}
	p.Selector = sel
	return p, nil
}

func loadSelector(dir string) (Selector, error) {
	candidates := []struct {
		file string
		load func(string) (Selector, error)
	}{
		{constant.ScriptLua, func(path string) (Selector, error) { return LoadLua(path) }},
		{constant.ScriptJS, func(path string) (Selector, error) { return LoadJS(path) }},
		{constant.DescriptorJSON, func(path string) (Selector, error) { return loadRules(path) }},
		{constant.DescriptorTOML, func(path string) (Selector, error) { return loadRules(path) }},
	}

	for _, c := range candidates {
		path := filepath.Join(dir, c.file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return c.load(path)
	}
	return nil, fmt.Errorf("%w: no descriptor or script in %s", ErrInvalidDescriptor, dir)
}

// Name returns the qualified preset name
func (p *Preset) Name() string {
	return QualifiedName(p.Master, p.Variant)
}

// Resolve maps ev onto ordered asset paths
func (p *Preset) Resolve(ctx context.Context, ev state.HighlightEvent, opts Options) ([]string, error) {
	_, span := tracer.Start(ctx, "preset.resolve", trace.WithAttributes(
		attribute.String("preset.name", p.Name()),
		attribute.String("preset.selector", p.Selector.Kind()),
		attribute.Int("event.kill_count", int(ev.KillCount)),
		attribute.Bool("event.headshot", ev.IsHeadshot),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", p.Name(), err)
	}
	paths, err := p.Selector.Select(SelectContext{
		Event:     ev,
		Master:    p.Master,
		Variant:   p.Variant,
		Dir:       p.Dir,
		MasterDir: p.MasterDir,
		NoVoice:   opts.NoVoice,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, fmt.Errorf("resolve %s: %w", p.Name(), err)
	}

	span.SetAttributes(attribute.Int("preset.assets", len(paths)))
	return paths, nil
}
