package preset

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/lixenwraith/killsound/constant"
)

// jsBlockedGlobals are removed before the script runs
var jsBlockedGlobals = []string{"require", "eval", "Function", "fetch", "XMLHttpRequest"}

// JSScript is a loaded JavaScript selector backed by its own goja runtime
type JSScript struct {
	mu      sync.Mutex
	runtime *goja.Runtime
	fn      goja.Callable
	path    string
	timeout time.Duration
}

// LoadJS evaluates the script at path and checks its entry point
func LoadJS(path string) (*JSScript, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	rt := goja.New()
	for _, name := range jsBlockedGlobals {
		rt.Set(name, goja.Undefined())
	}

	s := &JSScript{runtime: rt, path: path, timeout: constant.ScriptCallTimeout}
	err = s.withDeadline(func() error {
		_, err := rt.RunScript(path, string(src))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("run js %s: %w", path, err)
	}

	fn, ok := goja.AssertFunction(rt.Get(constant.ScriptEntryPoint))
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoEntryPoint, constant.ScriptEntryPoint, path)
	}
	s.fn = fn
	return s, nil
}

func (*JSScript) selector() {}

// Kind implements Selector
func (*JSScript) Kind() string { return "js" }

// Select implements Selector
func (s *JSScript) Select(ctx SelectContext) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result goja.Value
	err := s.withDeadline(func() error {
		var err error
		result, err = s.fn(goja.Undefined(), s.runtime.ToValue(jsContext(ctx)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s in %s: %w", constant.ScriptEntryPoint, s.path, err)
	}

	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	obj, ok := result.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, fmt.Errorf("%s in %s must return an array or null", constant.ScriptEntryPoint, s.path)
	}

	var paths []string
	if err := s.runtime.ExportTo(result, &paths); err != nil {
		return nil, fmt.Errorf("%s in %s: %w", constant.ScriptEntryPoint, s.path, err)
	}
	return scriptPaths(ctx.Dir, paths), nil
}

// withDeadline interrupts the runtime if fn outlives the call timeout
func (s *JSScript) withDeadline(fn func() error) error {
	defer s.runtime.ClearInterrupt()
	timer := time.AfterFunc(s.timeout, func() {
		s.runtime.Interrupt("script timeout")
	})
	defer timer.Stop()
	return fn()
}

func jsContext(ctx SelectContext) map[string]any {
	var variant any
	if ctx.Variant != "" {
		variant = ctx.Variant
	}
	return map[string]any{
		"kill_count":    int(ctx.Event.KillCount),
		"is_headshot":   ctx.Event.IsHeadshot,
		"is_first_kill": ctx.Event.IsFirstKill,
		"no_voice":      ctx.NoVoice,
		"master_name":   ctx.Master,
		"preset_name":   ctx.Name(),
		"preset_dir":    ctx.Dir,
		"variant":       variant,
	}
}
