package preset

import (
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/lixenwraith/killsound/constant"
)

// sandboxLibraries excludes io, os, package and debug
var sandboxLibraries = []lua.RegistryFunction{
	{Name: "_G", Function: lua.BaseOpen},
	{Name: "string", Function: lua.StringOpen},
	{Name: "table", Function: lua.TableOpen},
	{Name: "math", Function: lua.MathOpen},
	{Name: "bit32", Function: lua.Bit32Open},
}

// blockedGlobals are base functions that reach the filesystem
var blockedGlobals = []string{"dofile", "loadfile"}

// luaHookInterval is the instruction count between deadline checks
const luaHookInterval = 1000

// LuaScript is a loaded Lua selector.
// The Lua state is not safe for concurrent use; Select serializes calls.
type LuaScript struct {
	mu      sync.Mutex
	state   *lua.State
	path    string
	timeout time.Duration
}

// LoadLua evaluates the script at path and checks its entry point
func LoadLua(path string) (*LuaScript, error) {
	l := lua.NewState()
	for _, lib := range sandboxLibraries {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}
	for _, name := range blockedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}

	s := &LuaScript{state: l, path: path, timeout: constant.ScriptCallTimeout}
	if err := lua.LoadFile(l, path, ""); err != nil {
		return nil, fmt.Errorf("load lua %s: %w", path, err)
	}
	if err := s.call(0, 0); err != nil {
		return nil, fmt.Errorf("run lua %s: %w", path, err)
	}

	l.Global(constant.ScriptEntryPoint)
	ok := l.IsFunction(-1)
	l.Pop(1)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoEntryPoint, constant.ScriptEntryPoint, path)
	}

	return s, nil
}

// call runs a protected call that errors once the script outlives its timeout
func (s *LuaScript) call(args, results int) error {
	deadline := time.Now().Add(s.timeout)
	lua.SetDebugHook(s.state, func(l *lua.State, _ lua.Debug) {
		if time.Now().After(deadline) {
			lua.Errorf(l, "script timeout")
		}
	}, lua.MaskCount, luaHookInterval)
	defer lua.SetDebugHook(s.state, nil, 0, 0)
	return s.state.ProtectedCall(args, results, 0)
}

func (*LuaScript) selector() {}

// Kind implements Selector
func (*LuaScript) Kind() string { return "lua" }

// Select implements Selector
func (s *LuaScript) Select(ctx SelectContext) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.state
	defer l.SetTop(0)

	l.Global(constant.ScriptEntryPoint)
	pushLuaContext(l, ctx)
	if err := s.call(1, 1); err != nil {
		return nil, fmt.Errorf("call %s in %s: %w", constant.ScriptEntryPoint, s.path, err)
	}

	switch l.TypeOf(-1) {
	case lua.TypeNil:
		return nil, nil
	case lua.TypeTable:
	default:
		return nil, fmt.Errorf("%s in %s must return a table or nil", constant.ScriptEntryPoint, s.path)
	}

	n := lua.LengthEx(l, -1)
	paths := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(-1, i)
		p, ok := l.ToString(-1)
		l.Pop(1)
		if !ok {
			return nil, fmt.Errorf("%s in %s: entry %d is not a string", constant.ScriptEntryPoint, s.path, i)
		}
		paths = append(paths, p)
	}
	return scriptPaths(ctx.Dir, paths), nil
}

func pushLuaContext(l *lua.State, ctx SelectContext) {
	l.NewTable()

	l.PushInteger(int(ctx.Event.KillCount))
	l.SetField(-2, "kill_count")
	l.PushBoolean(ctx.Event.IsHeadshot)
	l.SetField(-2, "is_headshot")
	l.PushBoolean(ctx.Event.IsFirstKill)
	l.SetField(-2, "is_first_kill")
	l.PushBoolean(ctx.NoVoice)
	l.SetField(-2, "no_voice")
	l.PushString(ctx.Master)
	l.SetField(-2, "master_name")
	l.PushString(ctx.Name())
	l.SetField(-2, "preset_name")
	l.PushString(ctx.Dir)
	l.SetField(-2, "preset_dir")
	if ctx.Variant != "" {
		l.PushString(ctx.Variant)
		l.SetField(-2, "variant")
	}
}
