package preset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/state"
)

const crossfireJSON = `{
	"has_variant": true,
	"has_voice": true,
	"has_common": true,
	"has_headshot": true,
	"has_common_headshot": false,
	"start": 2,
	"end": 8
}`

const bf1TOML = `
has_variant = false
has_voice = true
has_common = false
has_headshot = false
has_common_headshot = false
start = 1
end = 5
`

const selectorLua = `
function get_sounds(ctx)
	if ctx.kill_count == 0 then
		return nil
	end
	local out = {}
	if ctx.is_headshot then
		table.insert(out, "headshot.wav")
	end
	table.insert(out, tostring(math.min(ctx.kill_count, 3)) .. ".wav")
	if ctx.variant ~= nil then
		table.insert(out, ctx.variant .. ".wav")
	end
	return out
end
`

const selectorJS = `
function get_sounds(ctx) {
	if (ctx.kill_count === 0) {
		return null;
	}
	var out = [];
	if (ctx.is_first_kill) {
		out.push("first.wav");
	}
	out.push(Math.min(ctx.kill_count, 4) + ".wav");
	out.push(ctx.preset_name + ".wav");
	return out;
}
`

func writePreset(t *testing.T, root, dir string, files map[string]string) {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(full, name), []byte(content), 0o644))
	}
}

func TestParseName(t *testing.T) {
	master, variant := ParseName("crossfire_v_women")
	assert.Equal(t, "crossfire", master)
	assert.Equal(t, "women", variant)

	master, variant = ParseName("valorant")
	assert.Equal(t, "valorant", master)
	assert.Empty(t, variant)

	assert.Equal(t, "crossfire_v_women", QualifiedName("crossfire", "women"))
	assert.Equal(t, "crossfire", QualifiedName("crossfire", ""))
}

func TestList(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"valorant", "crossfire_v_women", "crossfire", "crossfire_v_hero", "bf1"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), nil, 0o644))

	entries, err := List(root)
	require.NoError(t, err)

	var lines []string
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	assert.Equal(t, []string{"bf1", "crossfire: [hero, women]", "valorant"}, lines)
}

func TestLoad_Declarative(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "crossfire", map[string]string{"info.json": crossfireJSON})
	writePreset(t, root, "bf1", map[string]string{"info.toml": bf1TOML})

	p, err := Load(root, "crossfire", "")
	require.NoError(t, err)
	assert.Equal(t, "declarative", p.Selector.Kind())
	assert.Equal(t, Rules{HasVariant: true, HasVoice: true, HasCommon: true, HasHeadshot: true, Start: 2, End: 8}, p.Selector)

	p, err = Load(root, "bf1", "")
	require.NoError(t, err)
	assert.Equal(t, Rules{HasVoice: true, Start: 1, End: 5}, p.Selector)
}

func TestLoad_VariantDirectory(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "crossfire", map[string]string{"info.json": crossfireJSON})
	writePreset(t, root, "crossfire_v_women", map[string]string{"info.json": crossfireJSON})

	p, err := Load(root, "crossfire", "women")
	require.NoError(t, err)
	assert.Equal(t, "crossfire", p.Master)
	assert.Equal(t, "women", p.Variant)
	assert.Equal(t, filepath.Join(root, "crossfire_v_women"), p.Dir)
	assert.Equal(t, filepath.Join(root, "crossfire"), p.MasterDir)
	assert.Equal(t, "crossfire_v_women", p.Name())

	p, err = Load(root, "crossfire_v_women", "")
	require.NoError(t, err)
	assert.Equal(t, "women", p.Variant)

	_, err = Load(root, "crossfire_v_women", "hero")
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "empty", nil)
	writePreset(t, root, "broken", map[string]string{"info.json": `{"has_voice": tru`})
	writePreset(t, root, "partial", map[string]string{"info.json": `{"has_voice": true, "start": 1, "end": 5}`})
	writePreset(t, root, "inverted", map[string]string{"info.json": `{
		"has_variant": false, "has_voice": true, "has_common": true, "has_headshot": false,
		"has_common_headshot": false, "start": 6, "end": 5}`})
	writePreset(t, root, "noentry", map[string]string{"script.lua": `function other() return {} end`})
	writePreset(t, root, "noentryjs", map[string]string{"script.js": `function other() { return []; }`})
	writePreset(t, root, "syntax", map[string]string{"script.lua": `function get_sounds(ctx`})

	tests := []struct {
		name   string
		preset string
		target error
	}{
		{"missing directory", "absent", ErrNotFound},
		{"no descriptor", "empty", ErrInvalidDescriptor},
		{"malformed json", "broken", ErrInvalidDescriptor},
		{"missing fields", "partial", ErrInvalidDescriptor},
		{"start after end", "inverted", ErrInvalidDescriptor},
		{"lua without entry point", "noentry", ErrNoEntryPoint},
		{"js without entry point", "noentryjs", ErrNoEntryPoint},
		{"lua syntax error", "syntax", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(root, tt.preset, "")
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
		})
	}
}

func TestResolve_Lua(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "scripted_v_red", map[string]string{"script.lua": selectorLua})

	p, err := Load(root, "scripted", "red")
	require.NoError(t, err)
	assert.Equal(t, "lua", p.Selector.Kind())

	ev := state.HighlightEvent{KillCount: 5, IsHeadshot: true}
	got, err := p.Resolve(context.Background(), ev, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(p.Dir, "headshot.wav"),
		filepath.Join(p.Dir, "3.wav"),
		filepath.Join(p.Dir, "red.wav"),
	}, got)

	again, err := p.Resolve(context.Background(), ev, Options{})
	require.NoError(t, err)
	assert.Equal(t, got, again)

	empty, err := p.Resolve(context.Background(), state.HighlightEvent{}, Options{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResolve_JS(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "scripted", map[string]string{"script.js": selectorJS})

	p, err := Load(root, "scripted", "")
	require.NoError(t, err)
	assert.Equal(t, "js", p.Selector.Kind())

	ev := state.HighlightEvent{KillCount: 1, IsFirstKill: true}
	got, err := p.Resolve(context.Background(), ev, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(p.Dir, "first.wav"),
		filepath.Join(p.Dir, "1.wav"),
		filepath.Join(p.Dir, "scripted.wav"),
	}, got)

	again, err := p.Resolve(context.Background(), ev, Options{})
	require.NoError(t, err)
	assert.Equal(t, got, again)

	empty, err := p.Resolve(context.Background(), state.HighlightEvent{}, Options{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResolve_ScriptFailureIsPerEvent(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "flaky", map[string]string{"script.lua": `
function get_sounds(ctx)
	if ctx.kill_count == 2 then
		error("boom")
	end
	if ctx.kill_count == 3 then
		return "not a table"
	end
	return { "1.wav" }
end
`})
	writePreset(t, root, "slow", map[string]string{"script.js": `function get_sounds(ctx) { for (;;) {} }`})
	writePreset(t, root, "slowlua", map[string]string{"script.lua": `
function get_sounds(ctx)
	if ctx.kill_count == 1 then
		while true do end
	end
	return { "2.wav" }
end
`})
	writePreset(t, root, "hanglua", map[string]string{"script.lua": `
while true do end
function get_sounds(ctx) return nil end
`})

	p, err := Load(root, "flaky", "")
	require.NoError(t, err)

	_, err = p.Resolve(context.Background(), state.HighlightEvent{KillCount: 2}, Options{})
	assert.Error(t, err)
	_, err = p.Resolve(context.Background(), state.HighlightEvent{KillCount: 3}, Options{})
	assert.Error(t, err)

	// The state remains usable after a failed call
	got, err := p.Resolve(context.Background(), state.HighlightEvent{KillCount: 1}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(p.Dir, "1.wav")}, got)

	slow, err := Load(root, "slow", "")
	require.NoError(t, err)
	_, err = slow.Resolve(context.Background(), state.HighlightEvent{KillCount: 1}, Options{})
	assert.Error(t, err)

	slowLua, err := Load(root, "slowlua", "")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		_, err := slowLua.Resolve(context.Background(), state.HighlightEvent{KillCount: 1}, Options{})
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorContains(t, err, "script timeout")
	case <-time.After(5 * constant.ScriptCallTimeout):
		t.Fatal("lua selector was not interrupted")
	}

	// The lock is released and the state still answers
	got, err = slowLua.Resolve(context.Background(), state.HighlightEvent{KillCount: 2}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(slowLua.Dir, "2.wav")}, got)

	_, err = Load(root, "hanglua", "")
	assert.ErrorContains(t, err, "script timeout")
}

func TestLuaSandboxHasNoIO(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "probe", map[string]string{"script.lua": `
function get_sounds(ctx)
	local out = {}
	if io == nil then table.insert(out, "no-io") end
	if os == nil then table.insert(out, "no-os") end
	if dofile == nil then table.insert(out, "no-dofile") end
	return out
end
`})

	p, err := Load(root, "probe", "")
	require.NoError(t, err)
	got, err := p.Resolve(context.Background(), state.HighlightEvent{KillCount: 1}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(p.Dir, "no-io"),
		filepath.Join(p.Dir, "no-os"),
		filepath.Join(p.Dir, "no-dofile"),
	}, got)
}

func TestResolveCanceledContext(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "crossfire", map[string]string{"info.json": crossfireJSON})
	p, err := Load(root, "crossfire", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Resolve(ctx, state.HighlightEvent{KillCount: 2}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
