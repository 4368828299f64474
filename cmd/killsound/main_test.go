package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/killsound/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func TestListPresets(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"crossfire", "crossfire_v_women", "bf1"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, dir), 0o755))
	}

	out, err := execute(t, "--sounds", root, "-L")
	require.NoError(t, err)
	assert.Equal(t, "Available presets:\n  bf1\n  crossfire: [women]\n", out)
}

func TestListPresetsMissingRoot(t *testing.T) {
	_, err := execute(t, "--sounds", filepath.Join(t.TempDir(), "absent"), "--list-presets")
	assert.Error(t, err)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "--max-jobs", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max jobs must be positive")
}

func TestRunFailsOnMissingPreset(t *testing.T) {
	_, err := execute(t, "--sounds", t.TempDir(), "-p", "nothing", "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load preset 'nothing'")
}

func TestRejectsPositionalArgs(t *testing.T) {
	_, err := execute(t, "extra")
	assert.Error(t, err)
}
