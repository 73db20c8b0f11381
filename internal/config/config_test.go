package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectFile = `
[check]
parallel = true
jobs = 4
max_wires = 1000
timeout = "30s"
merge_nets_through_pins = true
disabled_rules = ["unlabeled_nets"]
waivers = "erc.waivers"

[output]
format = "json"
color = false

[log]
level = "debug"

[cache]
dir = ".erc-cache"
`

func write(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, projectFile)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.True(t, cfg.Check.Parallel)
	assert.Equal(t, 4, cfg.Check.Jobs)
	assert.Equal(t, 1000, cfg.Check.MaxWires)
	assert.Equal(t, 30*time.Second, cfg.Check.Timeout)
	assert.Equal(t, []string{"unlabeled_nets"}, cfg.Check.DisabledRules)
	assert.Equal(t, filepath.Join(dir, "erc.waivers"), cfg.Check.Waivers)
	assert.Equal(t, filepath.Join(dir, ".erc-cache"), cfg.Cache.Dir)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep their defaults")

	opts := cfg.CheckOptions()
	assert.True(t, opts.Parallel)
	assert.Equal(t, 4, opts.Jobs)
	assert.True(t, opts.MergeThroughPins)
	assert.Equal(t, 30*time.Second, opts.Timeout)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"syntax":       "[check\n",
		"unknown key":  "[check]\nparalel = true\n",
		"unknown rule": "[check]\ndisabled_rules = [\"nope\"]\n",
		"negative":     "[check]\njobs = -1\n",
		"format":       "[output]\nformat = \"xml\"\n",
		"bad duration": "[check]\ntimeout = \"soon\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, t.TempDir(), body))
			assert.Error(t, err)
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	path := write(t, root, "")
	nested := filepath.Join(root, "sheets", "power")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, ok, err := Find(nested)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, path, got)

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, Default().Check.MaxWires, cfg.Check.MaxWires)
}

func TestDiscoverDefaults(t *testing.T) {
	// Nothing above a fresh temp dir is expected to carry the project file,
	// but a developer machine might; only assert when it is absent.
	dir := t.TempDir()
	if _, ok, _ := Find(dir); ok {
		t.Skip("a project file exists above the temp dir")
	}
	cfg, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}
