package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "coordination.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.System.Atoms)
	assert.Equal(t, [3]float64{4, 4, 4}, cfg.System.Cell)
	assert.Equal(t, 10, cfg.Steps)
	assert.Equal(t, 2, cfg.PrintEvery)
	assert.Equal(t, 2, cfg.Parallel.Workers)

	require.Len(t, cfg.Actions, 3)
	assert.Equal(t, "CONTACT_MATRIX", cfg.Actions[0].Keyword)
	assert.Equal(t, "cmat", cfg.Actions[0].Label)
	assert.Equal(t, "0-7", cfg.Actions[0].Options["group"])
	assert.Equal(t, []string{"cmat"}, cfg.Actions[1].Args)

	require.Len(t, cfg.Bias, 1)
	assert.Equal(t, "total", cfg.Bias[0].Value)
	assert.Equal(t, -1.0, cfg.Bias[0].Force)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "min.yaml")
	data := []byte(`
system:
  atoms: 2
actions:
  - keyword: DISTANCE
    label: d1
    options:
      atoms: "0,1"
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Steps)
	assert.Equal(t, 1, cfg.PrintEvery)
	assert.Equal(t, 1.0, cfg.System.Spacing)
}

func TestLoadConfigRejectsEmptyGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system:\n  atoms: 2\n"), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "no actions")
}

func TestRunCoordinationPipeline(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "coordination.yaml"))
	require.NoError(t, err)

	// Quiet run, no jitter: the driver must complete every step.
	cfg.Jitter = 0
	cfg.Print = nil
	require.NoError(t, run(context.Background(), cfg))
}

func TestBuildGraphRejectsUnknownArgument(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "coordination.yaml"))
	require.NoError(t, err)
	cfg.Actions[1].Args = []string{"nosuch"}

	_, buildErr := buildGraph(cfg, buildSystem(cfg))
	assert.ErrorContains(t, buildErr, "nosuch")
}

func TestParseGroup(t *testing.T) {
	got, err := parseGroup("0-3,7,9-10")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 9, 10}, got)

	_, err = parseGroup("3-1")
	assert.Error(t, err)
	_, err = parseGroup("")
	assert.Error(t, err)
}

func TestParseBlocks(t *testing.T) {
	got, err := parseBlocks("0,1;1,2;2,3", 2)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {1, 2}, {2, 3}}, got)

	_, err = parseBlocks("0,1,2", 2)
	assert.ErrorContains(t, err, "3 atoms")
}
