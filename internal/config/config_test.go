package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesEngineDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, 16, cfg.RTree.FanOut)
	require.Equal(t, 32, cfg.Domain.HilbertBits)
	require.Greater(t, cfg.Worker.PoolSize, 0)
	require.Equal(t, int64(0), cfg.Memory.RTreeBudget)
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/engine.yaml"
	const body = "rtree:\n  fan_out: 64\nmemory:\n  rtree_budget: 1048576\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.RTree.FanOut)
	require.Equal(t, int64(1048576), cfg.Memory.RTreeBudget)
	// Unset fields keep their Default() values, layered under the file.
	require.Equal(t, 32, cfg.Domain.HilbertBits)
}
