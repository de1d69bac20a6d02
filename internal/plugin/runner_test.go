package plugin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerConfig_WithDefaults(t *testing.T) {
	cfg := RunnerConfig{}.withDefaults()
	require.Equal(t, int64(DefaultMemoryCapBytes), cfg.MemoryCapBytes)
	require.Equal(t, uint64(DefaultFuelBudget), cfg.FuelBudget)
	require.Equal(t, DefaultWallTimeout, cfg.WallTimeout)
}

func TestRunnerConfig_WithDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := RunnerConfig{MemoryCapBytes: 1, FuelBudget: 2, WallTimeout: 3 * time.Second}.withDefaults()
	require.Equal(t, int64(1), cfg.MemoryCapBytes)
	require.Equal(t, uint64(2), cfg.FuelBudget)
	require.Equal(t, 3*time.Second, cfg.WallTimeout)
}
