package budget

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_Thresholds(t *testing.T) {
	limits := Limits{MaxTokens: 100, MaxCostMicros: 100}

	cases := []struct {
		name   string
		snap   Snapshot
		expect State
	}{
		{"within", Snapshot{Tokens: 10}, Within},
		{"warning80", Snapshot{Tokens: 80}, Warning80},
		{"warning90", Snapshot{Tokens: 90}, Warning90},
		{"exceeded", Snapshot{Tokens: 101}, Exceeded},
		{"cost_drives_it", Snapshot{Tokens: 0, CostMicros: 95}, Warning90},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Evaluate(tc.snap, limits))
		})
	}
}

func TestEvaluate_MissingLimitIsRatioZero(t *testing.T) {
	require.Equal(t, Within, Evaluate(Snapshot{Tokens: 1_000_000}, Limits{}))
}

func TestSnapshot_AddUsageSaturates(t *testing.T) {
	s := Snapshot{Tokens: math.MaxInt64 - 1}
	s = s.AddUsage(10, 0)
	require.Equal(t, int64(math.MaxInt64), s.Tokens)
}

func TestManager_AddUsage_DefaultsTokensToOne(t *testing.T) {
	m := NewManager(Limits{MaxTokens: 10})
	m.StartRun("r1", Limits{})

	_, snap := m.AddUsage("r1", 0, 0)
	require.Equal(t, int64(1), snap.Tokens)
}

func TestManager_AddUsage_ExceedsReturnsExceeded(t *testing.T) {
	m := NewManager(Limits{})
	m.StartRun("r1", Limits{MaxTokens: 1})

	state, _ := m.AddUsage("r1", 1, 0)
	require.Equal(t, Warning90, state)

	state, _ = m.AddUsage("r1", 1, 0)
	require.Equal(t, Exceeded, state)
}

func TestManager_Restore_SeedsUsageWithoutTokenDefaulting(t *testing.T) {
	m := NewManager(Limits{})
	m.Restore("r1", Limits{MaxTokens: 100}, Snapshot{Tokens: 42})

	snap, state := m.Snapshot("r1")
	require.Equal(t, int64(42), snap.Tokens)
	require.Equal(t, Within, state)
}
