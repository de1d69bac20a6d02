package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ziXnOrg/ORCA/internal/budget"
	"github.com/ziXnOrg/ORCA/internal/identity"
	"github.com/ziXnOrg/ORCA/internal/policy"
	"github.com/ziXnOrg/ORCA/internal/wal"
)

func allowAllPolicy(t *testing.T) *policy.Engine {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))
	e := policy.NewEngine()
	require.NoError(t, e.Load(path))
	return e
}

func denyAllPolicy(t *testing.T) *policy.Engine {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	yaml := "rules:\n  - name: deny-everything\n    when: \"$\"\n    action: deny\n    message: nope\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	e := policy.NewEngine()
	require.NoError(t, e.Load(path))
	return e
}

func newTestService(t *testing.T, pol *policy.Engine) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	walPath := filepath.Join(dir, "events.jsonl")
	f, err := wal.Open(walPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	svc, err := New(Config{
		WAL:     f,
		Policy:  pol,
		Budgets: budget.NewManager(budget.Limits{MaxTokens: 100}),
		Clock:   identity.NewVirtualClock(1000),
	})
	require.NoError(t, err)
	return svc, walPath
}

func taskEnvelope(id string, tokens int64) identity.Envelope {
	return identity.Envelope{
		ID: id, TraceID: "trace-1", Agent: "agent-a",
		Kind: identity.KindAgentTask, Payload: json.RawMessage(`{"hello":"world"}`),
		ProtocolVersion: 1, TSMillis: 1000, Usage: &identity.Usage{Tokens: tokens},
	}
}

func TestService_StartRunThenSubmitTask(t *testing.T) {
	svc, _ := newTestService(t, allowAllPolicy(t))
	ctx := context.Background()

	runID, label, err := svc.StartRun(ctx, StartRunRequest{
		Env: identity.Envelope{ProtocolVersion: 1, TSMillis: 1000, TraceID: "trace-1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	require.NotEmpty(t, label)

	result, err := svc.SubmitTask(ctx, runID, taskEnvelope("env-1", 10))
	require.NoError(t, err)
	require.False(t, result.Duplicate)
}

func TestService_SubmitTaskIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, allowAllPolicy(t))
	ctx := context.Background()
	runID, _, err := svc.StartRun(ctx, StartRunRequest{Env: identity.Envelope{ProtocolVersion: 1, TSMillis: 1000}})
	require.NoError(t, err)

	_, err = svc.SubmitTask(ctx, runID, taskEnvelope("env-dup", 5))
	require.NoError(t, err)

	result, err := svc.SubmitTask(ctx, runID, taskEnvelope("env-dup", 5))
	require.NoError(t, err)
	require.True(t, result.Duplicate)
}

func TestService_SubmitTaskDeniedByPolicy(t *testing.T) {
	svc, _ := newTestService(t, denyAllPolicy(t))
	ctx := context.Background()
	runID, _, err := svc.StartRun(ctx, StartRunRequest{Env: identity.Envelope{ProtocolVersion: 1, TSMillis: 1000}})
	require.Error(t, err) // start_run's own pre-policy hook denies too
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Empty(t, runID)

	_, err = svc.SubmitTask(ctx, "run-x", taskEnvelope("env-1", 1))
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestService_SubmitTaskExceedsBudget(t *testing.T) {
	svc, _ := newTestService(t, allowAllPolicy(t))
	ctx := context.Background()
	runID, _, err := svc.StartRun(ctx, StartRunRequest{
		Env:    identity.Envelope{ProtocolVersion: 1, TSMillis: 1000},
		Limits: budget.Limits{MaxTokens: 10},
	})
	require.NoError(t, err)

	_, err = svc.SubmitTask(ctx, runID, taskEnvelope("env-big", 20))
	require.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestService_SubmitTaskRejectsBadProtocolVersion(t *testing.T) {
	svc, _ := newTestService(t, allowAllPolicy(t))
	ctx := context.Background()
	env := taskEnvelope("env-1", 1)
	env.ProtocolVersion = 2
	_, err := svc.SubmitTask(ctx, "run-x", env)
	require.ErrorIs(t, err, identity.ErrBadProtocolVersion)
}

func TestService_ReplayRebuildsStateAfterRestart(t *testing.T) {
	pol := allowAllPolicy(t)
	svc, walPath := newTestService(t, pol)
	ctx := context.Background()

	runID, _, err := svc.StartRun(ctx, StartRunRequest{
		Env:    identity.Envelope{ProtocolVersion: 1, TSMillis: 1000},
		Limits: budget.Limits{MaxTokens: 1000},
	})
	require.NoError(t, err)
	_, err = svc.SubmitTask(ctx, runID, taskEnvelope("env-1", 42))
	require.NoError(t, err)

	f2, err := wal.Open(walPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f2.Close() })

	svc2, err := New(Config{WAL: f2, Policy: pol, Budgets: budget.NewManager(budget.Limits{})})
	require.NoError(t, err)

	// A duplicate submit after "restart" must still be recognized.
	result, err := svc2.SubmitTask(ctx, runID, taskEnvelope("env-1", 42))
	require.NoError(t, err)
	require.True(t, result.Duplicate)

	snap, _ := svc2.budgets.Snapshot(runID)
	require.Equal(t, int64(42), snap.Tokens)
}
