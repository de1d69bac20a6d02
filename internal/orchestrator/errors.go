package orchestrator

import "errors"

// Sentinel errors returned by Service methods. The RPC edge
// (internal/server's mapErr) maps each to a gRPC status code; the orchestrator itself
// stays transport-agnostic, matching the teacher's separation between
// orchestrator and server packages.
var (
	// ErrPermissionDenied is returned when the policy engine denies an
	// envelope (spec.md §4.3 step 4 / §4.4).
	ErrPermissionDenied = errors.New("orchestrator: permission denied by policy")
	// ErrBudgetExceeded is returned when a run's budget is Exceeded
	// (spec.md §4.3 step 5).
	ErrBudgetExceeded = errors.New("orchestrator: run budget exceeded")
	// ErrUnknownRun is returned by operations addressing a run_id the
	// orchestrator has no record of (neither started this session nor
	// recovered by replay).
	ErrUnknownRun = errors.New("orchestrator: unknown run_id")
	// ErrWALAppendFailed is returned when an append exhausts its
	// retries (spec.md §4.3 step 6: "up to three retries and a fixed
	// backoff on transient append failure").
	ErrWALAppendFailed = errors.New("orchestrator: wal append failed after retries")
)
