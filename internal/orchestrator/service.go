// Package orchestrator implements spec.md §4.3: the SubmitTask/StartRun/
// StreamEvents/FetchResult pipeline, replay-on-start, and the derived
// run index every other operation reads from. It owns no transport; the
// gRPC surface (api/orcapb, internal/server) is a thin translation layer in
// front of Service.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustinkirkland/golang-petname"

	"github.com/ziXnOrg/ORCA/internal/budget"
	"github.com/ziXnOrg/ORCA/internal/identity"
	"github.com/ziXnOrg/ORCA/internal/logging"
	"github.com/ziXnOrg/ORCA/internal/policy"
	"github.com/ziXnOrg/ORCA/internal/sink"
	"github.com/ziXnOrg/ORCA/internal/wal"
)

// appendRetries and appendBackoff implement spec.md §4.3 step 6: "up to
// three retries and a fixed backoff on transient append failure".
const (
	appendRetries = 3
	appendBackoff = 50 * time.Millisecond
)

// Config configures a Service.
type Config struct {
	WAL      *wal.File
	Policy   *policy.Engine
	Budgets  *budget.Manager
	Sinks    *sink.Fanout
	IDs      *identity.EventIDSequence
	Clock    identity.Clock
	Logger   *slog.Logger
	// ExternalIOBypass allows external-IO capture (BeginExternalIO and
	// EndExternalIO) to proceed even when its own WAL append fails,
	// instead of failing closed
	// (spec.md §4.3 "External I/O capture").
	ExternalIOBypass bool
}

// Service implements the orchestrator pipeline over one WAL, one policy
// engine, and one budget manager. A Service owns the derived run index
// in memory; everything in it is reconstructed from the WAL by replay
// on construction (spec.md §4.3 "Replay on start").
type Service struct {
	wal     *wal.File
	policy  *policy.Engine
	budgets *budget.Manager
	sinks   *sink.Fanout
	ids     *identity.EventIDSequence
	clock   identity.Clock
	logger  *slog.Logger
	bypass  bool

	mu   sync.Mutex
	runs map[string]*runState

	seenMu sync.Mutex
	seen   map[string]struct{}
}

// New builds a Service and replays the configured WAL before returning,
// so the first call the caller makes sees fully recovered state.
func New(cfg Config) (*Service, error) {
	if cfg.WAL == nil {
		return nil, errors.New("orchestrator: Config.WAL is required")
	}
	if cfg.IDs == nil {
		cfg.IDs = identity.NewEventIDSequence(0)
	}
	if cfg.Clock == nil {
		cfg.Clock = identity.WallClock{}
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.NewEngine()
	}
	if cfg.Budgets == nil {
		cfg.Budgets = budget.NewManager(budget.Limits{})
	}
	s := &Service{
		wal:     cfg.WAL,
		policy:  cfg.Policy,
		budgets: cfg.Budgets,
		sinks:   cfg.Sinks,
		ids:     cfg.IDs,
		clock:   cfg.Clock,
		logger:  logging.Default(cfg.Logger).With("component", "orchestrator"),
		bypass:  cfg.ExternalIOBypass,
		runs:    make(map[string]*runState),
		seen:    make(map[string]struct{}),
	}
	if err := s.replay(); err != nil {
		return nil, fmt.Errorf("orchestrator: replay: %w", err)
	}
	return s, nil
}

func (s *Service) runFor(runID string) *runState {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.runs[runID]
	if !ok {
		rs = newRunState("", 0)
		s.runs[runID] = rs
	}
	return rs
}

func (s *Service) markSeen(envelopeID string) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	s.seen[envelopeID] = struct{}{}
}

func (s *Service) wasSeen(envelopeID string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	_, ok := s.seen[envelopeID]
	return ok
}

// append writes r to the WAL with spec.md §4.3 step 6's retry policy:
// one attempt plus up to appendRetries retries, with a fixed backoff
// between them.
func (s *Service) append(r wal.Record) (uint64, error) {
	r.ID = s.ids.Next()
	var lastErr error
	for attempt := 0; attempt <= appendRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(appendBackoff)
		}
		id, err := s.wal.Append(r)
		if err == nil {
			s.runFor(r.RunID).recordEventID(id)
			if s.sinks != nil {
				if line, encErr := wal.ToJSONLLine(r); encErr == nil {
					go s.sinks.Publish(context.Background(), r.RunID, line)
				}
			}
			return id, nil
		}
		lastErr = err
		s.logger.Warn("wal append failed, retrying", "event_type", r.EventType, "run_id", r.RunID, "attempt", attempt+1, "error", err)
	}
	return 0, fmt.Errorf("%w: %v", ErrWALAppendFailed, lastErr)
}

// StartRunRequest carries what StartRun needs beyond the envelope
// itself: an optional operator-supplied label and per-run budget
// limits (spec.md §4.3 "establishes the per-run budget from either the
// request or defaults").
type StartRunRequest struct {
	Label  string
	Limits budget.Limits
	Env    identity.Envelope
}

// StartRun follows SubmitTask's pipeline minus budget/idempotency
// (spec.md §4.3): envelope validation, the pre-policy hook, budget
// establishment, and a start_run record.
func (s *Service) StartRun(ctx context.Context, req StartRunRequest) (runID string, label string, err error) {
	now := s.clock.NowMS()
	if err := req.Env.Valid(now); err != nil {
		return "", "", err
	}

	env := req.Env
	d, env := s.policy.Evaluate("pre", env)

	runID = env.TraceID
	if runID == "" {
		runID = identity.NewRunID()
	}
	// The policy_audit record is filed under the run being started, which
	// has a run_id even when the envelope carries no trace_id.
	auditEnv := env
	auditEnv.TraceID = runID
	if err := s.auditPolicyDecision(ctx, auditEnv, d); err != nil {
		return "", "", err
	}
	label = req.Label
	if label == "" {
		label = petname.Generate(2, "-")
	}

	s.budgets.StartRun(runID, req.Limits)
	rs := s.runFor(runID)
	rs.mu.Lock()
	rs.label = label
	rs.startTSMillis = now
	rs.mu.Unlock()

	payload := marshal(startRunPayload{Label: label, Limits: req.Limits})
	if _, err := s.append(wal.Record{
		TSMillis: now, EventType: wal.EventStartRun, RunID: runID, TraceID: env.TraceID, Payload: payload,
	}); err != nil {
		return "", "", err
	}
	return runID, label, nil
}

// SubmitTaskResult is returned by SubmitTask: the (possibly
// policy-modified) envelope that was actually enqueued or, when the
// envelope was a duplicate under step 3's idempotency rule, the envelope
// as submitted with Duplicate set.
type SubmitTaskResult struct {
	Envelope  identity.Envelope
	Duplicate bool
}

// SubmitTask runs the full pipeline spec.md §4.3 describes (steps 2-8;
// step 1 AuthN happens at the transport edge before this is called).
func (s *Service) SubmitTask(ctx context.Context, runID string, env identity.Envelope) (SubmitTaskResult, error) {
	now := s.clock.NowMS()

	// Step 2: envelope check.
	if err := env.Valid(now); err != nil {
		return SubmitTaskResult{}, err
	}

	// Step 3: idempotency.
	if s.wasSeen(env.ID) {
		return SubmitTaskResult{Envelope: env, Duplicate: true}, nil
	}

	// Step 4: policy (pre).
	d, env := s.policy.Evaluate("pre", env)
	if err := s.auditPolicyDecision(ctx, env, d); err != nil {
		return SubmitTaskResult{}, err
	}

	// Step 5: budget.
	tokens, costMicros := usageOf(env)
	state, snap := s.budgets.AddUsage(runID, tokens, costMicros)
	if err := s.recordBudgetTransition(runID, env, state, snap); err != nil {
		return SubmitTaskResult{}, err
	}
	if state == budget.Exceeded {
		return SubmitTaskResult{}, ErrBudgetExceeded
	}

	// Step 6: WAL.
	usagePayload := marshal(usageUpdatePayload{Agent: env.Agent, Tokens: tokens, CostMicros: costMicros, Cumulative: snap})
	if _, err := s.append(wal.Record{
		TSMillis: now, EventType: wal.EventUsageUpdate, RunID: runID, TraceID: env.TraceID, Payload: usagePayload,
	}); err != nil {
		return SubmitTaskResult{}, err
	}
	taskPayload := marshal(taskEnqueuedPayload{Envelope: env})
	if _, err := s.append(wal.Record{
		TSMillis: now, EventType: wal.EventTaskEnqueued, RunID: runID, TraceID: env.TraceID, Payload: taskPayload,
	}); err != nil {
		return SubmitTaskResult{}, err
	}
	s.markSeen(env.ID)
	s.runFor(runID).addAgentUsage(env.Agent, tokens, costMicros)

	// Step 7: optional post-submit policy hook after the envelope's TTL.
	if env.TimeoutMS > 0 {
		s.scheduleTimeoutHook(runID, env)
	}

	// Step 8: end-of-run summary.
	if env.Kind == identity.KindAgentResult {
		if err := s.writeRunSummary(runID, env.TraceID, now); err != nil {
			s.logger.Warn("run summary append failed", "run_id", runID, "error", err)
		}
	}

	return SubmitTaskResult{Envelope: env}, nil
}

// usageOf reads (tokens, cost_micros) off an envelope's Usage field,
// defaulting tokens to 1 when unspecified (spec.md §4.3 step 5).
func usageOf(env identity.Envelope) (tokens, costMicros int64) {
	if env.Usage == nil {
		return 1, 0
	}
	tokens = env.Usage.Tokens
	if tokens == 0 {
		tokens = 1
	}
	return tokens, env.Usage.CostMicros
}

// auditPolicyDecision translates a policy decision into a policy_audit
// WAL record when the outcome requires auditing (spec.md §4.3 step 4,
// §4.4 "Observability and audit"), and returns ErrPermissionDenied when
// the decision was a Deny.
func (s *Service) auditPolicyDecision(ctx context.Context, env identity.Envelope, d policy.Decision) error {
	switch d.Outcome {
	case policy.OutcomeDenied, policy.OutcomeModified, policy.OutcomeFlagged:
		now := s.clock.NowMS()
		payload := marshal(policyAuditPayload{
			Phase: d.Phase, RuleName: d.RuleName, Action: string(d.Action),
			Outcome: string(d.Outcome), Reason: d.Reason,
		})
		if _, err := s.append(wal.Record{
			TSMillis: now, EventType: wal.EventPolicyAudit, RunID: env.TraceID, TraceID: env.TraceID, Payload: payload,
		}); err != nil {
			return err
		}
	}
	if d.Outcome == policy.OutcomeDenied {
		return ErrPermissionDenied
	}
	return nil
}

// recordBudgetTransition appends a budget_exceeded or budget_warning
// record whenever the state after AddUsage is Exceeded, Warning80 or
// Warning90 (spec.md §4.3 step 5), on every such call rather than only
// when the state changes; Within requires no record.
func (s *Service) recordBudgetTransition(runID string, env identity.Envelope, state budget.State, snap budget.Snapshot) error {
	var eventType wal.EventType
	switch state {
	case budget.Exceeded:
		eventType = wal.EventBudgetExceeded
	case budget.Warning80, budget.Warning90:
		eventType = wal.EventBudgetWarning
	default:
		return nil
	}
	payload := marshal(budgetThresholdPayload{State: state, Usage: snap})
	_, err := s.append(wal.Record{
		TSMillis: s.clock.NowMS(), EventType: eventType, RunID: runID, TraceID: env.TraceID, Payload: payload,
	})
	return err
}

// writeRunSummary appends a run_summary record with totals and the
// per-agent breakdown accumulated so far (spec.md §4.3 step 8).
func (s *Service) writeRunSummary(runID, traceID string, now int64) error {
	snap, _ := s.budgets.Snapshot(runID)
	perAgent := s.runFor(runID).snapshotAgentUsage()
	payload := marshal(runSummaryPayload{
		TotalTokens: snap.Tokens, TotalCostMicros: snap.CostMicros, PerAgent: perAgent,
	})
	_, err := s.append(wal.Record{
		TSMillis: now, EventType: wal.EventRunSummary, RunID: runID, TraceID: traceID, Payload: payload,
	})
	return err
}

// scheduleTimeoutHook runs the post-submit policy hook once env's
// timeout elapses (spec.md §4.3 step 7). It is fire-and-forget by
// design: a hook that fires after the process exits simply never runs,
// which is consistent with the WAL being the only durable state.
func (s *Service) scheduleTimeoutHook(runID string, env identity.Envelope) {
	time.AfterFunc(time.Duration(env.TimeoutMS)*time.Millisecond, func() {
		d, redacted := s.policy.Evaluate("post", env)
		if err := s.auditPolicyDecision(context.Background(), redacted, d); err != nil {
			s.logger.Warn("post-submit policy hook denied envelope after timeout", "run_id", runID, "envelope_id", env.ID, "error", err)
		}
	})
}

// FetchResult reads the last agent_result (or agent_error) envelope
// recorded for runID, or an empty envelope if none has landed yet.
func (s *Service) FetchResult(ctx context.Context, runID string) (identity.Envelope, bool, error) {
	var found identity.Envelope
	var ok bool
	err := wal.ForEach(s.wal.Path(), func(r wal.Record) error {
		if r.RunID != runID || r.EventType != wal.EventTaskEnqueued {
			return nil
		}
		var p taskEnqueuedPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return err
		}
		if p.Envelope.Kind == identity.KindAgentResult || p.Envelope.Kind == identity.KindAgentError {
			found = p.Envelope
			ok = true
		}
		return nil
	})
	return found, ok, err
}
