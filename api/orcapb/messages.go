// Package orcapb defines the wire messages for ORCA's RPC surface
// (spec.md §4.3: StartRun, SubmitTask, StreamEvents, FetchResult) and
// the codec that marshals them over grpc-go without protoc.
//
// Fields mirror identity.Envelope and wal.Record directly; there is
// deliberately no separate "API model" layered on top of the domain
// types, matching spec.md §3's single Envelope/Record shape.
package orcapb

import (
	"github.com/ziXnOrg/ORCA/internal/budget"
	"github.com/ziXnOrg/ORCA/internal/identity"
)

// StartRunRequest requests a new run. Label is optional; when empty the
// orchestrator assigns a petname (SPEC_FULL.md §4.3 "Run naming").
type StartRunRequest struct {
	Label    string         `json:"label,omitempty"`
	Limits   budget.Limits  `json:"limits,omitempty"`
	Envelope identity.Envelope `json:"envelope"`
}

// StartRunResponse returns the assigned run identity.
type StartRunResponse struct {
	RunID string `json:"run_id"`
	Label string `json:"label"`
}

// SubmitTaskRequest submits one envelope to a run.
type SubmitTaskRequest struct {
	RunID    string            `json:"run_id"`
	Envelope identity.Envelope `json:"envelope"`
}

// SubmitTaskResponse reports whether the envelope was newly enqueued or
// recognized as a duplicate (spec.md §4.3 step 3).
type SubmitTaskResponse struct {
	Duplicate bool              `json:"duplicate"`
	Envelope  identity.Envelope `json:"envelope"`
}

// StreamEventsRequest carries spec.md §4.3's conjunctive StreamEvents
// filters.
type StreamEventsRequest struct {
	RunID        string `json:"run_id,omitempty"`
	StartEventID uint64 `json:"start_event_id,omitempty"`
	SinceTSMS    int64  `json:"since_ts_ms,omitempty"`
	MaxEvents    int    `json:"max_events,omitempty"`
}

// StreamEventsResponse is one WAL record sent on the stream. The server
// sends one of these per matching record; the stream closes after
// MaxEvents or end-of-log.
type StreamEventsResponse struct {
	ID          uint64            `json:"id"`
	TSMillis    int64             `json:"ts_ms"`
	EventType   string            `json:"event_type"`
	RunID       string            `json:"run_id"`
	TraceID     string            `json:"trace_id"`
	Payload     []byte            `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FetchResultRequest asks for the terminal result of a run.
type FetchResultRequest struct {
	RunID string `json:"run_id"`
}

// FetchResultResponse carries the run's last agent_result/agent_error
// envelope, if any has landed yet.
type FetchResultResponse struct {
	Found    bool              `json:"found"`
	Envelope identity.Envelope `json:"envelope,omitempty"`
}
