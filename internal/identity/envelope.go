package identity

import "encoding/json"

// EnvelopeKind enumerates the three shapes an Envelope can carry
// (spec.md §3 Envelope).
type EnvelopeKind string

const (
	KindAgentTask   EnvelopeKind = "agent_task"
	KindAgentResult EnvelopeKind = "agent_result"
	KindAgentError  EnvelopeKind = "agent_error"
)

// ProtocolVersion is the only accepted value of Envelope.ProtocolVersion.
// SubmitTask rejects anything else with FailedPrecondition.
const ProtocolVersion = 1

// Usage carries token and cost accounting for a single envelope.
type Usage struct {
	Tokens     int64 `json:"tokens,omitempty"`
	CostMicros int64 `json:"cost_micros,omitempty"`
}

// Envelope is the transport-level message carrying a task, result, or
// error with routing metadata (spec.md §3).
type Envelope struct {
	ID              string          `json:"id"`
	ParentID        string          `json:"parent_id,omitempty"`
	TraceID         string          `json:"trace_id"`
	Agent           string          `json:"agent"`
	Kind            EnvelopeKind    `json:"kind"`
	Payload         json.RawMessage `json:"payload"`
	TimeoutMS       int64           `json:"timeout_ms,omitempty"`
	ProtocolVersion int             `json:"protocol_version"`
	TSMillis        int64           `json:"ts_ms"`
	Usage           *Usage          `json:"usage,omitempty"`
}

// TTLExpired reports whether the envelope's timeout has elapsed as of
// nowMS. A zero or negative TimeoutMS means "no TTL".
func (e Envelope) TTLExpired(nowMS int64) bool {
	if e.TimeoutMS <= 0 {
		return false
	}
	return nowMS-e.TSMillis > e.TimeoutMS
}

// Valid reports whether the envelope satisfies the invariants spec.md §3
// requires at acceptance: protocol_version==1, and (if set) a
// not-yet-expired TTL.
func (e Envelope) Valid(nowMS int64) error {
	if e.ProtocolVersion != ProtocolVersion {
		return ErrBadProtocolVersion
	}
	if e.TTLExpired(nowMS) {
		return ErrTTLExpired
	}
	return nil
}
