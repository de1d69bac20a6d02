package orchestrator

import (
	"encoding/json"

	"github.com/ziXnOrg/ORCA/internal/budget"
	"github.com/ziXnOrg/ORCA/internal/identity"
)

// Payload shapes written into wal.Record.Payload. These are this
// module's own wire format, not part of spec.md's Envelope — they exist
// so replay (replay.go) can reconstruct derived state from a plain
// JSONL scan without any side channel.

type startRunPayload struct {
	Label  string       `json:"label"`
	Limits budget.Limits `json:"limits"`
}

type taskEnqueuedPayload struct {
	Envelope identity.Envelope `json:"envelope"`
}

type usageUpdatePayload struct {
	Agent      string `json:"agent"`
	Tokens     int64  `json:"tokens"`
	CostMicros int64  `json:"cost_micros"`
	Cumulative budget.Snapshot `json:"cumulative"`
}

type budgetThresholdPayload struct {
	State budget.State    `json:"state"`
	Usage budget.Snapshot `json:"usage"`
	Limits budget.Limits  `json:"limits"`
}

type policyAuditPayload struct {
	Phase    string `json:"phase"`
	RuleName string `json:"rule_name"`
	Action   string `json:"action"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason"`
}

type runSummaryPayload struct {
	TotalTokens     int64                 `json:"total_tokens"`
	TotalCostMicros int64                 `json:"total_cost_micros"`
	PerAgent        map[string]agentUsage `json:"per_agent"`
}

type externalIOStartedPayload struct {
	System         string            `json:"system"`
	Direction      string            `json:"direction"`
	Scheme         string            `json:"scheme"`
	Host           string            `json:"host"`
	Port           int               `json:"port"`
	Method         string            `json:"method"`
	RequestID      string            `json:"request_id"`
	RedactedHeaders map[string]string `json:"redacted_headers,omitempty"`
	BodyDigest     string            `json:"body_digest,omitempty"`
}

type externalIOFinishedPayload struct {
	RequestID  string `json:"request_id"`
	Status     int    `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

func marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Every payload type above is a plain struct of JSON-safe
		// fields; Marshal only fails on unsupported types (channels,
		// funcs, cyclic maps), none of which appear here.
		panic("orchestrator: marshal payload: " + err.Error())
	}
	return b
}
