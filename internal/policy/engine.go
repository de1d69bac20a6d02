package policy

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/ziXnOrg/ORCA/internal/identity"
	"github.com/ziXnOrg/ORCA/internal/metrics"
)

var decisionCounter = metrics.NewCounterVec(
	"policy_decision_count",
	"Policy decisions by phase, envelope kind, and action.",
	"phase", "kind", "action",
)

// RegisterMetrics adds the policy engine's counters to r. Call once at
// startup; safe to skip in tests that don't care about exposition.
func RegisterMetrics(r *metrics.Registry) {
	r.Register(decisionCounter)
}

// Engine evaluates the policy pipeline (spec.md §4.4). The zero value is
// a valid, unloaded engine: it still performs built-in PII redaction but
// denies everything else, matching the fail-closed default.
type Engine struct {
	mu        sync.RWMutex
	loaded    bool
	rules     []Rule
	allowlist []string
}

// NewEngine returns an unloaded engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Load parses and validates the policy file at path and, only on
// success, swaps it in atomically under the write lock. A failed load
// never touches the previously loaded rules (spec.md §4.4 "Any
// rejection leaves the engine unloaded").
func (e *Engine) Load(path string) error {
	rules, allowlist, err := parseFile(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.rules = rules
	e.allowlist = allowlist
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// Loaded reports whether a valid policy file is currently installed.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// Evaluate runs the pipeline in spec.md §4.4's order against env and
// returns the decision plus the (possibly redacted) envelope to use
// downstream. phase identifies which orchestrator pipeline step invoked
// evaluation ("pre" for step 4, "post" for the optional step-7 hook).
func (e *Engine) Evaluate(phase string, env identity.Envelope) (Decision, identity.Envelope) {
	kind := string(env.Kind)

	// Step 1: built-in PII redaction, independent of whether a policy
	// file is loaded.
	if redacted, changed := redactPII(env.Payload); changed {
		env.Payload = redacted
		d := Decision{
			Phase:           phase,
			Kind:            kind,
			Action:          ActionModify,
			RuleName:        "builtin:pii-redaction",
			Message:         "payload redacted for PII",
			Reason:          "payload matched a built-in PII pattern",
			Outcome:         OutcomeModified,
			RedactedPayload: redacted,
		}
		e.record(d)
		return d, env
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	// Step 2: fail-closed if nothing valid is loaded.
	if !e.loaded {
		d := Decision{
			Phase: phase, Kind: kind,
			Action: ActionDeny, RuleName: "builtin:no-policy-loaded",
			Message: "no valid policy loaded", Reason: "no valid policy loaded",
			Outcome: OutcomeDenied,
		}
		e.record(d)
		return d, env
	}

	// Step 3: tool allowlist enforcement.
	if tool := extractTool(env.Payload); tool != "" {
		switch {
		case len(e.allowlist) > 0 && !allowlistAllows(e.allowlist, tool):
			d := Decision{
				Phase: phase, Kind: kind,
				Action: ActionDeny, RuleName: "builtin:tool-allowlist",
				Message: "tool not in allowlist: " + tool,
				Reason:  "tool not in allowlist",
				Outcome: OutcomeDenied,
			}
			e.record(d)
			return d, env
		case len(e.allowlist) == 0 && hasDenyToolInvocationRule(e.rules):
			d := Decision{
				Phase: phase, Kind: kind,
				Action: ActionDeny, RuleName: "builtin:tool-default-deny",
				Message: "tool invocation denied by default", Reason: "no allowlist and a deny rule targets tool invocations",
				Outcome: OutcomeDenied,
			}
			e.record(d)
			return d, env
		}
	}

	// Step 4: rule interpreter.
	d, newPayload := e.evaluateRules(phase, kind, env)
	if newPayload != nil {
		env.Payload = newPayload
	}
	e.record(d)
	return d, env
}

// evaluateRules selects the matching rule with the highest priority,
// breaking ties by restrictiveness then by file order (spec.md §4.4 Rule
// precedence). Returns a non-nil payload only when the selected rule's
// action is Modify and carries a regex transform.
func (e *Engine) evaluateRules(phase, kind string, env identity.Envelope) (Decision, []byte) {
	doc := buildDoc(env)

	var best *Rule
	for i := range e.rules {
		r := &e.rules[i]
		if !r.matches(doc) {
			continue
		}
		if best == nil || moreSignificant(r, best) {
			best = r
		}
	}

	if best == nil {
		return Decision{Phase: phase, Kind: kind, Action: ActionAllow, Outcome: OutcomeAllowed}, nil
	}

	outcome := OutcomeAllowed
	switch best.Action {
	case ActionDeny:
		outcome = OutcomeDenied
	case ActionModify:
		outcome = OutcomeModified
	case ActionAllowButFlag:
		outcome = OutcomeFlagged
	}

	d := Decision{
		Phase: phase, Kind: kind,
		Action: best.Action, RuleName: best.Name,
		Message: best.Message, Reason: redactReason(best.Message),
		Outcome: outcome,
	}

	var newPayload []byte
	if best.Action == ActionModify && best.compiledRe != nil {
		newPayload = best.compiledRe.ReplaceAll(env.Payload, []byte("[REDACTED]"))
		d.RedactedPayload = newPayload
	}
	return d, newPayload
}

// moreSignificant reports whether candidate should win over incumbent
// under spec.md §4.4's precedence: higher priority, then more
// restrictive action, then earlier file order.
func moreSignificant(candidate, incumbent *Rule) bool {
	if candidate.Priority != incumbent.Priority {
		return candidate.Priority > incumbent.Priority
	}
	cr, ir := candidate.Action.restrictiveness(), incumbent.Action.restrictiveness()
	if cr != ir {
		return cr > ir
	}
	return candidate.index < incumbent.index
}

func (e *Engine) record(d Decision) {
	decisionCounter.Inc(d.Phase, d.Kind, string(d.Action))
	if d.Action == ActionAllowButFlag {
		decisionCounter.Inc(d.Phase, d.Kind, "flag")
	}
	emit(d)
}

// hasDenyToolInvocationRule reports whether any loaded deny rule targets
// tool invocations specifically, judged by the rule's name or condition
// mentioning a tool field — used only as the default-deny fallback when
// no explicit allowlist exists (spec.md §4.4 step 3).
func hasDenyToolInvocationRule(rules []Rule) bool {
	for _, r := range rules {
		if r.Action != ActionDeny {
			continue
		}
		if strings.Contains(strings.ToLower(r.Name), "tool") || strings.Contains(strings.ToLower(r.When), "tool") {
			return true
		}
	}
	return false
}

// buildDoc encodes the envelope subset SPEC_FULL.md §3.1 specifies for
// `when` evaluation: {payload, agent, kind, trace_id, usage}.
func buildDoc(env identity.Envelope) any {
	data, _ := json.Marshal(struct {
		Payload json.RawMessage `json:"payload"`
		Agent   string          `json:"agent"`
		Kind    string          `json:"kind"`
		TraceID string          `json:"trace_id"`
		Usage   *identity.Usage `json:"usage,omitempty"`
	}{env.Payload, env.Agent, string(env.Kind), env.TraceID, env.Usage})

	var doc any
	_ = json.Unmarshal(data, &doc)
	return doc
}

// extractTool reads a "tool" or "tool_name" field out of payload, if
// present, for allowlist enforcement.
func extractTool(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var probe struct {
		Tool     string `json:"tool"`
		ToolName string `json:"tool_name"`
	}
	if json.Unmarshal(payload, &probe) != nil {
		return ""
	}
	if probe.Tool != "" {
		return probe.Tool
	}
	return probe.ToolName
}
