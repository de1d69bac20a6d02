package orchestrator

import "sync"

// runState is the in-memory index the orchestrator keeps per run,
// derived entirely from the WAL (spec.md §4.3 "Replay on start": this
// is rebuilt, never the other way around). Service.runs holds one of
// these per known run_id.
type runState struct {
	mu sync.Mutex

	// label is the human-legible run name (an explicit StartRun label,
	// or a petname assigned when one was omitted). run_id remains the
	// canonical identifier everywhere else (SPEC_FULL.md §4.3 "Run
	// naming").
	label string

	startTSMillis  int64
	lastEventID    uint64
	perAgentUsage  map[string]agentUsage
	summaryWritten bool
}

// agentUsage accumulates tokens/cost for one agent within a run, used
// only to populate run_summary's per-agent breakdown (spec.md §4.3
// step 8).
type agentUsage struct {
	Tokens     int64 `json:"tokens"`
	CostMicros int64 `json:"cost_micros"`
}

func newRunState(label string, startTSMillis int64) *runState {
	return &runState{
		label:         label,
		startTSMillis: startTSMillis,
		perAgentUsage: make(map[string]agentUsage),
	}
}

func (rs *runState) recordEventID(id uint64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if id > rs.lastEventID {
		rs.lastEventID = id
	}
}

func (rs *runState) addAgentUsage(agent string, tokens, costMicros int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	u := rs.perAgentUsage[agent]
	u.Tokens += tokens
	u.CostMicros += costMicros
	rs.perAgentUsage[agent] = u
}

func (rs *runState) snapshotAgentUsage() map[string]agentUsage {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]agentUsage, len(rs.perAgentUsage))
	for k, v := range rs.perAgentUsage {
		out[k] = v
	}
	return out
}
