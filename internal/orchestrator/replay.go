package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/ziXnOrg/ORCA/internal/budget"
	"github.com/ziXnOrg/ORCA/internal/wal"
)

// replay scans the entire WAL and rebuilds every piece of state
// spec.md §4.3 "Replay on start" names: last_event_id_by_run,
// usage_by_run, run_start_ts_by_run, and the set of seen envelope ids.
// It is the sole mechanism by which state survives a restart; nothing
// here is persisted anywhere else.
func (s *Service) replay() error {
	var maxID uint64
	limitsByRun := make(map[string]budget.Limits)

	err := wal.ForEach(s.wal.Path(), func(r wal.Record) error {
		if r.ID > maxID {
			maxID = r.ID
		}

		rs := s.runFor(r.RunID)
		rs.recordEventID(r.ID)

		switch r.EventType {
		case wal.EventStartRun:
			var p startRunPayload
			if err := json.Unmarshal(r.Payload, &p); err != nil {
				return fmt.Errorf("orchestrator: replay start_run %d: %w", r.ID, err)
			}
			rs.mu.Lock()
			rs.label = p.Label
			rs.startTSMillis = r.TSMillis
			rs.mu.Unlock()
			limitsByRun[r.RunID] = p.Limits
			s.budgets.StartRun(r.RunID, p.Limits)

		case wal.EventTaskEnqueued:
			var p taskEnqueuedPayload
			if err := json.Unmarshal(r.Payload, &p); err != nil {
				return fmt.Errorf("orchestrator: replay task_enqueued %d: %w", r.ID, err)
			}
			if p.Envelope.ID != "" {
				s.markSeen(p.Envelope.ID)
			}

		case wal.EventUsageUpdate:
			var p usageUpdatePayload
			if err := json.Unmarshal(r.Payload, &p); err != nil {
				return fmt.Errorf("orchestrator: replay usage_update %d: %w", r.ID, err)
			}
			s.budgets.Restore(r.RunID, limitsByRun[r.RunID], p.Cumulative)
			if p.Agent != "" {
				rs.addAgentUsage(p.Agent, p.Tokens, p.CostMicros)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.ids.Reseed(maxID + 1)
	return nil
}
