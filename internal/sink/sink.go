// Package sink implements the optional, best-effort WAL event fan-out
// described in SPEC_FULL.md §4.2: after a successful WAL append, the
// orchestrator may publish the same record to zero or more external
// targets. A sink failure is logged and counted; it is never retried
// against the WAL and never blocks the append that produced the record.
package sink

import "context"

// EventSink publishes one already-serialized WAL record line to an
// external system, keyed by the run it belongs to.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, runID string, line []byte) error
}
