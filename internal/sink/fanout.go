package sink

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ziXnOrg/ORCA/internal/logging"
	"github.com/ziXnOrg/ORCA/internal/metrics"
)

var publishFailuresCounter = metrics.NewCounterVec(
	"event_sink_publish_failures",
	"Event sink publish failures by sink name.",
	"sink",
)

// RegisterMetrics adds the fan-out's counters to r.
func RegisterMetrics(r *metrics.Registry) {
	r.Register(publishFailuresCounter)
}

// Fanout publishes a record to every configured sink concurrently,
// using golang.org/x/sync/errgroup to manage the spawned-task pattern
// (SPEC_FULL.md §5) without leaking goroutines on a slow sink. Every
// sink's error is logged and counted independently; Fanout.Publish
// itself never returns an error, matching spec.md §4.2's "a sink
// failure is logged and counted, never retried... and never blocks
// append's return."
type Fanout struct {
	sinks  []EventSink
	logger *slog.Logger
}

// NewFanout builds a Fanout over sinks, in the order they should be
// logged (publish order across sinks is otherwise unordered, since they
// run concurrently).
func NewFanout(logger *slog.Logger, sinks ...EventSink) *Fanout {
	return &Fanout{
		sinks:  sinks,
		logger: logging.Default(logger).With("component", "event-sink-fanout"),
	}
}

// Publish fans line out to every sink concurrently and waits for all of
// them, swallowing individual failures.
func (f *Fanout) Publish(ctx context.Context, runID string, line []byte) {
	if len(f.sinks) == 0 {
		return
	}
	var g errgroup.Group
	for _, s := range f.sinks {
		s := s
		g.Go(func() error {
			if err := s.Publish(ctx, runID, line); err != nil {
				publishFailuresCounter.Inc(s.Name())
				f.logger.Warn("event sink publish failed", "sink", s.Name(), "run_id", runID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
