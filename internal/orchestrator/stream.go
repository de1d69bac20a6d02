package orchestrator

import (
	"context"

	"github.com/ziXnOrg/ORCA/internal/wal"
)

// streamChannelCapacity bounds StreamEvents' output channel, matching
// spec §5's bounded-channel producer/consumer pattern.
const streamChannelCapacity = 32

// StreamEventsRequest names the conjunctive filters spec.md §4.3 defines
// for StreamEvents. A zero value on any field means "no filter on that
// dimension" except MaxEvents, where zero means unbounded.
type StreamEventsRequest struct {
	RunID        string
	StartEventID uint64
	SinceTSMS    int64
	MaxEvents    int
}

func (r StreamEventsRequest) matches(rec wal.Record) bool {
	if r.RunID != "" && rec.RunID != r.RunID {
		return false
	}
	if rec.ID < r.StartEventID {
		return false
	}
	if rec.TSMillis < r.SinceTSMS {
		return false
	}
	return true
}

// StreamEvents reads the WAL from the start and yields matching records
// in append order on the returned channel, terminating after MaxEvents
// or end-of-log (spec.md §4.3). The channel is closed when the scan
// ends; a scan error is sent on errCh exactly once, after which no more
// records follow. Cancelling ctx stops the scan early without error.
func (s *Service) StreamEvents(ctx context.Context, req StreamEventsRequest) (<-chan wal.Record, <-chan error) {
	out := make(chan wal.Record, streamChannelCapacity)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		sent := 0
		stop := errCancelled{}
		err := wal.ForEach(s.wal.Path(), func(r wal.Record) error {
			select {
			case <-ctx.Done():
				return stop
			default:
			}
			if !req.matches(r) {
				return nil
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return stop
			}
			sent++
			if req.MaxEvents > 0 && sent >= req.MaxEvents {
				return stop
			}
			return nil
		})
		if err != nil && err != stop {
			errCh <- err
		}
	}()

	return out, errCh
}

// errCancelled is a sentinel used internally to stop wal.ForEach's scan
// early (on context cancellation or MaxEvents) without surfacing an
// error to the caller.
type errCancelled struct{}

func (errCancelled) Error() string { return "orchestrator: stream stopped" }
