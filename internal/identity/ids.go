package identity

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// EventIDSequence generates the process-local monotonic event ids the
// WAL uses (spec.md §3 Event record, §9 Open Question (a)). Ids are not
// guaranteed unique across restarts by themselves; the orchestrator
// reseeds the sequence from max(id)+1 after WAL replay so that a
// restarted process never reissues an id already on disk.
type EventIDSequence struct {
	next atomic.Uint64
}

// NewEventIDSequence creates a sequence that will hand out start as its
// first value.
func NewEventIDSequence(start uint64) *EventIDSequence {
	s := &EventIDSequence{}
	s.next.Store(start)
	return s
}

// Next returns the next id and advances the sequence.
func (s *EventIDSequence) Next() uint64 {
	return s.next.Add(1) - 1
}

// Reseed advances the sequence to at least floor, never backwards. Used
// after WAL replay to guarantee ids never collide with what's already
// on disk.
func (s *EventIDSequence) Reseed(floor uint64) {
	for {
		cur := s.next.Load()
		if cur >= floor {
			return
		}
		if s.next.CompareAndSwap(cur, floor) {
			return
		}
	}
}

// NewTraceID returns a fresh random trace id for a new request.
func NewTraceID() string {
	return uuid.NewString()
}

// NewRunID returns a fresh random run id.
func NewRunID() string {
	return uuid.NewString()
}
