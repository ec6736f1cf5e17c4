package eventstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/cephadmd/pkg/types"
)

// DefaultRingSize bounds how many events are retained per subject.
const DefaultRingSize = 50

// EventStore keeps the most recent events for each subject, evicting
// the oldest entry once a subject's ring is full.
type EventStore struct {
	mu       sync.Mutex
	ringSize int
	bySubj   map[string][]types.Event
}

// New returns an EventStore with the given per-subject ring size. A
// size <= 0 uses DefaultRingSize.
func New(ringSize int) *EventStore {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &EventStore{
		ringSize: ringSize,
		bySubj:   make(map[string][]types.Event),
	}
}

func (es *EventStore) add(subject string, level types.EventLevel, message string) types.Event {
	es.mu.Lock()
	defer es.mu.Unlock()

	ev := types.Event{
		ID:        uuid.NewString(),
		Subject:   subject,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	ring := append(es.bySubj[subject], ev)
	if len(ring) > es.ringSize {
		ring = ring[len(ring)-es.ringSize:]
	}
	es.bySubj[subject] = ring
	return ev
}

// Info records an INFO event for subject.
func (es *EventStore) Info(subject, message string) types.Event {
	return es.add(subject, types.EventInfo, message)
}

// Error records an ERROR event for subject.
func (es *EventStore) Error(subject, message string) types.Event {
	return es.add(subject, types.EventError, message)
}

// For returns subject's events, oldest first.
func (es *EventStore) For(subject string) []types.Event {
	es.mu.Lock()
	defer es.mu.Unlock()

	ring := es.bySubj[subject]
	out := make([]types.Event, len(ring))
	copy(out, ring)
	return out
}

// Clear discards every event recorded for subject, called when a
// service or daemon is removed.
func (es *EventStore) Clear(subject string) {
	es.mu.Lock()
	defer es.mu.Unlock()
	delete(es.bySubj, subject)
}
