package pipeline

import (
	"sync"
	"time"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

// EventKind labels a pipeline lifecycle notification.
type EventKind string

const (
	EventRunStarted     EventKind = "run_started"
	EventStageStarted   EventKind = "stage_started"
	EventStageCompleted EventKind = "stage_completed"
	EventStageFailed    EventKind = "stage_failed"
	EventRunFinished    EventKind = "run_finished"
)

// Event is one pipeline lifecycle notification, delivered to subscribers
// (the run event stream) as stages start, complete, and fail.
type Event struct {
	RunID  string          `json:"run_id"`
	Kind   EventKind       `json:"kind"`
	Stage  contracts.Stage `json:"stage,omitempty"`
	Detail string          `json:"detail,omitempty"`
	At     time.Time       `json:"at"`
}

// Broadcaster fans pipeline events out to subscribers. Delivery is
// best-effort: a subscriber that cannot keep up loses events rather than
// stalling the run.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop.
		}
	}
}
