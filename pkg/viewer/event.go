package viewer

import (
	"sync"
	"time"
)

// EventKind identifies the type of session notification.
type EventKind string

const (
	EventReady       EventKind = "ready"
	EventError       EventKind = "error"
	EventModeChanged EventKind = "mode_changed"
)

// Event is an immutable notification sent to the host.
type Event struct {
	Kind      EventKind
	SessionID string
	Timestamp time.Time
	Mode      Mode   // set for ready and mode_changed
	Message   string // human-readable, set for error
	Err       error  // wrapped cause, set for error
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe. A
// subscription taken after Close receives a closed channel.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. If a subscriber's buffer is full
// the event is dropped for that subscriber so a slow host never stalls the
// session.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// Close closes every subscription. Later Publish calls are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
