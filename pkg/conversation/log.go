package conversation

import (
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind the producer is evicted instead of blocking appends.
const subscriberBuffer = 64

// EventLog is the ordered, append-only store of events for one session.
// Append assigns the index and notifies push subscribers inside the same
// critical section, so every consumer observes events in index order.
type EventLog struct {
	mu      sync.Mutex
	events  []Event
	subs    map[int]chan Event
	nextSub int
}

// NewEventLog returns an empty log.
func NewEventLog() *EventLog {
	return &EventLog{subs: make(map[int]chan Event)}
}

// Append assigns the next index and a timestamp, stores the event, and
// forwards it to every live subscriber. It returns the stored event.
func (l *EventLog) Append(ev Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Index = len(l.events)
	ev.Timestamp = time.Now().UTC()
	l.events = append(l.events, ev)

	for id, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop the subscription rather than stall the
			// producer. The consumer can reattach and catch up by index.
			delete(l.subs, id)
			close(ch)
		}
	}

	return ev
}

// Since returns a copy of all events with index >= since. It never blocks and
// returns nil when no newer events exist.
func (l *EventLog) Since(since int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if since < 0 {
		since = 0
	}
	if since >= len(l.events) {
		return nil
	}

	out := make([]Event, len(l.events)-since)
	copy(out, l.events[since:])
	return out
}

// Len returns the current event count.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Subscribe registers a push consumer and returns its channel together with a
// cancel function. Cancel is idempotent and safe to call after eviction. The
// channel only carries events appended after the subscription was taken.
func (l *EventLog) Subscribe() (<-chan Event, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	ch := make(chan Event, subscriberBuffer)
	l.subs[id] = ch

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// SubscriberCount returns the number of live push subscribers.
func (l *EventLog) SubscriberCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
