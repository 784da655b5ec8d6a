package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusResolved Status = "resolved"
	StatusStopped  Status = "stopped"
	StatusEnded    Status = "ended"
)

// Terminal reports whether no further events will be appended in this state.
func (s Status) Terminal() bool {
	switch s {
	case StatusResolved, StatusStopped, StatusEnded:
		return true
	}
	return false
}

// Turn is one role/text pair of the history projection handed to the agent.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Summary is the listing view of a session: metadata only, no log.
type Summary struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	EventCount   int        `json:"event_count"`
	MessageCount int        `json:"message_count"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Snapshot is the full view of a session: metadata, events, and transcript.
type Snapshot struct {
	Summary    Summary `json:"metadata"`
	Events     []Event `json:"events"`
	Transcript string  `json:"transcript"`
}

// Session is one simulated conversation with its own event log and lifecycle.
// The log is owned exclusively by the session; consumers read it through the
// accessor methods below.
type Session struct {
	id        string
	createdAt time.Time
	log       *EventLog

	mu      sync.Mutex
	status  Status
	history []Turn
	endedAt *time.Time

	attachOnce sync.Once
	attached   chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

func newSession(id string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now().UTC(),
		log:       NewEventLog(),
		status:    StatusCreated,
		attached:  make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation timestamp.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = st
	if st.Terminal() {
		now := time.Now().UTC()
		s.endedAt = &now
	}
}

// History returns a copy of the message projection of the log.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// EventsSince returns a copy of all events with index >= since.
func (s *Session) EventsSince(since int) []Event {
	return s.log.Since(since)
}

// EventCount returns the current log length.
func (s *Session) EventCount() int {
	return s.log.Len()
}

// SubscriberCount returns the number of attached push consumers.
func (s *Session) SubscriberCount() int {
	return s.log.SubscriberCount()
}

// Subscribe attaches a push consumer to the session's log.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.log.Subscribe()
}

// AttachConsumer marks that at least one consumer is observing the session,
// releasing the scheduler's initial grace wait. Idempotent.
func (s *Session) AttachConsumer() {
	s.attachOnce.Do(func() { close(s.attached) })
}

func (s *Session) consumerAttached() <-chan struct{} { return s.attached }

// RequestStop raises the cooperative stop flag. The scheduler honors it at the
// next turn boundary; an in-flight model call is never interrupted. Idempotent.
func (s *Session) RequestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Session) stopRequested() <-chan struct{} { return s.stop }

// appendEvent records a non-message event.
func (s *Session) appendEvent(ev Event) Event {
	return s.log.Append(ev)
}

// appendMessage records a message event and advances the history projection in
// the same step, keeping history a faithful projection of the log. Lock order
// is session before log; nothing acquires them in the other direction.
func (s *Session) appendMessage(role Role, text string) (Event, error) {
	ev, err := NewMessageEvent(role, text)
	if err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.log.Append(ev)
	s.history = append(s.history, Turn{Role: role, Text: text})
	return stored, nil
}

// Summary returns the listing view of the session.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	status := s.status
	messages := len(s.history)
	endedAt := s.endedAt
	s.mu.Unlock()

	return Summary{
		ID:           s.id,
		Status:       status,
		EventCount:   s.log.Len(),
		MessageCount: messages,
		CreatedAt:    s.createdAt,
		EndedAt:      endedAt,
	}
}

// Snapshot returns the full view of the session.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Summary:    s.Summary(),
		Events:     s.log.Since(0),
		Transcript: s.Transcript(),
	}
}

// Transcript renders the message history as "Speaker: text" lines.
func (s *Session) Transcript() string {
	history := s.History()
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", titleRole(turn.Role), turn.Text))
	}
	return strings.Join(lines, "\n")
}

func titleRole(role Role) string {
	switch role {
	case RoleStudent:
		return "Student"
	case RoleEducator:
		return "Educator"
	}
	return string(role)
}
