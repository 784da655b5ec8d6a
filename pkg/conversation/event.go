package conversation

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// EventType identifies the kind of record appended to a session log.
type EventType string

const (
	EventTypeTyping   EventType = "typing"
	EventTypeMessage  EventType = "message"
	EventTypeFeedback EventType = "feedback"
)

// Role identifies which simulated participant an event belongs to.
type Role string

const (
	RoleStudent  Role = "student"
	RoleEducator Role = "educator"
)

// Feedback carries the analyst's view of the conversation so far.
type Feedback struct {
	Analysis    string   `json:"analysis"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Event is one immutable record in a session's log. Index and Timestamp are
// assigned by the log at append time; everything else is fixed at construction.
type Event struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Type      EventType `json:"type"`
	Role      Role      `json:"role,omitempty"`
	Text      string    `json:"text,omitempty"`
	Feedback  *Feedback `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTypingEvent returns a typing indicator for the given role.
func NewTypingEvent(role Role) (Event, error) {
	if err := validateRole(role); err != nil {
		return Event{}, err
	}
	return Event{ID: newEventID(), Type: EventTypeTyping, Role: role}, nil
}

// NewMessageEvent returns a message event carrying one utterance.
func NewMessageEvent(role Role, text string) (Event, error) {
	if err := validateRole(role); err != nil {
		return Event{}, err
	}
	if text == "" {
		return Event{}, fmt.Errorf("%w: message text cannot be empty", ErrInvalidEvent)
	}
	return Event{ID: newEventID(), Type: EventTypeMessage, Role: role, Text: text}, nil
}

// NewFeedbackEvent returns a feedback event wrapping the analyst output.
func NewFeedbackEvent(fb Feedback) (Event, error) {
	if fb.Analysis == "" {
		return Event{}, fmt.Errorf("%w: feedback analysis cannot be empty", ErrInvalidEvent)
	}
	return Event{ID: newEventID(), Type: EventTypeFeedback, Feedback: &fb}, nil
}

func validateRole(role Role) error {
	switch role {
	case RoleStudent, RoleEducator:
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidEvent, role)
	}
}

func newEventID() string {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the entropy source does
		return fmt.Sprintf("evt-%d", time.Now().UnixNano())
	}
	return id
}
