package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTypingEvent_RequiresKnownRole(t *testing.T) {
	ev, err := NewTypingEvent(RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, EventTypeTyping, ev.Type)
	assert.Equal(t, RoleStudent, ev.Role)
	assert.NotEmpty(t, ev.ID)

	_, err = NewTypingEvent(Role("narrator"))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestNewMessageEvent_RejectsEmptyText(t *testing.T) {
	_, err := NewMessageEvent(RoleEducator, "")
	assert.ErrorIs(t, err, ErrInvalidEvent)

	ev, err := NewMessageEvent(RoleEducator, "Let's work through it together.")
	require.NoError(t, err)
	assert.Equal(t, EventTypeMessage, ev.Type)
	assert.Equal(t, "Let's work through it together.", ev.Text)
}

func TestNewFeedbackEvent_RequiresAnalysis(t *testing.T) {
	_, err := NewFeedbackEvent(Feedback{})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	ev, err := NewFeedbackEvent(Feedback{
		Analysis:    "The student is opening up.",
		Suggestions: []string{"What would help right now?"},
	})
	require.NoError(t, err)
	assert.Equal(t, EventTypeFeedback, ev.Type)
	require.NotNil(t, ev.Feedback)
	assert.Len(t, ev.Feedback.Suggestions, 1)
}

func TestEventIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ev, err := NewTypingEvent(RoleStudent)
		require.NoError(t, err)
		assert.False(t, seen[ev.ID])
		seen[ev.ID] = true
	}
}
