package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_HistoryTracksMessages(t *testing.T) {
	s := newSession("s-1")

	_, err := s.appendMessage(RoleStudent, "I'm stuck on fractions")
	require.NoError(t, err)
	_, err = s.appendMessage(RoleEducator, "Which part feels hard?")
	require.NoError(t, err)

	typing, err := NewTypingEvent(RoleStudent)
	require.NoError(t, err)
	s.appendEvent(typing)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleStudent, history[0].Role)
	assert.Equal(t, RoleEducator, history[1].Role)

	// Typing indicators count as events but never as history.
	assert.Equal(t, 3, s.EventCount())
}

func TestSession_HistoryReturnsCopy(t *testing.T) {
	s := newSession("s-1")
	_, err := s.appendMessage(RoleStudent, "original")
	require.NoError(t, err)

	history := s.History()
	history[0].Text = "mutated"

	assert.Equal(t, "original", s.History()[0].Text)
}

func TestSession_TerminalStatusIsSticky(t *testing.T) {
	s := newSession("s-1")
	assert.Equal(t, StatusCreated, s.Status())

	s.setStatus(StatusRunning)
	assert.Equal(t, StatusRunning, s.Status())

	s.setStatus(StatusResolved)
	assert.Equal(t, StatusResolved, s.Status())

	s.setStatus(StatusEnded)
	assert.Equal(t, StatusResolved, s.Status())

	summary := s.Summary()
	require.NotNil(t, summary.EndedAt)
}

func TestSession_Transcript(t *testing.T) {
	s := newSession("s-1")
	assert.Equal(t, "", s.Transcript())

	_, err := s.appendMessage(RoleStudent, "I'm worried about the test")
	require.NoError(t, err)
	_, err = s.appendMessage(RoleEducator, "Let's make a plan together")
	require.NoError(t, err)

	want := "Student: I'm worried about the test\nEducator: Let's make a plan together"
	assert.Equal(t, want, s.Transcript())
}

func TestSession_SnapshotCarriesEverything(t *testing.T) {
	s := newSession("s-1")
	_, err := s.appendMessage(RoleStudent, "hello")
	require.NoError(t, err)
	s.setStatus(StatusRunning)

	snap := s.Snapshot()
	assert.Equal(t, "s-1", snap.Summary.ID)
	assert.Equal(t, StatusRunning, snap.Summary.Status)
	assert.Equal(t, 1, snap.Summary.EventCount)
	assert.Equal(t, 1, snap.Summary.MessageCount)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "Student: hello", snap.Transcript)
}

func TestSession_AttachConsumerIsIdempotent(t *testing.T) {
	s := newSession("s-1")

	select {
	case <-s.consumerAttached():
		t.Fatal("attached channel should start open")
	default:
	}

	s.AttachConsumer()
	s.AttachConsumer()

	select {
	case <-s.consumerAttached():
	default:
		t.Fatal("attached channel should be closed after AttachConsumer")
	}
}

func TestSession_RequestStopIsIdempotent(t *testing.T) {
	s := newSession("s-1")
	s.RequestStop()
	s.RequestStop()

	select {
	case <-s.stopRequested():
	default:
		t.Fatal("stop channel should be closed after RequestStop")
	}
}
