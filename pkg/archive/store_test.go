package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentara/mentara/pkg/conversation"
)

func testSnapshot(t *testing.T, id string) conversation.Snapshot {
	t.Helper()

	typing, err := conversation.NewTypingEvent(conversation.RoleStudent)
	require.NoError(t, err)
	msg, err := conversation.NewMessageEvent(conversation.RoleStudent, "I'm having a hard week")
	require.NoError(t, err)
	reply, err := conversation.NewMessageEvent(conversation.RoleEducator, "Tell me more about it")
	require.NoError(t, err)

	typing.Index, msg.Index, reply.Index = 0, 1, 2
	now := time.Now().UTC()
	typing.Timestamp, msg.Timestamp, reply.Timestamp = now, now, now

	ended := now
	return conversation.Snapshot{
		Summary: conversation.Summary{
			ID:           id,
			Status:       conversation.StatusEnded,
			EventCount:   3,
			MessageCount: 2,
			CreatedAt:    now,
			EndedAt:      &ended,
		},
		Events:     []conversation.Event{typing, msg, reply},
		Transcript: "Student: I'm having a hard week\nEducator: Tell me more about it",
	}
}

func TestStore_ArchiveAndLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	snap := testSnapshot(t, "session-1")
	require.NoError(t, store.Archive(snap))

	loaded, err := store.Load("session-1")
	require.NoError(t, err)

	assert.Equal(t, snap.Summary.ID, loaded.Summary.ID)
	assert.Equal(t, snap.Summary.Status, loaded.Summary.Status)
	assert.Equal(t, snap.Summary.MessageCount, loaded.Summary.MessageCount)
	require.Len(t, loaded.Events, 3)
	assert.Equal(t, conversation.EventTypeTyping, loaded.Events[0].Type)
	assert.Equal(t, snap.Transcript, loaded.Transcript)
}

func TestStore_LoadUnknownReturnsNotFound(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	_, err = store.Load("no-such-session")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
}

func TestStore_ArchiveRejectsEmptyID(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	err = store.Archive(conversation.Snapshot{})
	assert.Error(t, err)
}

func TestStore_ArchiveOverwritesExisting(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	snap := testSnapshot(t, "session-1")
	require.NoError(t, store.Archive(snap))

	snap.Events = snap.Events[:2]
	snap.Summary.EventCount = 2
	require.NoError(t, store.Archive(snap))

	loaded, err := store.Load("session-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Events, 2)
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Archive(testSnapshot(t, "session-a")))
	require.NoError(t, store.Archive(testSnapshot(t, "session-b")))

	// Stray files in the data directory are not archives.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	ids, err = store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session-a", "session-b"}, ids)
}

func TestStore_LoadSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, store.Archive(testSnapshot(t, "session-1")))

	path := filepath.Join(dir, "session-1.jsonl")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append([]byte("{not json}\n"), data...), 0600))

	loaded, err := store.Load("session-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Events, 3)
}
