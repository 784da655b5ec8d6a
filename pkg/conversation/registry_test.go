package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureArchiver records every snapshot handed to it.
type captureArchiver struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (a *captureArchiver) Archive(snap Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, snap)
	return nil
}

func (a *captureArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.snaps)
}

func testRegistryConfig() Config {
	return Config{
		Scheduler:     fastConfig(1),
		EndGrace:      2 * time.Second,
		Retention:     time.Hour,
		SweepInterval: time.Hour,
	}
}

func waitTerminal(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Status().Terminal()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry(testRegistryConfig(), newStubAgent(), nil, zerolog.Nop())
	defer r.Close(context.Background())

	s, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_GetUnknownReturnsNotFound(t *testing.T) {
	r := NewRegistry(testRegistryConfig(), newStubAgent(), nil, zerolog.Nop())
	defer r.Close(context.Background())

	_, err := r.Get("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_CreateRejectsNegativeTurns(t *testing.T) {
	r := NewRegistry(testRegistryConfig(), newStubAgent(), nil, zerolog.Nop())
	defer r.Close(context.Background())

	_, err := r.Create(context.Background(), CreateOptions{MaxTurns: -3})
	assert.ErrorIs(t, err, ErrInvalidTurnCount)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_ListSortedByCreation(t *testing.T) {
	r := NewRegistry(testRegistryConfig(), newStubAgent(), nil, zerolog.Nop())
	defer r.Close(context.Background())

	first, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	second, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	summaries := r.List()
	require.Len(t, summaries, 2)
	ids := map[string]bool{summaries[0].ID: true, summaries[1].ID: true}
	assert.True(t, ids[first.ID()])
	assert.True(t, ids[second.ID()])
	assert.False(t, summaries[0].CreatedAt.After(summaries[1].CreatedAt))
}

func TestRegistry_EndRemovesSessionAndArchives(t *testing.T) {
	archiver := &captureArchiver{}
	r := NewRegistry(testRegistryConfig(), newStubAgent(), archiver, zerolog.Nop())
	defer r.Close(context.Background())

	s, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	waitTerminal(t, s)

	snap, err := r.End(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), snap.Summary.ID)
	assert.True(t, snap.Summary.Status.Terminal())

	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1, archiver.count())
}

func TestRegistry_EndIsIdempotent(t *testing.T) {
	archiver := &captureArchiver{}
	r := NewRegistry(testRegistryConfig(), newStubAgent(), archiver, zerolog.Nop())
	defer r.Close(context.Background())

	s, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	waitTerminal(t, s)

	first, err := r.End(context.Background(), s.ID())
	require.NoError(t, err)

	second, err := r.End(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, first.Summary.ID, second.Summary.ID)
	assert.Equal(t, first.Transcript, second.Transcript)

	// The archiver only sees the session once.
	assert.Equal(t, 1, archiver.count())
}

func TestRegistry_ConcurrentEndsArchiveOnce(t *testing.T) {
	archiver := &captureArchiver{}
	r := NewRegistry(testRegistryConfig(), newStubAgent(), archiver, zerolog.Nop())
	defer r.Close(context.Background())

	s, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	waitTerminal(t, s)

	// Several Ends race to remove the same session. Whichever loses the
	// removal picks up the winner's tombstone instead of archiving again.
	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < cap(errs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.End(context.Background(), s.ID())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, archiver.count())
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_EndUnknownReturnsNotFound(t *testing.T) {
	r := NewRegistry(testRegistryConfig(), newStubAgent(), nil, zerolog.Nop())
	defer r.Close(context.Background())

	_, err := r.End(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_EndStopsRunningSession(t *testing.T) {
	cfg := testRegistryConfig()
	cfg.Scheduler.MaxTurns = 100
	cfg.Scheduler.StudentDelay = 20 * time.Millisecond
	cfg.Scheduler.EducatorDelay = 20 * time.Millisecond

	r := NewRegistry(cfg, newStubAgent(), nil, zerolog.Nop())
	defer r.Close(context.Background())

	s, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	snap, err := r.End(context.Background(), s.ID())
	require.NoError(t, err)
	assert.True(t, snap.Summary.Status.Terminal())
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_CreateWithTurnOverride(t *testing.T) {
	cfg := testRegistryConfig()
	cfg.Scheduler.MaxTurns = 100

	r := NewRegistry(cfg, newStubAgent(), nil, zerolog.Nop())
	defer r.Close(context.Background())

	s, err := r.Create(context.Background(), CreateOptions{MaxTurns: 1})
	require.NoError(t, err)
	waitTerminal(t, s)

	assert.Equal(t, StatusEnded, s.Status())
	assert.Len(t, messageEvents(s), 2)
}

func TestRegistry_SweepExpiresTerminalSessions(t *testing.T) {
	archiver := &captureArchiver{}
	cfg := testRegistryConfig()
	cfg.Retention = 0

	r := NewRegistry(cfg, newStubAgent(), archiver, zerolog.Nop())
	defer r.Close(context.Background())

	s, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	waitTerminal(t, s)

	// Zero retention makes any ended session immediately eligible.
	time.Sleep(10 * time.Millisecond)
	r.sweep()

	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, archiver.count())
}

func TestRegistry_CloseShutsDownEverything(t *testing.T) {
	cfg := testRegistryConfig()
	cfg.Scheduler.MaxTurns = 100
	cfg.Scheduler.StudentDelay = 20 * time.Millisecond

	r := NewRegistry(cfg, newStubAgent(), nil, zerolog.Nop())

	_, err := r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	_, err = r.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.Close(ctx)

	assert.Equal(t, 0, r.Count())
}
