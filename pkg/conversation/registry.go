package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mentara/mentara/internal/observability"
	"github.com/mentara/mentara/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Archiver persists final snapshots of sessions leaving the registry.
type Archiver interface {
	Archive(snap Snapshot) error
}

// Config holds registry-level defaults for new sessions.
type Config struct {
	Scheduler SchedulerConfig

	// EndGrace bounds how long End waits for the scheduler to honor a stop
	// request before cancelling its context outright.
	EndGrace time.Duration

	// Retention is how long terminal sessions stay in the registry before the
	// sweeper archives and removes them.
	Retention time.Duration

	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval time.Duration
}

// DefaultConfig returns the registry defaults.
func DefaultConfig() Config {
	return Config{
		Scheduler:     DefaultSchedulerConfig(),
		EndGrace:      10 * time.Second,
		Retention:     30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// CreateOptions carries per-session overrides.
type CreateOptions struct {
	// MaxTurns overrides the configured turn ceiling when positive.
	MaxTurns int
}

// entry pairs a session with its scheduler task handle so End can cancel and
// await the background run.
type entry struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Registry owns all active sessions and their scheduler goroutines. The
// registry map has its own lock, independent of every session's log lock, so
// registry churn never contends with event appends.
type Registry struct {
	cfg      Config
	agent    Agent
	archiver Archiver
	logger   zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	ended   map[string]endedSession

	sweepStarted bool
	sweepStop    chan struct{}
	sweepDone    chan struct{}
	sweepOnce    sync.Once
}

// endedSession is the tombstone kept after removal so that a repeated End is
// a no-op success rather than an error.
type endedSession struct {
	snapshot  Snapshot
	removedAt time.Time
}

// NewRegistry builds a registry. The archiver may be nil.
func NewRegistry(cfg Config, a Agent, archiver Archiver, logger zerolog.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		agent:     a,
		archiver:  archiver,
		logger:    logger,
		entries:   make(map[string]*entry),
		ended:     make(map[string]endedSession),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
}

// Create allocates a session, stores it, and starts its scheduler on a
// dedicated goroutine.
func (r *Registry) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	if opts.MaxTurns < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTurnCount, opts.MaxTurns)
	}

	cfg := r.cfg.Scheduler
	if opts.MaxTurns > 0 {
		cfg.MaxTurns = opts.MaxTurns
	}

	s := newSession(uuid.New().String())

	_, span := tracing.StartSpan(ctx, "mentara.conversation", "session.create",
		attribute.String("session_id", s.ID()),
		attribute.Int("max_turns", cfg.MaxTurns),
	)
	defer span.End()

	runCtx, cancel := context.WithCancel(context.Background())
	e := &entry{session: s, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.entries[s.ID()] = e
	active := len(r.entries)
	r.mu.Unlock()
	observability.SetActiveSessions(active)

	sch := NewScheduler(s, r.agent, cfg, r.logger)
	go func() {
		defer close(e.done)
		sch.Run(runCtx)
	}()

	r.logger.Info().
		Str("session_id", s.ID()).
		Int("max_turns", cfg.MaxTurns).
		Msg("Session created")

	return s, nil
}

// Get returns the session for the given id, or ErrSessionNotFound. Sessions
// removed by End or the sweeper are no longer visible here.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.session, nil
}

// List returns summaries of all registered sessions, oldest first.
func (r *Registry) List() []Summary {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.entries))
	for _, e := range r.entries {
		sessions = append(sessions, e.session)
	}
	r.mu.Unlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// End stops the session, waits a bounded grace period for the scheduler to
// finish, removes the session from the registry, and returns its final
// snapshot. Ending an unknown id returns ErrSessionNotFound; ending an id
// that was already ended returns the retained snapshot as a no-op success.
func (r *Registry) End(ctx context.Context, id string) (Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "mentara.conversation", "session.end",
		attribute.String("session_id", id),
	)
	defer span.End()

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		tomb, ended := r.ended[id]
		r.mu.Unlock()
		if ended {
			r.logger.Debug().Str("session_id", id).Msg("Session already ended")
			return tomb.snapshot, nil
		}
		span.SetStatus(codes.Error, ErrSessionNotFound.Error())
		return Snapshot{}, ErrSessionNotFound
	}
	r.mu.Unlock()

	e.session.RequestStop()

	grace := time.NewTimer(r.cfg.EndGrace)
	defer grace.Stop()
	select {
	case <-e.done:
	case <-ctx.Done():
		e.cancel()
		<-e.done
	case <-grace.C:
		// The scheduler did not reach a turn boundary in time; cancel the
		// run context, which also bounds any in-flight model call.
		e.cancel()
		<-e.done
	}

	snap := r.remove(id, e)
	r.logger.Info().
		Str("session_id", id).
		Str("status", string(snap.Summary.Status)).
		Int("events", snap.Summary.EventCount).
		Msg("Session ended")

	return snap, nil
}

// remove takes a session out of the registry, archives it, and leaves a
// tombstone for idempotent End calls. Concurrent removers of the same
// session (an End racing the sweeper, or two Ends) converge on the
// first remover's tombstone, so the session is archived exactly once.
func (r *Registry) remove(id string, e *entry) Snapshot {
	snap := e.session.Snapshot()

	r.mu.Lock()
	if _, present := r.entries[id]; !present {
		tomb := r.ended[id]
		r.mu.Unlock()
		return tomb.snapshot
	}
	delete(r.entries, id)
	r.ended[id] = endedSession{snapshot: snap, removedAt: time.Now().UTC()}
	active := len(r.entries)
	r.mu.Unlock()
	observability.SetActiveSessions(active)

	if r.archiver != nil {
		if err := r.archiver.Archive(snap); err != nil {
			r.logger.Error().Err(err).Str("session_id", id).Msg("Failed to archive session")
		}
	}
	return snap
}

// StartSweeper launches the background expiry loop. Terminal sessions older
// than the retention window are archived and removed; tombstones past the
// window are dropped.
func (r *Registry) StartSweeper() {
	r.mu.Lock()
	if r.sweepStarted {
		r.mu.Unlock()
		return
	}
	r.sweepStarted = true
	r.mu.Unlock()

	go func() {
		defer close(r.sweepDone)
		ticker := time.NewTicker(r.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.sweepStop:
				return
			}
		}
	}()

	r.logger.Info().
		Dur("retention", r.cfg.Retention).
		Dur("interval", r.cfg.SweepInterval).
		Msg("Session sweeper started")
}

// StopSweeper stops the expiry loop. Idempotent, and a no-op when the
// sweeper was never started.
func (r *Registry) StopSweeper() {
	r.mu.Lock()
	started := r.sweepStarted
	r.mu.Unlock()
	if !started {
		return
	}
	r.sweepOnce.Do(func() { close(r.sweepStop) })
	<-r.sweepDone
}

func (r *Registry) sweep() {
	cutoff := time.Now().UTC().Add(-r.cfg.Retention)

	r.mu.Lock()
	expired := make(map[string]*entry)
	for id, e := range r.entries {
		summary := e.session.Summary()
		if summary.Status.Terminal() && summary.EndedAt != nil && summary.EndedAt.Before(cutoff) {
			expired[id] = e
		}
	}
	for id, tomb := range r.ended {
		if tomb.removedAt.Before(cutoff) {
			delete(r.ended, id)
		}
	}
	r.mu.Unlock()

	for id, e := range expired {
		e.cancel()
		<-e.done
		r.remove(id, e)
		r.logger.Info().Str("session_id", id).Msg("Expired session removed")
	}
}

// Close stops the sweeper and shuts down every remaining session, waiting a
// bounded grace period per session.
func (r *Registry) Close(ctx context.Context) {
	r.StopSweeper()

	r.mu.Lock()
	remaining := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		remaining[id] = e
	}
	r.mu.Unlock()

	for id, e := range remaining {
		e.session.RequestStop()
		e.cancel()
		select {
		case <-e.done:
		case <-ctx.Done():
		}
		r.remove(id, e)
	}

	r.logger.Info().Int("sessions", len(remaining)).Msg("Registry closed")
}
