package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/mentara/mentara/internal/observability"
	"github.com/rs/zerolog"
)

// Agent is the boundary to the language-model collaborator. Implementations
// live in pkg/agent; tests supply scripted fakes. Both calls may fail
// transiently, which the scheduler treats as a skipped turn.
type Agent interface {
	// Utterance produces the next line for the given role. The feedback
	// argument carries the most recent analyst output and is only consulted
	// for the educator.
	Utterance(ctx context.Context, role Role, history []Turn, feedback *Feedback) (string, error)

	// Feedback analyzes the conversation after a student message.
	Feedback(ctx context.Context, history []Turn) (Feedback, error)
}

// SchedulerConfig controls pacing and termination of the turn loop.
type SchedulerConfig struct {
	// MaxTurns bounds the conversation in full student+educator pairs.
	MaxTurns int

	// StudentDelay and EducatorDelay are cosmetic pauses between the typing
	// indicator and the generated message.
	StudentDelay  time.Duration
	EducatorDelay time.Duration

	// GracePeriod is how long a new session waits for a first consumer before
	// starting the conversation anyway.
	GracePeriod time.Duration

	// AgentTimeout bounds each individual model call.
	AgentTimeout time.Duration
}

// DefaultSchedulerConfig mirrors the pacing of the original simulation.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxTurns:      10,
		StudentDelay:  2 * time.Second,
		EducatorDelay: 3 * time.Second,
		GracePeriod:   10 * time.Second,
		AgentTimeout:  60 * time.Second,
	}
}

// resolutionPhrases end the conversation when any appears, case-insensitively,
// in a student message.
var resolutionPhrases = []string{
	"i feel better",
	"thanks for talking",
	"that helps a lot",
	"i should go now",
	"thank you for your help",
}

func isResolved(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range resolutionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Scheduler drives one session's turn loop on its own goroutine. It is the
// only writer to the session's log.
type Scheduler struct {
	session  *Session
	agent    Agent
	cfg      SchedulerConfig
	logger   zerolog.Logger
	feedback *Feedback
}

// NewScheduler builds a scheduler for the given session.
func NewScheduler(s *Session, a Agent, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		session: s,
		agent:   a,
		cfg:     cfg,
		logger:  logger.With().Str("session_id", s.ID()).Logger(),
	}
}

// Run executes the conversation until resolution, the turn ceiling, a stop
// request, or context cancellation. It always leaves the session in a
// terminal state before returning.
func (sch *Scheduler) Run(ctx context.Context) {
	s := sch.session

	sch.waitForConsumer(ctx)
	if sch.shouldStop(ctx) {
		s.setStatus(StatusStopped)
		observability.RecordSessionFinal(string(StatusStopped))
		sch.logger.Info().Msg("Session stopped before first turn")
		return
	}

	s.setStatus(StatusRunning)
	sch.logger.Info().Int("max_turns", sch.cfg.MaxTurns).Msg("Conversation started")

	for pair := 0; pair < sch.cfg.MaxTurns; pair++ {
		if sch.shouldStop(ctx) {
			s.setStatus(StatusStopped)
			observability.RecordSessionFinal(string(StatusStopped))
			sch.logger.Info().Int("pair", pair).Msg("Session stopped at turn boundary")
			return
		}

		text, ok := sch.halfTurn(ctx, RoleStudent)
		if ok {
			sch.collectFeedback(ctx)
			if isResolved(text) {
				s.setStatus(StatusResolved)
				observability.RecordSessionFinal(string(StatusResolved))
				sch.logger.Info().Int("pair", pair).Msg("Conversation resolved")
				return
			}
		}

		if sch.shouldStop(ctx) {
			s.setStatus(StatusStopped)
			observability.RecordSessionFinal(string(StatusStopped))
			sch.logger.Info().Int("pair", pair).Msg("Session stopped at turn boundary")
			return
		}

		sch.halfTurn(ctx, RoleEducator)
	}

	s.setStatus(StatusEnded)
	observability.RecordSessionFinal(string(StatusEnded))
	sch.logger.Info().Msg("Conversation reached turn ceiling")
}

// waitForConsumer holds the session in the created state until a consumer
// attaches, the grace period expires, or the run is cancelled. The
// conversation proceeds unconditionally once the grace period is over.
func (sch *Scheduler) waitForConsumer(ctx context.Context) {
	if sch.cfg.GracePeriod <= 0 {
		return
	}

	timer := time.NewTimer(sch.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-sch.session.consumerAttached():
		sch.logger.Debug().Msg("Consumer attached")
	case <-timer.C:
		sch.logger.Debug().Msg("No consumer attached within grace period, continuing")
	case <-sch.session.stopRequested():
	case <-ctx.Done():
	}
}

// halfTurn emits the typing indicator, paces, and asks the agent for the
// role's next utterance. A failed model call appends nothing beyond the
// typing indicator and reports ok=false; the session carries on.
func (sch *Scheduler) halfTurn(ctx context.Context, role Role) (string, bool) {
	s := sch.session

	typing, err := NewTypingEvent(role)
	if err != nil {
		sch.logger.Error().Err(err).Str("role", string(role)).Msg("Failed to build typing event")
		return "", false
	}
	s.appendEvent(typing)
	observability.RecordEventAppended(string(EventTypeTyping))

	sch.pause(ctx, sch.delayFor(role))

	callCtx, cancel := context.WithTimeout(ctx, sch.cfg.AgentTimeout)
	defer cancel()

	var feedback *Feedback
	if role == RoleEducator {
		feedback = sch.feedback
	}

	start := time.Now()
	text, err := sch.agent.Utterance(callCtx, role, s.History(), feedback)
	observability.RecordAgentCall(string(role), time.Since(start), err)
	if err != nil {
		// Degraded-continue: one failed call never aborts the session.
		sch.logger.Warn().Err(err).Str("role", string(role)).Msg("Agent call failed, skipping turn")
		return "", false
	}

	if _, err := s.appendMessage(role, text); err != nil {
		sch.logger.Warn().Err(err).Str("role", string(role)).Msg("Agent returned an unusable message, skipping turn")
		return "", false
	}
	observability.RecordEventAppended(string(EventTypeMessage))

	sch.logger.Debug().Str("role", string(role)).Int("events", s.EventCount()).Msg("Message appended")
	return text, true
}

// collectFeedback runs the analyst over the full history after a student
// message. Failures are logged and skipped like any other agent failure.
func (sch *Scheduler) collectFeedback(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, sch.cfg.AgentTimeout)
	defer cancel()

	start := time.Now()
	fb, err := sch.agent.Feedback(callCtx, sch.session.History())
	observability.RecordAgentCall("feedback", time.Since(start), err)
	if err != nil {
		sch.logger.Warn().Err(err).Msg("Feedback call failed, skipping")
		return
	}

	ev, err := NewFeedbackEvent(fb)
	if err != nil {
		sch.logger.Warn().Err(err).Msg("Analyst returned unusable feedback, skipping")
		return
	}
	sch.session.appendEvent(ev)
	observability.RecordEventAppended(string(EventTypeFeedback))
	sch.feedback = &fb
}

func (sch *Scheduler) delayFor(role Role) time.Duration {
	if role == RoleEducator {
		return sch.cfg.EducatorDelay
	}
	return sch.cfg.StudentDelay
}

// pause sleeps for the cosmetic typing delay, returning early only on
// cancellation. The cooperative stop flag is deliberately not consulted here:
// stop is honored at turn boundaries only.
func (sch *Scheduler) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (sch *Scheduler) shouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-sch.session.stopRequested():
		return true
	default:
		return false
	}
}
