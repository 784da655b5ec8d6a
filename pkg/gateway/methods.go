package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mentara/mentara/internal/observability"
	"github.com/mentara/mentara/internal/tracing"
	"github.com/mentara/mentara/pkg/conversation"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	var opts conversation.CreateOptions
	if req.Turns != nil {
		opts.MaxTurns = *req.Turns
	}

	sess, err := s.registry.Create(r.Context(), opts)
	if err != nil {
		if errors.Is(err, conversation.ErrInvalidTurnCount) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	log := tracing.LoggerFromContext(tracing.WithSessionID(r.Context(), sess.ID()), s.logger)
	log.Info().Msg("Session created")
	s.writeJSON(w, http.StatusCreated, CreateSessionResponse{
		Status:    statusSuccess,
		SessionID: sess.ID(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ListSessionsResponse{
		Status:   statusSuccess,
		Sessions: s.registry.List(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	snap := sess.Snapshot()
	s.writeJSON(w, http.StatusOK, SessionResponse{
		Status:     statusSuccess,
		SessionID:  sess.ID(),
		Metadata:   snap.Summary,
		Events:     snap.Events,
		Transcript: snap.Transcript,
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sess.Transcript()))
}

// handlePollEvents is the long-poll feed. It returns immediately when
// events past the client's cursor exist, otherwise it re-checks the
// log at the poll interval until the timeout elapses. An empty result
// is a success, not an error.
func (s *Server) handlePollEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	since := 0
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = strconv.Atoi(raw)
		if err != nil || since < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
	}

	timeout := s.cfg.DefaultPollTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			s.writeError(w, http.StatusBadRequest, "timeout must be a non-negative integer")
			return
		}
		timeout = time.Duration(secs) * time.Second
		if timeout > s.cfg.MaxPollTimeout {
			timeout = s.cfg.MaxPollTimeout
		}
	}

	// The session pointer outlives registry removal, so a poll in
	// flight when the session ends still drains the final events.
	sess.AttachConsumer()

	start := time.Now()
	defer func() { observability.RecordLongPoll(time.Since(start)) }()

	events := sess.EventsSince(since)
	if len(events) == 0 && timeout > 0 {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()

	wait:
		for {
			select {
			case <-ticker.C:
				if events = sess.EventsSince(since); len(events) != 0 {
					break wait
				}
				if sess.Status().Terminal() {
					break wait
				}
			case <-deadline.C:
				break wait
			case <-r.Context().Done():
				return
			}
		}
	}

	s.writeJSON(w, http.StatusOK, EventsResponse{
		Status:    statusSuccess,
		SessionID: sess.ID(),
		Events:    events,
		NextIndex: since + len(events),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.registry.End(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	log := tracing.LoggerFromContext(tracing.WithSessionID(r.Context(), id), s.logger)
	log.Info().Msg("Session ended")
	s.writeJSON(w, http.StatusOK, EndSessionResponse{
		Status:     statusSuccess,
		SessionID:  id,
		Metadata:   snap.Summary,
		Transcript: snap.Transcript,
	})
}
