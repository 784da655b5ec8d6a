package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/mentara/mentara/internal/observability"
	"github.com/mentara/mentara/internal/tracing"
	"github.com/mentara/mentara/pkg/conversation"
)

// Config controls the HTTP and websocket surface.
type Config struct {
	Host string
	Port int

	// PollInterval is how often a long-poll request re-checks the log.
	PollInterval time.Duration
	// DefaultPollTimeout applies when the client omits ?timeout=.
	DefaultPollTimeout time.Duration
	// MaxPollTimeout caps the client-requested timeout.
	MaxPollTimeout time.Duration

	// Provider is reported by /healthz.
	Provider string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8787,
		PollInterval:       250 * time.Millisecond,
		DefaultPollTimeout: 30 * time.Second,
		MaxPollTimeout:     60 * time.Second,
	}
}

// Server exposes the session registry over REST, long-poll, and
// websocket push.
type Server struct {
	cfg      Config
	registry *conversation.Registry
	clients  *ClientRegistry
	logger   zerolog.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlightReqs   sync.WaitGroup
}

// NewServer wires the gateway around a session registry.
func NewServer(cfg Config, registry *conversation.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		clients:  NewClientRegistry(logger),
		logger:   logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route table. Exposed so tests can mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.track(s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions", s.track(s.handleListSessions))
	mux.HandleFunc("GET /api/sessions/{id}", s.track(s.handleGetSession))
	mux.HandleFunc("GET /api/sessions/{id}/events", s.track(s.handlePollEvents))
	mux.HandleFunc("GET /api/sessions/{id}/transcript", s.track(s.handleTranscript))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.track(s.handleEndSession))
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", observability.MetricsHandler())
	return mux
}

// track wraps a handler so in-flight requests are counted for
// graceful shutdown and refused once shutdown begins.
func (s *Server) track(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			s.writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		s.inFlightReqs.Add(1)
		s.shutdownMu.RUnlock()
		defer s.inFlightReqs.Done()
		h(w, r.WithContext(tracing.NewRequestContext(r.Context())))
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Gateway listening")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()
	return nil
}

// Stop drains in-flight requests, disconnects websocket clients, and
// shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Timed out waiting for in-flight requests")
	}

	s.clients.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		s.writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		conn.Close()
		return
	}

	client := newClient(id, conn)
	s.clients.Add(client)
	s.logger.Info().Str("client_id", id).Msg("Client connected")

	go client.writePump()
	go s.handleClient(client)
}

// handleClient reads join/leave commands until the connection drops.
func (s *Server) handleClient(c *Client) {
	defer func() {
		s.clients.Remove(c.ID)
		s.logger.Info().Str("client_id", c.ID).Msg("Client disconnected")
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.enqueue(AckFrame{Type: "error", Message: "malformed command"})
			continue
		}

		switch cmd.Action {
		case "join":
			sess, err := s.registry.Get(cmd.SessionID)
			if err != nil {
				c.enqueue(AckFrame{Type: "error", SessionID: cmd.SessionID, Message: "session not found"})
				continue
			}
			c.Join(sess)
			c.enqueue(AckFrame{Type: "joined", SessionID: cmd.SessionID})
		case "leave":
			if c.Leave(cmd.SessionID) {
				c.enqueue(AckFrame{Type: "left", SessionID: cmd.SessionID})
			} else {
				c.enqueue(AckFrame{Type: "error", SessionID: cmd.SessionID, Message: "not joined"})
			}
		default:
			c.enqueue(AckFrame{Type: "error", Message: "unknown action"})
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:         statusSuccess,
		ActiveSessions: s.registry.Count(),
		Provider:       s.cfg.Provider,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, ErrorResponse{Status: statusError, Message: msg})
}
