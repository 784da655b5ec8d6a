package gateway

import (
	"github.com/mentara/mentara/pkg/conversation"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// CreateSessionRequest is the body accepted by POST /api/sessions.
// Turns overrides the configured turn ceiling when present.
type CreateSessionRequest struct {
	Turns *int `json:"turns,omitempty"`
}

// CreateSessionResponse acknowledges a created session.
type CreateSessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// ListSessionsResponse carries summaries of every live session.
type ListSessionsResponse struct {
	Status   string                 `json:"status"`
	Sessions []conversation.Summary `json:"sessions"`
}

// SessionResponse is the full snapshot of one session.
type SessionResponse struct {
	Status     string               `json:"status"`
	SessionID  string               `json:"session_id"`
	Metadata   conversation.Summary `json:"metadata"`
	Events     []conversation.Event `json:"events"`
	Transcript string               `json:"transcript"`
}

// EventsResponse is the long-poll reply. NextIndex is the cursor the
// client should pass as "since" on its next request.
type EventsResponse struct {
	Status    string               `json:"status"`
	SessionID string               `json:"session_id"`
	Events    []conversation.Event `json:"events"`
	NextIndex int                  `json:"next_index"`
}

// EndSessionResponse carries the final snapshot of an ended session.
type EndSessionResponse struct {
	Status     string               `json:"status"`
	SessionID  string               `json:"session_id"`
	Metadata   conversation.Summary `json:"metadata"`
	Transcript string               `json:"transcript"`
}

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse reports liveness for the status command and probes.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	Provider       string `json:"provider"`
}

// ClientCommand is a frame sent by a websocket client. Supported
// actions are "join" and "leave".
type ClientCommand struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// AckFrame acknowledges a client command or reports a command error.
type AckFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EventFrame pushes one conversation event to a joined client.
type EventFrame struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	Event     conversation.Event `json:"event"`
}
