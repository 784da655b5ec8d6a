package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mentara/mentara/internal/observability"
	"github.com/mentara/mentara/pkg/conversation"
)

// outboundBuffer bounds the per-client send queue. A client that
// cannot drain this many frames is disconnected.
const outboundBuffer = 128

// Client is one websocket connection and the set of sessions it has
// joined. All writes to the connection go through the send channel so
// a single goroutine owns the socket.
type Client struct {
	ID   string
	conn *websocket.Conn

	send      chan interface{}
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
	joined map[string]func()
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan interface{}, outboundBuffer),
		joined: make(map[string]func()),
	}
}

// writePump serializes all frames onto the connection. It exits when
// the send channel is closed.
func (c *Client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// enqueue queues a frame for delivery. It reports false when the client
// is closed or its buffer is full, which marks the client for
// disconnection. The send channel is only written to while c.mu is held
// and c.closed is false, so close can safely close it under the same
// lock.
func (c *Client) enqueue(msg interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Join subscribes the client to a session's event feed. Events are
// forwarded as EventFrame messages until the session's feed closes or
// the client leaves. Joining a session twice is a no-op.
func (c *Client) Join(sess *conversation.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.joined[sess.ID()]; ok {
		return
	}

	events, cancel := sess.Subscribe()
	c.joined[sess.ID()] = cancel
	sess.AttachConsumer()
	observability.IncPushSubscribers()

	go func(id string) {
		defer observability.DecPushSubscribers()
		for ev := range events {
			if !c.enqueue(EventFrame{Type: "event", SessionID: id, Event: ev}) {
				c.close()
				return
			}
		}
	}(sess.ID())
}

// Leave cancels the client's subscription to one session.
func (c *Client) Leave(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.joined[sessionID]
	if !ok {
		return false
	}
	cancel()
	delete(c.joined, sessionID)
	return true
}

// close tears down every subscription and the connection itself. Safe
// to call from any goroutine, any number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		for id, cancel := range c.joined {
			cancel()
			delete(c.joined, id)
		}
		close(c.send)
		c.mu.Unlock()
		c.conn.Close()
	})
}

// ClientRegistry tracks all connected websocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  zerolog.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(logger zerolog.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Remove deregisters a client and releases its subscriptions.
func (r *ClientRegistry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	if ok {
		c.close()
	}
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll disconnects every client. Used during shutdown.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
