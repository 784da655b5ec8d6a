package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentara/mentara/pkg/conversation"
)

// websocketConnPair upgrades a loopback connection and returns its
// server side plus the dialing peer.
func websocketConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- conn
	}))

	peer, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	server := <-accepted

	return server, peer, func() {
		peer.Close()
		server.Close()
		srv.Close()
	}
}

func TestClient_EnqueueDuringCloseDoesNotPanic(t *testing.T) {
	server, _, cleanup := websocketConnPair(t)
	defer cleanup()

	c := newClient("client-1", server)
	go c.writePump()

	// A forwarder keeps enqueueing frames while the client shuts down,
	// the same interleaving a session feed produces when the registry
	// closes every client at once.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			c.enqueue(EventFrame{Type: "event", SessionID: "session-1"})
		}
	}()

	c.close()
	<-done

	assert.False(t, c.enqueue(AckFrame{Type: "joined", SessionID: "session-1"}))
}

func TestClient_JoinAfterCloseIsNoOp(t *testing.T) {
	server, _, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := conversation.NewRegistry(conversation.Config{
		Scheduler: conversation.SchedulerConfig{
			MaxTurns:     1,
			GracePeriod:  time.Minute,
			AgentTimeout: 5 * time.Second,
		},
		EndGrace:      2 * time.Second,
		Retention:     time.Hour,
		SweepInterval: time.Hour,
	}, &pacedAgent{}, nil, zerolog.Nop())
	defer registry.Close(context.Background())

	sess, err := registry.Create(context.Background(), conversation.CreateOptions{})
	require.NoError(t, err)

	c := newClient("client-1", server)
	go c.writePump()
	c.close()

	c.Join(sess)
	assert.Equal(t, 0, sess.SubscriberCount())
	assert.False(t, c.Leave(sess.ID()))
}
