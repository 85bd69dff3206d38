package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Server, string) {
	t.Helper()

	s := NewServer(zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	t.Cleanup(ts.Close)

	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg EventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n },
		2*time.Second, 10*time.Millisecond)
}

func TestBroadcast_ReachesAllClients(t *testing.T) {
	s, url := newTestGateway(t)

	c1 := dial(t, url)
	c2 := dial(t, url)
	waitForClients(t, s, 2)

	s.Broadcaster().SessionCreated("s1", "m1")

	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readEvent(t, conn)
		assert.Equal(t, "event", msg.Type)
		assert.Equal(t, EventSessionCreated, msg.Event)

		data := msg.Data.(map[string]any)
		assert.Equal(t, "s1", data["session_id"])
		assert.Equal(t, "m1", data["model"])
	}
}

func TestBroadcast_SequenceIsMonotonic(t *testing.T) {
	s, url := newTestGateway(t)

	conn := dial(t, url)
	waitForClients(t, s, 1)

	s.Broadcaster().TurnStarted("s1")
	s.Broadcaster().TurnCompleted("s1")

	first := readEvent(t, conn)
	second := readEvent(t, conn)
	assert.Equal(t, EventTurnStarted, first.Event)
	assert.Equal(t, EventTurnCompleted, second.Event)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestBroadcast_TurnFailedCarriesError(t *testing.T) {
	s, url := newTestGateway(t)

	conn := dial(t, url)
	waitForClients(t, s, 1)

	s.Broadcaster().TurnFailed("s1", errors.New("provider unavailable"))

	msg := readEvent(t, conn)
	assert.Equal(t, EventTurnFailed, msg.Event)
	data := msg.Data.(map[string]any)
	assert.Equal(t, "provider unavailable", data["error"])
}

func TestBroadcast_NoClients(t *testing.T) {
	s := NewServer(zerolog.Nop())

	// Must not panic or block with nobody connected
	s.Broadcaster().TurnStarted("s1")
	assert.Equal(t, 0, s.ClientCount())
}

func TestDisconnectRemovesClient(t *testing.T) {
	s, url := newTestGateway(t)

	conn := dial(t, url)
	waitForClients(t, s, 1)

	conn.Close()
	waitForClients(t, s, 0)
}

func TestClientRegistry(t *testing.T) {
	r := NewClientRegistry()
	assert.Equal(t, 0, r.Count())

	r.Add(&Client{ID: "c1"})
	r.Add(&Client{ID: "c2"})
	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.GetAll(), 2)

	r.Remove("c1")
	assert.Equal(t, 1, r.Count())

	// Removing an absent id is a no-op
	r.Remove("c1")
	assert.Equal(t, 1, r.Count())
}
