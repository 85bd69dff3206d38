package gateway

import (
	"net/http"
	"time"

	"github.com/fika-labs/agentrelay/internal/observability"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Server accepts websocket connections and feeds them lifecycle events
type Server struct {
	clients     *ClientRegistry
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// NewServer creates the gateway server
func NewServer(logger zerolog.Logger) *Server {
	observability.EnsureRegistered()

	clients := NewClientRegistry()
	return &Server{
		clients:     clients,
		broadcaster: NewBroadcaster(clients, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Broadcaster returns the lifecycle broadcaster
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	return s.clients.Count()
}

// HandleWS upgrades an HTTP request to a websocket connection and
// keeps it registered until the client disconnects
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  time.Now(),
		LastActivity: time.Now(),
	}

	s.clients.Add(client)
	observability.AddWSClient(1)
	s.logger.Info().
		Str("client_id", clientID).
		Str("remote", r.RemoteAddr).
		Msg("Gateway client connected")

	go s.readLoop(client)
}

// readLoop drains inbound frames until the connection closes. The
// feed is one-way; client frames only refresh activity.
func (s *Server) readLoop(client *Client) {
	defer func() {
		s.clients.Remove(client.ID)
		observability.AddWSClient(-1)
		client.Conn.Close()
		s.logger.Info().Str("client_id", client.ID).Msg("Gateway client disconnected")
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
		client.LastActivity = time.Now()
	}
}
