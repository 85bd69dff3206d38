package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster fans lifecycle events out to all connected clients.
// It implements the transport's Notifier contract.
type Broadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     atomic.Int64
}

// NewBroadcaster creates a broadcaster over a client registry
func NewBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends one event to every connected client. Delivery is
// best-effort; a failed write is logged and the client is skipped.
func (b *Broadcaster) Broadcast(event string, data any) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Seq:       b.seq.Add(1),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event")
		return
	}

	clients := b.clients.GetAll()
	if len(clients) == 0 {
		return
	}

	failed := 0
	for _, client := range clients {
		if err := client.Send(jsonData); err != nil {
			b.logger.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("event", event).
				Msg("Failed to broadcast to client")
			failed++
		}
	}

	b.logger.Debug().
		Str("event", event).
		Int64("seq", msg.Seq).
		Int("clients", len(clients)).
		Int("failed", failed).
		Msg("Event broadcast complete")
}

// SessionCreated implements the lifecycle notifier
func (b *Broadcaster) SessionCreated(id, model string) {
	b.Broadcast(EventSessionCreated, map[string]string{"session_id": id, "model": model})
}

// TurnStarted implements the lifecycle notifier
func (b *Broadcaster) TurnStarted(id string) {
	b.Broadcast(EventTurnStarted, map[string]string{"session_id": id})
}

// TurnCompleted implements the lifecycle notifier
func (b *Broadcaster) TurnCompleted(id string) {
	b.Broadcast(EventTurnCompleted, map[string]string{"session_id": id})
}

// TurnFailed implements the lifecycle notifier
func (b *Broadcaster) TurnFailed(id string, err error) {
	data := map[string]string{"session_id": id}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Broadcast(EventTurnFailed, data)
}
