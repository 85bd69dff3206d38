package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fika-labs/agentrelay/internal/observability"
	"github.com/fika-labs/agentrelay/internal/tracing"
	"github.com/fika-labs/agentrelay/pkg/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Coordinator owns one session's message history, event queue, and
// turn lock. It serializes agent turns and bridges executor callbacks
// into queued events and persisted rows.
type Coordinator struct {
	sessionID          string
	model              string
	toolVersion        string
	systemPromptSuffix string
	provider           string
	apiKey             string
	maxTokens          int

	store    Store
	executor TurnExecutor
	queue    *stream.Queue
	logger   zerolog.Logger

	// turnMu spans the whole executor invocation: one model/tool turn
	// at a time, not one memory mutation at a time.
	turnMu sync.Mutex

	// histMu guards the slice itself; AddUserMessage appends while a
	// turn may be running, and the next RunOnce picks the entry up.
	histMu  sync.Mutex
	history []Message
}

// CoordinatorConfig holds coordinator construction parameters
type CoordinatorConfig struct {
	SessionID          string
	Model              string
	ToolVersion        string
	SystemPromptSuffix string
	Provider           string
	APIKey             string
	MaxTokens          int

	Store    Store
	Executor TurnExecutor
	Logger   zerolog.Logger
}

// NewCoordinator creates a coordinator for one session
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	observability.EnsureRegistered()

	if cfg.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Coordinator{
		sessionID:          cfg.SessionID,
		model:              cfg.Model,
		toolVersion:        cfg.ToolVersion,
		systemPromptSuffix: cfg.SystemPromptSuffix,
		provider:           cfg.Provider,
		apiKey:             cfg.APIKey,
		maxTokens:          cfg.MaxTokens,
		store:              cfg.Store,
		executor:           cfg.Executor,
		queue:              stream.NewQueue(cfg.SessionID),
		logger:             cfg.Logger.With().Str("session_id", cfg.SessionID).Logger(),
	}, nil
}

// SessionID returns the session identifier
func (c *Coordinator) SessionID() string {
	return c.sessionID
}

// Events returns the session's live event queue
func (c *Coordinator) Events() *stream.Queue {
	return c.queue
}

// History returns a copy of the in-memory message history
func (c *Coordinator) History() []Message {
	c.histMu.Lock()
	defer c.histMu.Unlock()

	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// AddUserMessage appends a user message to the history, persists it,
// and pushes a message event. It never touches the turn lock: a user
// may queue another message while a turn is running, and the next
// RunOnce picks it up.
func (c *Coordinator) AddUserMessage(ctx context.Context, text string) (Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionID(ctx, c.sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"agentrelay.session",
		"session.add_user_message",
		attribute.String("session_id", c.sessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, c.logger)

	msg := NewUserMessage(text)

	c.histMu.Lock()
	c.history = append(c.history, msg)
	c.histMu.Unlock()

	if err := c.persist(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("Failed to persist user message")
		return Message{}, &PersistenceError{SessionID: c.sessionID, Op: "user message", Err: err}
	}

	c.queue.Push(stream.Event{Name: stream.EventMessage, Data: msg})

	logger.Debug().Str("message_id", msg.ID).Msg("User message appended")
	return msg, nil
}

// RunOnce executes a single agent turn. The turn lock is held for the
// entire executor invocation, so turns for one session are strictly
// sequential; a second caller waits rather than running concurrently.
// The lock is released on every exit path.
func (c *Coordinator) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	ctx = tracing.NewTurnContext(ctx, c.sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"agentrelay.session",
		"session.run_once",
		attribute.String("session_id", c.sessionID),
		attribute.String("model", c.model),
		attribute.String("provider", c.provider),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, c.logger)

	start := time.Now()

	c.histMu.Lock()
	snapshotLen := len(c.history)
	history := make([]Message, snapshotLen)
	copy(history, c.history)
	c.histMu.Unlock()

	req := TurnRequest{
		SessionID:          c.sessionID,
		SystemPromptSuffix: c.systemPromptSuffix,
		Model:              c.model,
		Provider:           c.provider,
		APIKey:             c.apiKey,
		ToolVersion:        c.toolVersion,
		MaxTokens:          c.maxTokens,
		Messages:           history,
	}

	newHistory, err := c.executor.RunTurn(ctx, req, TurnCallbacks{
		OnContent:    func(block ContentBlock) { c.onContent(block) },
		OnToolResult: func(result ToolResult, toolUseID string) { c.onToolResult(ctx, result, toolUseID) },
		OnExchange:   func(ex Exchange) { c.onExchange(ex) },
	})

	observability.RecordTurn(c.provider, time.Since(start), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("Turn execution failed")
		return &ExecutionError{SessionID: c.sessionID, Err: err}
	}

	// Persist the final assistant entry, if the executor produced one.
	// Intermediate chunks were streamed but never written.
	if n := len(newHistory); n > 0 && newHistory[n-1].Role == RoleAssistant {
		assistant := newHistory[n-1]
		if assistant.ID == "" {
			assistant.ID = uuid.New().String()
		}
		if assistant.CreatedAt.IsZero() {
			assistant.CreatedAt = time.Now().UTC()
		}
		newHistory[n-1] = assistant

		if err := c.persist(ctx, assistant); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Msg("Failed to persist assistant message")
			return &PersistenceError{SessionID: c.sessionID, Op: "assistant message", Err: err}
		}

		c.queue.Push(stream.Event{Name: stream.EventMessage, Data: assistant})
	}

	// The executor's returned history is canonical: it may contain
	// tool_use and tool_result entries the coordinator never saw via
	// callbacks. Messages appended after the snapshot (a user message
	// sent mid-turn) are carried over so the next turn picks them up.
	c.histMu.Lock()
	if len(c.history) > snapshotLen {
		newHistory = append(newHistory, c.history[snapshotLen:]...)
	}
	c.history = newHistory
	c.histMu.Unlock()

	logger.Debug().
		Int("messages", len(newHistory)).
		Dur("duration", time.Since(start)).
		Msg("Turn completed")

	return nil
}

func (c *Coordinator) onContent(block ContentBlock) {
	c.queue.Push(stream.Event{
		Name: stream.EventAssistantChunk,
		Data: map[string]any{"block": block},
	})
}

func (c *Coordinator) onToolResult(ctx context.Context, result ToolResult, toolUseID string) {
	msg := NewToolMessage(toolUseID, result.Output, result.Error, result.Base64Image != "")

	if err := c.persist(ctx, msg); err != nil {
		// Callback path cannot propagate an error to the turn caller;
		// log it and still deliver the event so a live client sees
		// what the durable log missed.
		log := tracing.LoggerFromContext(ctx, c.logger)
		log.Error().
			Err(err).
			Str("tool_use_id", toolUseID).
			Msg("Failed to persist tool message")
	}

	c.queue.Push(stream.Event{Name: stream.EventMessage, Data: msg})
}

func (c *Coordinator) onExchange(ex Exchange) {
	c.queue.Push(stream.Event{Name: stream.EventHTTPExchange, Data: ex})
}

func (c *Coordinator) persist(ctx context.Context, msg Message) error {
	start := time.Now()
	err := c.store.UpsertMessage(ctx, c.sessionID, msg)
	observability.RecordStoreWrite(time.Since(start))
	return err
}
