package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fika-labs/agentrelay/internal/tracing"
	"github.com/fika-labs/agentrelay/pkg/session"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultMaxRounds bounds the model/tool loop within one turn
const DefaultMaxRounds = 10

// ToolDefinition describes one tool offered to the model
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// CallRequest is one model round-trip
type CallRequest struct {
	Model     string
	System    string
	MaxTokens int
	Messages  []session.Message
	Tools     []ToolDefinition
}

// CallResponse carries the assistant blocks from one round-trip
type CallResponse struct {
	Blocks     []session.ContentBlock
	StopReason string
}

// Provider is one model backend. Call returns the exchange descriptor
// alongside the response so failed round-trips are still reportable.
type Provider interface {
	Name() string
	Call(ctx context.Context, req CallRequest) (*CallResponse, session.Exchange, error)
}

// Executor implements session.TurnExecutor on top of a Provider and
// a ToolRunner
type Executor struct {
	provider  Provider
	tools     ToolRunner
	toolDefs  []ToolDefinition
	maxRounds int
	logger    zerolog.Logger
}

// Config holds executor construction parameters
type Config struct {
	Provider  Provider
	Tools     ToolRunner
	ToolDefs  []ToolDefinition
	MaxRounds int
	Logger    zerolog.Logger
}

// NewExecutor creates a turn executor
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.Tools == nil {
		cfg.Tools = &NullRunner{}
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}

	return &Executor{
		provider:  cfg.Provider,
		tools:     cfg.Tools,
		toolDefs:  cfg.ToolDefs,
		maxRounds: cfg.MaxRounds,
		logger:    cfg.Logger,
	}, nil
}

// RunTurn executes one turn and returns the canonical updated history.
// The returned history includes every assistant and tool entry the
// loop produced, not just the final assistant message.
func (e *Executor) RunTurn(ctx context.Context, req session.TurnRequest, cb session.TurnCallbacks) ([]session.Message, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"agentrelay.executor",
		"executor.run_turn",
		attribute.String("session_id", req.SessionID),
		attribute.String("model", req.Model),
		attribute.String("provider", e.provider.Name()),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, e.logger)

	history := make([]session.Message, len(req.Messages))
	copy(history, req.Messages)

	for round := 0; round < e.maxRounds; round++ {
		resp, exchange, err := e.provider.Call(ctx, CallRequest{
			Model:     req.Model,
			System:    req.SystemPromptSuffix,
			MaxTokens: req.MaxTokens,
			Messages:  history,
			Tools:     e.toolDefs,
		})

		if cb.OnExchange != nil {
			cb.OnExchange(exchange)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		var toolUses []session.ContentBlock
		for _, block := range resp.Blocks {
			if cb.OnContent != nil {
				cb.OnContent(block)
			}
			if block.Type == session.BlockToolUse {
				toolUses = append(toolUses, block)
			}
		}

		history = append(history, session.Message{
			ID:        newMessageID(),
			Role:      session.RoleAssistant,
			Content:   session.BlockContent(resp.Blocks...),
			CreatedAt: time.Now().UTC(),
		})

		if len(toolUses) == 0 {
			logger.Debug().
				Int("rounds", round+1).
				Str("stop_reason", resp.StopReason).
				Msg("Turn finished")
			return history, nil
		}

		for _, use := range toolUses {
			result := e.tools.Run(ctx, use.Name, use.Input)
			if cb.OnToolResult != nil {
				cb.OnToolResult(result, use.ToolUseID)
			}
			history = append(history, session.NewToolMessage(
				use.ToolUseID, result.Output, result.Error, result.Base64Image != ""))
		}
	}

	err := fmt.Errorf("turn exceeded %d tool rounds", e.maxRounds)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}
