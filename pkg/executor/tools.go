package executor

import (
	"context"
	"fmt"

	"github.com/fika-labs/agentrelay/pkg/session"
	"github.com/google/uuid"
)

// ToolRunner executes one tool invocation requested by the model.
// Run never returns an error value; failures are carried in the
// result's Error field so they flow back into the conversation.
type ToolRunner interface {
	Run(ctx context.Context, name string, input map[string]any) session.ToolResult
}

// NullRunner rejects every tool invocation. Used when no tool backend
// is configured; the model sees the rejection and can answer without
// the tool.
type NullRunner struct{}

// Run implements ToolRunner
func (NullRunner) Run(ctx context.Context, name string, input map[string]any) session.ToolResult {
	return session.ToolResult{
		Error: fmt.Sprintf("tool %q is not available in this deployment", name),
	}
}

func newMessageID() string {
	return uuid.New().String()
}
