package executor

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ForProvider builds a turn executor for a named provider. The
// provider name is the session's provider selector.
func ForProvider(provider, apiKey string, tools ToolRunner, toolDefs []ToolDefinition, logger zerolog.Logger) (*Executor, error) {
	var backend Provider
	switch provider {
	case "", "anthropic":
		backend = NewAnthropicProvider(apiKey)
	case "openai":
		backend = NewOpenAIProvider(apiKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	return NewExecutor(Config{
		Provider: backend,
		Tools:    tools,
		ToolDefs: toolDefs,
		Logger:   logger,
	})
}
