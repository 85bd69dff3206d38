package session

import "context"

// TurnRequest carries everything an executor needs for one turn
type TurnRequest struct {
	SessionID          string
	SystemPromptSuffix string
	Model              string
	Provider           string
	APIKey             string
	ToolVersion        string
	MaxTokens          int
	Messages           []Message
}

// ToolResult is the outcome of one tool invocation during a turn
type ToolResult struct {
	Output      string
	Error       string
	Base64Image string
}

// Exchange describes one raw provider API round-trip, diagnostic only
type Exchange struct {
	Request    string `json:"request"`
	StatusCode *int   `json:"status"`
	Err        string `json:"error,omitempty"`
}

// TurnCallbacks are invoked by an executor as a turn progresses.
// Any of them may be nil.
type TurnCallbacks struct {
	// OnContent receives each assistant content block as produced
	OnContent func(block ContentBlock)

	// OnToolResult receives each tool invocation's result with the
	// tool_use id it answers
	OnToolResult func(result ToolResult, toolUseID string)

	// OnExchange receives every raw API round-trip, including failed ones
	OnExchange func(ex Exchange)
}

// TurnExecutor performs one agent turn: a model round-trip plus any
// tool invocations. It returns the full updated message history,
// which may contain more entries than the coordinator observed
// through callbacks; the returned history is canonical.
type TurnExecutor interface {
	RunTurn(ctx context.Context, req TurnRequest, cb TurnCallbacks) ([]Message, error)
}

// Store is the persistence surface a coordinator writes through.
// UpsertMessage also bumps the owning session's updated_at.
type Store interface {
	UpsertMessage(ctx context.Context, sessionID string, msg Message) error
}
