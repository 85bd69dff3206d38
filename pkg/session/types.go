package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Content block types
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockThinking   = "thinking"
)

// DefaultMaxTokens is the output-token budget for a single turn
const DefaultMaxTokens = 4096

// ContentBlock is one typed element of a message's content
type ContentBlock struct {
	Type string `json:"type"`

	// text / thinking
	Text string `json:"text,omitempty"`

	// tool_use
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`

	// tool_result payloads synthesized from executor callbacks
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	HasImage bool   `json:"has_image,omitempty"`
}

// Content is either an ordered list of blocks or a bare string.
// It marshals to whichever form it holds, matching the wire format
// clients and the durable store expect.
type Content struct {
	Blocks []ContentBlock
	Text   string
	IsText bool
}

// BlockContent wraps blocks as structured content
func BlockContent(blocks ...ContentBlock) Content {
	return Content{Blocks: blocks}
}

// TextContent wraps a bare string as content
func TextContent(text string) Content {
	return Content{Text: text, IsText: true}
}

// MarshalJSON implements json.Marshaler
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsText {
		return json.Marshal(c.Text)
	}
	if c.Blocks == nil {
		return json.Marshal([]ContentBlock{})
	}
	return json.Marshal(c.Blocks)
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.IsText = true
		c.Blocks = nil
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content is neither a string nor a block list: %w", err)
	}
	c.Blocks = blocks
	c.IsText = false
	c.Text = ""
	return nil
}

// Message is one immutable conversation entry. Messages for a session
// are totally ordered by CreatedAt and that order is the canonical
// conversation replayed into the next turn.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage builds a user message with a single text block
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   BlockContent(ContentBlock{Type: BlockText, Text: text}),
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantMessage builds an assistant message with a single text block
func NewAssistantMessage(text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   BlockContent(ContentBlock{Type: BlockText, Text: text}),
		CreatedAt: time.Now().UTC(),
	}
}

// NewToolMessage synthesizes a tool message from a tool-result callback.
// Raw image bytes are deliberately not embedded; only a flag records
// that an image payload was attached.
func NewToolMessage(toolUseID, output, errText string, hasImage bool) Message {
	return Message{
		ID:   uuid.New().String(),
		Role: RoleTool,
		Content: BlockContent(ContentBlock{
			Type:      BlockToolResult,
			ToolUseID: toolUseID,
			Output:    output,
			Error:     errText,
			HasImage:  hasImage,
		}),
		CreatedAt: time.Now().UTC(),
	}
}
