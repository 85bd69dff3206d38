package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_StringForm(t *testing.T) {
	raw := []byte(`"plain assistant text"`)

	var c Content
	require.NoError(t, json.Unmarshal(raw, &c))
	assert.True(t, c.IsText)
	assert.Equal(t, "plain assistant text", c.Text)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestContent_BlockForm(t *testing.T) {
	raw := []byte(`[
		{"type":"text","text":"Let me check."},
		{"type":"tool_use","name":"computer","input":{"action":"screenshot"},"tool_use_id":"toolu_1"}
	]`)

	var c Content
	require.NoError(t, json.Unmarshal(raw, &c))
	assert.False(t, c.IsText)
	require.Len(t, c.Blocks, 2)
	assert.Equal(t, BlockText, c.Blocks[0].Type)
	assert.Equal(t, BlockToolUse, c.Blocks[1].Type)
	assert.Equal(t, "computer", c.Blocks[1].Name)
}

func TestContent_NilBlocksMarshalAsEmptyArray(t *testing.T) {
	out, err := json.Marshal(Content{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestNewToolMessage(t *testing.T) {
	msg := NewToolMessage("toolu_9", "ok", "", true)

	assert.Equal(t, RoleTool, msg.Role)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	require.Len(t, msg.Content.Blocks, 1)

	block := msg.Content.Blocks[0]
	assert.Equal(t, BlockToolResult, block.Type)
	assert.Equal(t, "toolu_9", block.ToolUseID)
	assert.Equal(t, "ok", block.Output)
	assert.True(t, block.HasImage)
}
