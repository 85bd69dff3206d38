package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fika-labs/agentrelay/pkg/session"
)

// AnthropicProvider implements Provider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Call makes one API call to Anthropic Claude
func (p *AnthropicProvider) Call(ctx context.Context, req CallRequest) (*CallResponse, session.Exchange, error) {
	exchange := session.Exchange{
		Request: fmt.Sprintf("POST /v1/messages model=%s", req.Model),
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  toAnthropicMessages(req.Messages),
		MaxTokens: int64(req.MaxTokens),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	if len(req.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, tool := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
			}
			if tool.InputSchema != nil {
				toolParam.InputSchema = anthropic.ToolInputSchemaParam{
					Properties: tool.InputSchema["properties"],
				}
				if required, ok := tool.InputSchema["required"].([]string); ok {
					toolParam.InputSchema.Required = required
				}
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			exchange.StatusCode = &apierr.StatusCode
		}
		exchange.Err = err.Error()
		return nil, exchange, err
	}

	ok := 200
	exchange.StatusCode = &ok

	blocks := []session.ContentBlock{}
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, session.ContentBlock{
				Type: session.BlockText,
				Text: b.Text,
			})
		case anthropic.ThinkingBlock:
			blocks = append(blocks, session.ContentBlock{
				Type: session.BlockThinking,
				Text: b.Thinking,
			})
		case anthropic.ToolUseBlock:
			var input map[string]any
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &input); err != nil {
				return nil, exchange, fmt.Errorf("failed to parse tool input: %w", err)
			}
			blocks = append(blocks, session.ContentBlock{
				Type:      session.BlockToolUse,
				Name:      b.Name,
				Input:     input,
				ToolUseID: b.ID,
			})
		}
	}

	return &CallResponse{
		Blocks:     blocks,
		StopReason: string(response.StopReason),
	}, exchange, nil
}

// toAnthropicMessages converts session history to Anthropic wire format
func toAnthropicMessages(messages []session.Message) []anthropic.MessageParam {
	out := []anthropic.MessageParam{}

	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewTextBlock(flattenText(msg.Content)),
			))

		case session.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content.IsText {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content.Text))
			}
			for _, b := range msg.Content.Blocks {
				switch b.Type {
				case session.BlockText:
					blocks = append(blocks, anthropic.NewTextBlock(b.Text))
				case session.BlockToolUse:
					blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, b.Input, b.Name))
				}
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})

		case session.RoleTool:
			// Tool results go back to the model as user-authored blocks
			for _, b := range msg.Content.Blocks {
				if b.Type != session.BlockToolResult {
					continue
				}
				content := b.Output
				isError := false
				if b.Error != "" {
					content = b.Error
					isError = true
				}
				out = append(out, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(b.ToolUseID, content, isError),
				))
			}
		}
	}

	return out
}

// flattenText collapses content to its textual parts
func flattenText(c session.Content) string {
	if c.IsText {
		return c.Text
	}
	text := ""
	for _, b := range c.Blocks {
		if b.Type == session.BlockText {
			text += b.Text
		}
	}
	return text
}
