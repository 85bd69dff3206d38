package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fika-labs/agentrelay/pkg/session"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider for OpenAI chat completions
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Call makes one API call to OpenAI
func (p *OpenAIProvider) Call(ctx context.Context, req CallRequest) (*CallResponse, session.Exchange, error) {
	exchange := session.Exchange{
		Request: fmt.Sprintf("POST /v1/chat/completions model=%s", req.Model),
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	converted, err := toOpenAIMessages(req.Messages)
	if err != nil {
		exchange.Err = err.Error()
		return nil, exchange, err
	}
	messages = append(messages, converted...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, tool := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(tool.InputSchema),
				},
			})
		}
		params.Tools = tools
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			exchange.StatusCode = &apierr.StatusCode
		}
		exchange.Err = err.Error()
		return nil, exchange, err
	}

	ok := 200
	exchange.StatusCode = &ok

	if len(response.Choices) == 0 {
		err := fmt.Errorf("no response choices returned")
		exchange.Err = err.Error()
		return nil, exchange, err
	}

	choice := response.Choices[0]

	blocks := []session.ContentBlock{}
	if choice.Message.Content != "" {
		blocks = append(blocks, session.ContentBlock{
			Type: session.BlockText,
			Text: choice.Message.Content,
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
			return nil, exchange, fmt.Errorf("failed to parse tool arguments: %w", err)
		}
		blocks = append(blocks, session.ContentBlock{
			Type:      session.BlockToolUse,
			Name:      tc.Function.Name,
			Input:     input,
			ToolUseID: tc.ID,
		})
	}

	return &CallResponse{
		Blocks:     blocks,
		StopReason: string(choice.FinishReason),
	}, exchange, nil
}

// toOpenAIMessages converts session history to OpenAI wire format
func toOpenAIMessages(messages []session.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := []openai.ChatCompletionMessageParamUnion{}

	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			out = append(out, openai.UserMessage(flattenText(msg.Content)))

		case session.RoleAssistant:
			toolCalls := []openai.ChatCompletionMessageToolCall{}
			for _, b := range msg.Content.Blocks {
				if b.Type != session.BlockToolUse {
					continue
				}
				args, err := json.Marshal(b.Input)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal tool input: %w", err)
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
					ID:   b.ToolUseID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      b.Name,
						Arguments: string(args),
					},
				})
			}

			if len(toolCalls) > 0 {
				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   flattenText(msg.Content),
					ToolCalls: toolCalls,
				}
				out = append(out, assistantMsg.ToParam())
			} else {
				out = append(out, openai.AssistantMessage(flattenText(msg.Content)))
			}

		case session.RoleTool:
			for _, b := range msg.Content.Blocks {
				if b.Type != session.BlockToolResult {
					continue
				}
				content := b.Output
				if b.Error != "" {
					content = b.Error
				}
				out = append(out, openai.ToolMessage(b.ToolUseID, content))
			}
		}
	}

	return out, nil
}
