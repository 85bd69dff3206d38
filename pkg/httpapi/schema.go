package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Request defaults, matching the published client expectations
const (
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultToolVersion = "computer_use_20250124"
)

const createSessionSchema = `{
	"type": "object",
	"properties": {
		"model": {"type": "string", "minLength": 1},
		"tool_version": {
			"type": "string",
			"enum": ["computer_use_20241022", "computer_use_20250124"]
		},
		"system_prompt_suffix": {"type": "string"}
	},
	"additionalProperties": false
}`

const sendMessageSchema = `{
	"type": "object",
	"properties": {
		"content": {"type": "string", "minLength": 1}
	},
	"required": ["content"],
	"additionalProperties": false
}`

// createSessionRequest is the validated POST /sessions body
type createSessionRequest struct {
	Model              string `json:"model"`
	ToolVersion        string `json:"tool_version"`
	SystemPromptSuffix string `json:"system_prompt_suffix"`
}

// sendMessageRequest is the validated POST /sessions/{id}/messages body
type sendMessageRequest struct {
	Content string `json:"content"`
}

// validateBody checks raw JSON against a schema and decodes it into out
func validateBody(schema string, body []byte, out any) error {
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return fmt.Errorf("request validation failed: %s", strings.Join(reasons, "; "))
	}

	return json.Unmarshal(body, out)
}

func parseCreateSession(body []byte) (createSessionRequest, error) {
	var req createSessionRequest
	if err := validateBody(createSessionSchema, body, &req); err != nil {
		return createSessionRequest{}, err
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.ToolVersion == "" {
		req.ToolVersion = DefaultToolVersion
	}
	return req, nil
}

func parseSendMessage(body []byte) (sendMessageRequest, error) {
	var req sendMessageRequest
	if err := validateBody(sendMessageSchema, body, &req); err != nil {
		return sendMessageRequest{}, err
	}
	return req, nil
}
