// Package anthropic adapts the Anthropic SDK to the llmclient.Client
// interface, generalizing the request/response conversion the teacher's
// agent_go/internal/llm/anthropicadapter package performs for its own
// langchaingo-shaped Model interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"repairbench/internal/agent/llmclient"
	"repairbench/internal/obslog"
)

// Client wraps an anthropic.Client bound to one model ID.
type Client struct {
	sdk     anthropic.Client
	modelID string
	logger  *obslog.Logger
}

// New returns a Client wrapping sdk. The caller constructs sdk with
// whatever credentials it uses; New itself reads no API key.
func New(sdk anthropic.Client, modelID string, logger *obslog.Logger) *Client {
	return &Client{sdk: sdk, modelID: modelID, logger: logger}
}

// Complete performs one non-streaming completion, converting the
// provider-agnostic request into Anthropic's message/tool shapes and the
// response back into llmclient's shape.
func (c *Client) Complete(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelID),
		MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case llmclient.RoleUser:
			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser, Content: []anthropic.ContentBlockParamUnion{block},
			})
		case llmclient.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant, Content: []anthropic.ContentBlockParamUnion{block},
			})
		}
	}

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			propsJSON, _ := json.Marshal(t.Parameters)
			var schema map[string]any
			_ = json.Unmarshal(propsJSON, &schema)
			properties, _ := schema["properties"].(map[string]any)
			var required []string
			if reqd, ok := schema["required"].([]any); ok {
				for _, r := range reqd {
					if s, ok := r.(string); ok {
						required = append(required, s)
					}
				}
			}
			params.Tools = append(params.Tools, anthropic.ToolUnionParamOfTool(
				anthropic.ToolInputSchemaParam{Properties: properties, Required: required},
				t.Name,
			))
		}
	}

	if c.logger != nil {
		c.logger.With(map[string]any{
			"model": c.modelID, "messages": len(req.Messages), "tools": len(req.Tools),
		}).Debugf("llm request")
	}

	message, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return llmclient.Response{}, fmt.Errorf("anthropic: completion: %w", err)
	}

	var resp llmclient.Response
	resp.StopReason = string(message.StopReason)
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			args := block.Input
			if len(args) == 0 {
				args = []byte("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, llmclient.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			})
		}
	}
	return resp, nil
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}
