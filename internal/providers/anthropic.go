package providers

import (
	"context"
	"encoding/json"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient implements engine.LLMClient on the Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	return &AnthropicClient{client: anthropic.NewClient(apiKey)}, nil
}

// Generate implements engine.LLMClient.
func (c *AnthropicClient) Generate(ctx context.Context, req engine.Request) (*engine.Response, error) {
	areq, err := anthropicRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateMessages(ctx, areq)
	if err != nil {
		return nil, wrapError(err)
	}
	return fromAnthropicResponse(resp), nil
}

func anthropicRequest(req engine.Request) (anthropic.MessagesRequest, error) {
	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	areq := anthropic.MessagesRequest{
		Model:     anthropic.Model(req.Model),
		Messages:  anthropicMessages(req.Turns),
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		t := req.Temperature
		areq.Temperature = &t
	}
	if req.System != "" {
		areq.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: req.System}}
	}

	for _, ts := range req.Tools {
		schema, err := schemaObject(ts)
		if err != nil {
			return areq, err
		}
		areq.Tools = append(areq.Tools, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schema,
		})
	}
	return areq, nil
}

// anthropicMessages maps turns one-to-one; tool results travel inside a
// user message as tool_result blocks, or as text when their call is gone.
func anthropicMessages(turns []engine.Turn) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(turns))
	calls := newCallTracker()
	for _, t := range turns {
		role := anthropic.RoleUser
		if t.Role == engine.RoleModel {
			role = anthropic.RoleAssistant
			calls.observe(t)
		}

		var content []anthropic.MessageContent
		for _, p := range t.Parts {
			switch p.Kind {
			case engine.PartText:
				if p.Text != "" {
					content = append(content, anthropic.NewTextMessageContent(p.Text))
				}
			case engine.PartToolCall:
				argsJSON, _ := json.Marshal(p.Call.Args)
				content = append(content, anthropic.NewToolUseMessageContent(p.Call.ID, p.Call.Name, json.RawMessage(argsJSON)))
			case engine.PartToolResult:
				if !calls.answered(p.Result) {
					content = append(content, anthropic.NewTextMessageContent(orphanText(p.Result)))
					continue
				}
				result := p.Result.Result
				if result == "" {
					result = "{}"
				}
				content = append(content, anthropic.NewToolResultMessageContent(p.Result.CallID, result, engine.IsToolError(result)))
			}
		}
		if len(content) == 0 {
			continue
		}
		out = append(out, anthropic.Message{Role: role, Content: content})
	}
	return out
}

func fromAnthropicResponse(resp anthropic.MessagesResponse) *engine.Response {
	out := &engine.Response{
		FinishReason: engine.FinishOther,
		Usage: engine.Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil && *block.Text != "" {
				out.Text += *block.Text
				out.Parts = append(out.Parts, engine.TextPart(*block.Text))
			}
		case "tool_use":
			if block.MessageContentToolUse == nil || block.ID == "" || block.Name == "" {
				continue
			}
			call := engine.ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: decodeArgs(block.Input),
			}
			out.ToolCalls = append(out.ToolCalls, call)
			out.Parts = append(out.Parts, engine.CallPart(call))
		}
	}

	switch {
	case len(out.ToolCalls) > 0:
		out.FinishReason = engine.FinishToolCalls
	case resp.StopReason == "end_turn":
		out.FinishReason = engine.FinishStop
	case resp.StopReason == "max_tokens":
		out.FinishReason = engine.FinishLength
	}
	return out
}
