package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient implements engine.LLMClient for OpenAI and every
// OpenAI-compatible endpoint (Kimi, DeepSeek, Groq, local servers).
type OpenAIClient struct {
	client  *openai.Client
	baseURL string
}

// NewOpenAIClient creates a client. An empty baseURL targets api.openai.com.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		baseURL: baseURL,
	}, nil
}

// Generate implements engine.LLMClient.
func (c *OpenAIClient) Generate(ctx context.Context, req engine.Request) (*engine.Response, error) {
	oreq, err := openAIRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, wrapError(err)
	}
	return fromOpenAIResponse(resp), nil
}

func openAIRequest(req engine.Request) (openai.ChatCompletionRequest, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	msgs = append(msgs, openAIMessages(req.Turns)...)

	oreq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	}

	for _, ts := range req.Tools {
		schema, err := schemaObject(ts)
		if err != nil {
			return oreq, err
		}
		oreq.Tools = append(oreq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  schema,
			},
		})
	}
	if len(oreq.Tools) > 0 {
		oreq.ToolChoice = "auto"
	}

	if req.MaxTokens > 0 {
		oreq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		oreq.Temperature = &t
	}
	return oreq, nil
}

// openAIMessages flattens turns: a model turn becomes one assistant message
// carrying its tool calls, and each tool result becomes its own tool message.
// Results whose call was truncated away are folded into the user text.
func openAIMessages(turns []engine.Turn) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	calls := newCallTracker()
	for _, t := range turns {
		if t.Role == engine.RoleModel {
			calls.observe(t)
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			msg.Content = t.Text()
			for _, tc := range t.ToolCalls() {
				argsJSON, _ := json.Marshal(tc.Args)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				})
			}
			// The SDK serializes "" as null, which the API rejects when
			// there are no tool calls alongside it.
			if msg.Content == "" {
				msg.Content = " "
			}
			out = append(out, msg)
			continue
		}

		var text string
		for _, p := range t.Parts {
			switch p.Kind {
			case engine.PartToolResult:
				if !calls.answered(p.Result) {
					text += orphanText(p.Result) + "\n"
					continue
				}
				content := p.Result.Result
				if content == "" {
					content = "{}"
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: p.Result.CallID,
					Content:    content,
				})
			case engine.PartText:
				text += p.Text
			}
		}
		if text != "" {
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			})
		}
	}
	return out
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) *engine.Response {
	out := &engine.Response{
		FinishReason: engine.FinishOther,
		Usage: engine.Usage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Text = choice.Message.Content
	if out.Text != "" {
		out.Parts = append(out.Parts, engine.TextPart(out.Text))
	}
	for i, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		call := engine.ToolCall{
			ID:   id,
			Name: tc.Function.Name,
			Args: decodeArgs([]byte(tc.Function.Arguments)),
		}
		out.ToolCalls = append(out.ToolCalls, call)
		out.Parts = append(out.Parts, engine.CallPart(call))
	}

	switch {
	case len(out.ToolCalls) > 0:
		out.FinishReason = engine.FinishToolCalls
	case choice.FinishReason == openai.FinishReasonStop:
		out.FinishReason = engine.FinishStop
	case choice.FinishReason == openai.FinishReasonLength:
		out.FinishReason = engine.FinishLength
	case choice.FinishReason == openai.FinishReasonContentFilter:
		out.FinishReason = engine.FinishFiltered
	}
	return out
}
