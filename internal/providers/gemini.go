package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"google.golang.org/genai"
)

// GeminiClient implements engine.LLMClient on the native Gemini API.
type GeminiClient struct {
	models *genai.Models
}

// NewGeminiClient creates a client for the Gemini developer API.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{models: client.Models}, nil
}

// Generate implements engine.LLMClient.
func (c *GeminiClient) Generate(ctx context.Context, req engine.Request) (*engine.Response, error) {
	cfg, err := geminiConfig(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.models.GenerateContent(ctx, req.Model, geminiContents(req.Turns), cfg)
	if err != nil {
		return nil, wrapError(err)
	}
	return fromGeminiResponse(resp), nil
}

func geminiConfig(req engine.Request) (*genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ReasoningEffort != "" && strings.Contains(req.Model, "gemini-3") {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingLevel: thinkingLevel(req.ReasoningEffort)}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, ts := range req.Tools {
			schema, err := schemaObject(ts)
			if err != nil {
				return nil, err
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 ts.Name,
				Description:          ts.Description,
				ParametersJsonSchema: schema,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg, nil
}

func thinkingLevel(e engine.ReasoningEffort) genai.ThinkingLevel {
	switch e {
	case engine.EffortLow:
		return genai.ThinkingLevelLow
	case engine.EffortHigh:
		return genai.ThinkingLevelHigh
	default:
		return genai.ThinkingLevelMedium
	}
}

// geminiContents maps turns one-to-one. Tool calls are replayed with their
// thought signatures, which Gemini requires on follow-up requests.
func geminiContents(turns []engine.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	calls := newCallTracker()
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == engine.RoleModel {
			role = genai.RoleModel
			calls.observe(t)
		}

		parts := make([]*genai.Part, 0, len(t.Parts))
		for _, p := range t.Parts {
			switch p.Kind {
			case engine.PartText:
				if p.Text != "" {
					parts = append(parts, genai.NewPartFromText(p.Text))
				}
			case engine.PartToolCall:
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   p.Call.ID,
						Name: p.Call.Name,
						Args: p.Call.Args,
					},
					ThoughtSignature: p.Call.Signature,
				})
			case engine.PartToolResult:
				if !calls.answered(p.Result) {
					parts = append(parts, genai.NewPartFromText(orphanText(p.Result)))
					continue
				}
				part := genai.NewPartFromFunctionResponse(p.Result.Name, map[string]any{"result": p.Result.Result})
				part.FunctionResponse.ID = p.Result.CallID
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	return out
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) *engine.Response {
	out := &engine.Response{FinishReason: engine.FinishOther}
	if resp == nil {
		return out
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = engine.Usage{
			Prompt:     int(u.PromptTokenCount),
			Completion: int(u.CandidatesTokenCount),
			Total:      int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}

	cand := resp.Candidates[0]
	var text strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			switch {
			case p == nil || p.Thought:
			case p.FunctionCall != nil:
				call := engine.ToolCall{
					ID:        p.FunctionCall.ID,
					Name:      p.FunctionCall.Name,
					Args:      p.FunctionCall.Args,
					Signature: p.ThoughtSignature,
				}
				if call.Args == nil {
					call.Args = make(map[string]any)
				}
				out.ToolCalls = append(out.ToolCalls, call)
				out.Parts = append(out.Parts, engine.CallPart(call))
			case p.Text != "":
				text.WriteString(p.Text)
				out.Parts = append(out.Parts, engine.TextPart(p.Text))
			}
		}
	}
	out.Text = text.String()

	switch {
	case len(out.ToolCalls) > 0:
		out.FinishReason = engine.FinishToolCalls
	case cand.FinishReason == genai.FinishReasonStop:
		out.FinishReason = engine.FinishStop
	case cand.FinishReason == genai.FinishReasonMaxTokens:
		out.FinishReason = engine.FinishLength
	case cand.FinishReason == genai.FinishReasonSafety:
		out.FinishReason = engine.FinishFiltered
	}
	return out
}
