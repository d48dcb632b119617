package engine

import (
	"context"
	"encoding/json"
	"strings"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartKind tags the variant held by a Part.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// Part is one piece of a turn. Exactly one of Text, Call or Result is
// meaningful, as selected by Kind.
type Part struct {
	Kind   PartKind    `json:"kind"`
	Text   string      `json:"text,omitempty"`
	Call   *ToolCall   `json:"call,omitempty"`
	Result *ToolResult `json:"result,omitempty"`
}

// ToolCall is a model request to invoke a named tool.
// ID and Signature are opaque provider data that must be echoed back
// unchanged when the turn is replayed.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
	Signature []byte         `json:"signature,omitempty"`
}

// ToolResult answers a ToolCall. Result is always a string: tool failures
// are rendered into it rather than propagated.
type ToolResult struct {
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

// TextPart builds a text part.
func TextPart(s string) Part { return Part{Kind: PartText, Text: s} }

// CallPart builds a tool call part.
func CallPart(c ToolCall) Part { return Part{Kind: PartToolCall, Call: &c} }

// ResultPart builds a tool result part.
func ResultPart(r ToolResult) Part { return Part{Kind: PartToolResult, Result: &r} }

// Turn is one message in the conversation.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// UserText is shorthand for a single-part user turn.
func UserText(s string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{TextPart(s)}}
}

// Text concatenates the text parts of a turn.
func (t Turn) Text() string {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the tool calls in a turn, in order.
func (t Turn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range t.Parts {
		if p.Kind == PartToolCall && p.Call != nil {
			calls = append(calls, *p.Call)
		}
	}
	return calls
}

// FinishReason is the provider-neutral reason a generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishFiltered  FinishReason = "filtered"
	FinishOther     FinishReason = "other"
)

// Usage reports token accounting for one call.
type Usage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// Response is a parsed model reply.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	Parts        []Part // raw parts, replayed verbatim in the model turn
	FinishReason FinishReason
	Usage        Usage
}

// Empty reports whether the model produced neither text nor tool calls.
func (r *Response) Empty() bool {
	return r == nil || (strings.TrimSpace(r.Text) == "" && len(r.ToolCalls) == 0)
}

// ReasoningEffort is a provider hint for how much thinking to spend.
type ReasoningEffort string

const (
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// ToolSchema is a tool description exposed to the LLM.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  json.RawMessage
}

// Request is everything a provider needs for one generation.
type Request struct {
	Model           string
	System          string
	Turns           []Turn
	Tools           []ToolSchema
	ReasoningEffort ReasoningEffort
	MaxTokens       int
	Temperature     float32
}

// LLMClient abstracts a model provider.
type LLMClient interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// LLMClientFunc adapts a function to LLMClient.
type LLMClientFunc func(ctx context.Context, req Request) (*Response, error)

func (f LLMClientFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// ExecutionResult is the structured output of command tools.
type ExecutionResult struct {
	Cmd             string `json:"cmd"`
	ExitCode        int    `json:"exit_code"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	TimedOut        bool   `json:"timed_out"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	Passed          bool   `json:"passed"`
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
}
