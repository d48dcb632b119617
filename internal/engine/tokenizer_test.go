package engine

import (
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short word", text: "hello", want: 1},
		{name: "sentence", text: "hello world this is a test", want: 6},
		{name: "code snippet", text: "func main() { fmt.Println(\"hello\") }", want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountTokensForTurns(t *testing.T) {
	tok := DefaultTokenizer{}

	tests := []struct {
		name    string
		turns   []Turn
		minWant int
	}{
		{name: "empty", turns: nil, minWant: 0},
		{name: "single text turn", turns: []Turn{UserText("hello world")}, minWant: 5},
		{
			name: "tool call and result",
			turns: []Turn{
				{Role: RoleModel, Parts: []Part{CallPart(ToolCall{Name: "read_file", Args: map[string]any{"path": "main.go"}})}},
				{Role: RoleUser, Parts: []Part{ResultPart(ToolResult{Name: "read_file", Result: "package main\n\nfunc main() {}\n"})}},
			},
			minWant: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountTokensForTurns(tok, tt.turns, "test-model")
			if got < tt.minWant {
				t.Errorf("CountTokensForTurns() = %v, want >= %v", got, tt.minWant)
			}
		})
	}
}

func TestContextLimitFor(t *testing.T) {
	tests := map[string]int{
		"gemini-2.5-pro":           1000000,
		"claude-sonnet-4-20250514": 200000,
		"gpt-4o-mini":              128000,
		"deepseek-chat":            64000,
		"some-local-model":         DefaultContextTokens,
	}
	for model, want := range tests {
		if got := ContextLimitFor(model); got != want {
			t.Errorf("ContextLimitFor(%q) = %d, want %d", model, got, want)
		}
	}
}

func TestReasoningEffortFor(t *testing.T) {
	if got := ReasoningEffortFor("gemini-2.5-pro"); got != EffortHigh {
		t.Errorf("pro model effort = %s, want high", got)
	}
	if got := ReasoningEffortFor("gemini-2.5-flash"); got != EffortMedium {
		t.Errorf("flash model effort = %s, want medium", got)
	}
}
