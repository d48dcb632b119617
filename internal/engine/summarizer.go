package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ChamsBouzaiene/autobuild/internal/prompts"
)

const (
	summaryPartChars  = 1000
	summaryTotalChars = 15000
	heuristicMaxItems = 30
)

const summarizeSystem = `You compress the history of an autonomous coding session. Preserve decisions, file paths, commands, errors and remaining work. Omit pleasantries and redundant logs.`

// Summarizer turns extracted conversation text into a progress summary.
type Summarizer interface {
	Summarize(ctx context.Context, conversation string) (string, error)
}

// LLMSummarizer asks the model itself for the summary, with no tools.
type LLMSummarizer struct {
	Client *RetryingClient
}

func (s LLMSummarizer) Summarize(ctx context.Context, conversation string) (string, error) {
	if s.Client == nil {
		return "", errors.New("summarizer has no client")
	}
	userText, err := prompts.Render(prompts.SummarizeID, map[string]string{"conversation": conversation})
	if err != nil {
		return "", err
	}
	req := Request{
		Model:           s.Client.Model,
		System:          summarizeSystem,
		Turns:           []Turn{UserText(userText)},
		ReasoningEffort: EffortLow,
		MaxTokens:       2048,
	}
	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summary call failed: %w", err)
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", errors.New("summary call returned no text")
	}
	return summary, nil
}

// ExtractConversationText renders turns as "[role] text" lines for the
// summarizer. Each part is capped at 1000 characters and the whole text at
// 15000; tool calls appear only as name().
func ExtractConversationText(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		for _, p := range t.Parts {
			var line string
			switch p.Kind {
			case PartText:
				line = truncateChars(strings.TrimSpace(p.Text), summaryPartChars)
			case PartToolCall:
				if p.Call != nil {
					line = p.Call.Name + "()"
				}
			case PartToolResult:
				if p.Result != nil {
					line = truncateChars(p.Result.Name+": "+p.Result.Result, summaryPartChars)
				}
			}
			if line == "" {
				continue
			}
			b.WriteString("[" + string(t.Role) + "] ")
			b.WriteString(line)
			b.WriteString("\n")
			if b.Len() >= summaryTotalChars {
				return truncateChars(b.String(), summaryTotalChars)
			}
		}
	}
	return b.String()
}

type heuristicSource struct {
	arg   string
	label string
}

// heuristicSources are the side-effecting tools whose arguments are enough
// to reconstruct what was done without the model's help.
var heuristicSources = map[string]heuristicSource{
	"write_file":       {arg: "path", label: "Wrote file"},
	"create_directory": {arg: "path", label: "Created directory"},
	"run_command":      {arg: "command", label: "Ran command"},
}

// HeuristicSummary lists the files written, directories created and
// commands run in the conversation, deduplicated and capped at 30 entries.
func HeuristicSummary(turns []Turn) string {
	seen := make(map[string]bool)
	var items []string
	for _, t := range turns {
		for _, c := range t.ToolCalls() {
			src, ok := heuristicSources[c.Name]
			if !ok {
				continue
			}
			v, _ := c.Args[src.arg].(string)
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			item := src.label + ": " + v
			if seen[item] {
				continue
			}
			seen[item] = true
			items = append(items, "- "+item)
			if len(items) == heuristicMaxItems {
				return strings.Join(items, "\n")
			}
		}
	}
	if len(items) == 0 {
		return "- No files or commands recorded yet."
	}
	return strings.Join(items, "\n")
}

// truncateChars cuts s to at most n bytes without splitting a rune.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
