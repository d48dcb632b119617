package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

type thinkArgs struct {
	Reasoning string `json:"reasoning"`
	Reason    string `json:"reason"`
}

const thinkSchema = `{
	"type": "object",
	"properties": {
		"reasoning": {"type": "string", "description": "Your reasoning, thought process, or plan. Be specific about what you understand, what you'll do, and why. Include file names and function names when relevant."},
		"reason": {"type": "string", "description": "Alias for 'reasoning'"}
	}
}`

func thinkImpl(a thinkArgs) (string, error) {
	reasoning := a.Reasoning
	if reasoning == "" {
		reasoning = a.Reason
	}
	if strings.TrimSpace(reasoning) == "" {
		return "", fmt.Errorf("reasoning cannot be empty")
	}

	log.Info().Str("reasoning", reasoning).Msg("Agent reasoning")

	out, err := json.Marshal(map[string]string{"status": "noted"})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewThinkTool creates the think tool. It records the model's plan in the
// log and in the conversation without touching the project.
func NewThinkTool() engine.Tool {
	return engine.Tool{
		Name: "think",
		Description: `Record your reasoning and thought process. Use this to make your thinking transparent.

When to use:
- After understanding the task, explain your high-level approach
- Before making changes, explain what you're about to do and why
- When a check fails, work out the cause before editing

Example:
think({"reasoning": "The task needs a /todos REST API. I'll add migrations/00001_todos.sql, run db_migrate, then write internal/api/todos.go and a test, and finish with run_checks."})`,
		SchemaJSON: thinkSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[thinkArgs]("think", thinkSchema, args)
			if err != nil {
				return "", err
			}
			return thinkImpl(a)
		},
		Metadata: engine.ToolMetadata{
			Category: "meta",
			Tags:     []string{"reasoning", "idempotent", "logging"},
		},
	}
}
