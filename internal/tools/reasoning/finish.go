package reasoning

import (
	"context"
	"encoding/json"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

type finishArgs struct {
	Summary      string   `json:"summary"`
	FilesChanged []string `json:"files_changed"`
}

const finishSchema = `{
	"type": "object",
	"properties": {
		"summary": {"type": "string", "minLength": 1, "description": "What was built or changed, and how it was verified"},
		"files_changed": {"type": "array", "items": {"type": "string"}, "description": "Paths created or modified, relative to the project root"}
	},
	"required": ["summary"]
}`

type finishResult struct {
	Status       string   `json:"status"`
	Summary      string   `json:"summary"`
	FilesChanged []string `json:"files_changed,omitempty"`
}

// NewFinishTool creates the finish tool. The agent loop treats a round
// that calls it as complete; the tool itself only echoes its input.
func NewFinishTool() engine.Tool {
	return engine.Tool{
		Name:        engine.FinishToolName,
		Description: "Call this once the task is fully done and verified (run_checks passes). Give a short summary of what you built. The session ends after this round.",
		SchemaJSON:  finishSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[finishArgs](engine.FinishToolName, finishSchema, args)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(finishResult{Status: "complete", Summary: a.Summary, FilesChanged: a.FilesChanged})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
		Metadata: engine.ToolMetadata{
			Category: "meta",
			Tags:     []string{"completion"},
		},
	}
}
