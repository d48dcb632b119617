package prompts

// Prompt IDs used by the agent loop.
const (
	SystemID    = "system"
	SeedID      = "seed"
	NudgeID     = "nudge"
	SummarizeID = "summarize"
	RecoverID   = "error_recovery"
)

// CompletionPhrase is the sentinel the model writes when the task is done.
const CompletionPhrase = "TASK COMPLETE"

func init() {
	registry := DefaultRegistry()

	registry.Register(&Prompt{
		ID:      SystemID,
		Version: PromptV1,
		Content: `You are autobuild, an autonomous software engineer. You turn a feature request into a working project inside ONE working directory.

Rules:
- Work only inside the working directory. Every tool that takes "cwd" or "projectPath" runs there, whatever you pass.
- Inspect before you change: list_files, read_file, grep and search_code are cheap.
- Write complete files with write_file. Never leave placeholders or TODO stubs.
- After changes, run_checks (build, typecheck, lint, test as the project supports) and fix what fails.
- Use install_dependencies instead of hand-editing lockfiles.
- When a database URL is provided, put schema changes in migrations/ as goose SQL files and apply them with db_migrate; inspect data with db_query.
- If a tool returns an error, read it and try a different approach. Do not repeat the same failing call.
- Keep text replies short. Prefer acting through tools over describing what you would do.

Finishing:
- When the whole request is implemented and checks pass, call the finish tool with a short summary,
  or reply with a final message whose last line is exactly: ` + CompletionPhrase + `
- Do not say the completion phrase until the work is actually done.`,
		Description: "System prompt for the build agent",
		Tags:        []string{"agent", "system"},
	})

	registry.Register(&Prompt{
		ID:      SeedID,
		Version: PromptV1,
		Content: `Task: {{goal}}

Working directory: {{workdir}}
{{database}}
Start by inspecting the working directory, then build the project step by step.`,
		Description: "First user turn of a task",
		Tags:        []string{"agent", "seed"},
	})

	registry.Register(&Prompt{
		ID:      NudgeID,
		Version: PromptV1,
		Content: `Continue working on the task. Use the available tools to make progress. ` +
			`If everything is implemented and verified, call finish or reply with "` + CompletionPhrase + `".`,
		Description: "Injected when the model stops without tool calls or completion",
		Tags:        []string{"agent", "nudge"},
	})

	registry.Register(&Prompt{
		ID:      SummarizeID,
		Version: PromptV1,
		Content: `Summarize the progress of this coding session so another engineer can continue it with no other context.

Include:
- Files and directories created or modified, with their purpose
- Commands run and whether they succeeded
- Decisions made (stack, schema, structure)
- What remains to be done and any known failures

Be concise and factual. Use bullet points.

Conversation:
{{conversation}}`,
		Description: "Progress summary used for heavyweight compaction",
		Tags:        []string{"agent", "compaction"},
	})

	registry.Register(&Prompt{
		ID:          RecoverID,
		Version:     PromptV1,
		Content:     `Error occurred: {{error}}. Please try a different approach.`,
		Description: "Injected after a failed iteration",
		Tags:        []string{"agent", "error"},
	})
}

// Render builds the latest version of a registered prompt with variables.
func Render(id string, vars map[string]string) (string, error) {
	b, err := NewLatestPromptBuilder(DefaultRegistry(), id)
	if err != nil {
		return "", err
	}
	for k, v := range vars {
		b.SetVariable(k, v)
	}
	return b.Build()
}

// MustRender is Render for prompts registered in this package.
func MustRender(id string, vars map[string]string) string {
	s, err := Render(id, vars)
	if err != nil {
		panic(err)
	}
	return s
}
