package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/project"
	"github.com/ChamsBouzaiene/autobuild/internal/prompts"
)

// Task is a build request.
type Task struct {
	Goal        string
	WorkDir     string
	DatabaseURL string // optional
}

// Framing is the task description reused when the conversation is reseeded.
func (t Task) Framing() string {
	s := t.Goal + "\n\nWorking directory: " + t.WorkDir
	if t.DatabaseURL != "" {
		s += "\nDatabase URL: " + t.DatabaseURL
	}
	return s
}

// Agent runs one task at a time. It keeps the conversation between Start
// and later Continue calls so follow-up requests see the prior work.
type Agent struct {
	id        string
	llm       LLMClient
	tools     ToolRegistry
	config    AgentConfig
	hooks     Hooks
	system    string
	store     project.SummaryStore
	tokenizer Tokenizer

	client *RetryingClient
	budget *BudgetManager
	conv   *Conversation
	state  *State
	task   Task
}

// ID returns the session identifier.
func (a *Agent) ID() string { return a.id }

// Start seeds a fresh conversation for task and runs the loop. A summary
// left by an earlier run in the same directory is prefixed to the seed.
func (a *Agent) Start(ctx context.Context, task Task) (Result, error) {
	if strings.TrimSpace(task.Goal) == "" {
		return Result{}, errors.New("task goal is empty")
	}
	if task.WorkDir == "" {
		return Result{}, errors.New("task working directory is empty")
	}
	abs, err := filepath.Abs(task.WorkDir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve working directory: %w", err)
	}
	task.WorkDir = abs
	a.task = task

	a.state = &State{
		SessionID:     a.id,
		Model:         a.config.Model,
		WorkDir:       task.WorkDir,
		Status:        StatusSeeding,
		MaxIterations: a.config.MaxIterations,
	}

	seed, err := a.seedText(task)
	if err != nil {
		return Result{}, err
	}
	a.conv = NewConversation(UserText(seed))
	a.budget = NewBudgetManager(a.config.Budget, a.config.Model, LLMSummarizer{Client: a.client}, a.store, a.tokenizer)

	return a.run(ctx)
}

// Continue appends a follow-up user message to the existing conversation
// and runs the loop again with a fresh iteration budget.
func (a *Agent) Continue(ctx context.Context, message string) (Result, error) {
	if a.conv == nil || a.state == nil {
		return Result{}, errors.New("no task started: call Start first")
	}
	if strings.TrimSpace(message) == "" {
		return Result{}, errors.New("continue message is empty")
	}
	a.conv.Append(UserText(message))

	st := a.state
	st.Iteration = 0
	st.ConsecutiveEmpty = 0
	st.CompletedBy = ""
	st.MaxIterations = a.config.MaxIterations

	return a.run(ctx)
}

// State returns the state of the current or last run. Callers should treat
// it as read-only.
func (a *Agent) State() *State { return a.state }

// Conversation returns the live conversation, or nil before Start.
func (a *Agent) Conversation() *Conversation { return a.conv }

func (a *Agent) seedText(task Task) (string, error) {
	var database string
	if task.DatabaseURL != "" {
		database = "Database URL: " + task.DatabaseURL + "\n"
	}
	seed, err := prompts.Render(prompts.SeedID, map[string]string{
		"goal":     strings.TrimSpace(task.Goal),
		"workdir":  task.WorkDir,
		"database": database,
	})
	if err != nil {
		return "", err
	}

	summary, err := a.store.Load(task.WorkDir)
	if err != nil {
		// A corrupt summary must not block a new task.
		a.hooks.OnIterationError(context.Background(), a.state, fmt.Errorf("load summary: %w", err))
		summary = ""
	}
	if summary == "" {
		return seed, nil
	}
	return "## Previous progress\n\n" + summary + "\n\n" + seed, nil
}

// newRetryingClient wires the client's retry notifications to the hooks.
func (a *Agent) newRetryingClient() *RetryingClient {
	c := &RetryingClient{
		LLM:         a.llm,
		Policy:      a.config.Retry,
		Model:       a.config.Model,
		System:      a.system,
		Tools:       a.tools.Schemas(),
		MaxTokens:   a.config.MaxOutputTokens,
		Temperature: a.config.Temperature,
	}
	c.OnRetry = func(attempt int, delay time.Duration, err error) {
		if a.state != nil {
			a.state.Retries++
		}
		a.hooks.OnRetryAttempt(context.Background(), a.state, attempt, a.config.Retry.MaxRetries, delay, err)
	}
	return c
}
