package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) Tool {
	return Tool{
		Name: name,
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("%s ok", name), nil
		},
	}
}

func lastTurn(req Request) Turn {
	return req.Turns[len(req.Turns)-1]
}

func TestLoop_CompletesOnSentinelWithoutFurtherCalls(t *testing.T) {
	llm := script(
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "main.go"}}),
		reply("All done. TASK COMPLETE", FinishOther),
		unexpected(t),
	)
	tools := ToolRegistry{"write_file": echoTool("write_file")}
	a := newTestAgent(t, llm, tools)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, CompletedBySentinel, res.CompletedBy)
	assert.True(t, res.Completed())
	assert.Equal(t, 2, llm.Calls())
	assert.Equal(t, 2, res.Iterations)
}

func TestLoop_IterationsExhausted(t *testing.T) {
	llm := script(callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "a.go"}}))
	tools := ToolRegistry{"write_file": echoTool("write_file")}
	a := newTestAgent(t, llm, tools, withMaxIterations(3))

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err, "exhaustion is not an error")
	assert.Equal(t, StatusIterationsExhausted, res.Status)
	assert.False(t, res.Completed())
	assert.Equal(t, 3, llm.Calls())
}

func TestLoop_ToolResultsKeepCallOrder(t *testing.T) {
	delays := map[string]time.Duration{"a": 40 * time.Millisecond, "b": 0, "c": 15 * time.Millisecond}
	slow := Tool{
		Name: "slow",
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			id := args["id"].(string)
			time.Sleep(delays[id])
			return "done " + id, nil
		},
	}
	llm := script(
		callTools(
			ToolCall{ID: "1", Name: "slow", Args: map[string]any{"id": "a"}},
			ToolCall{ID: "2", Name: "slow", Args: map[string]any{"id": "b"}},
			ToolCall{ID: "3", Name: "slow", Args: map[string]any{"id": "c"}},
		),
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, ToolRegistry{"slow": slow})

	_, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)

	turns := llm.Request(1).Turns
	require.Len(t, turns, 3)

	model := turns[1]
	assert.Equal(t, RoleModel, model.Role)
	require.Len(t, model.ToolCalls(), 3)

	results := turns[2]
	assert.Equal(t, RoleUser, results.Role)
	require.Len(t, results.Parts, 3)
	for i, want := range []string{"a", "b", "c"} {
		r := results.Parts[i].Result
		require.NotNil(t, r)
		assert.Equal(t, "slow", r.Name)
		assert.Equal(t, "done "+want, r.Result)
		assert.Equal(t, fmt.Sprint(i+1), r.CallID)
	}
}

func TestLoop_PinsPathArguments(t *testing.T) {
	var mu sync.Mutex
	var seen []map[string]any
	record := Tool{
		Name: "run_command",
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, args)
			return "ok", nil
		},
	}
	llm := script(
		callTools(
			ToolCall{Name: "run_command", Args: map[string]any{"command": "ls", "cwd": "/tmp/attacker"}},
			ToolCall{Name: "run_command", Args: map[string]any{"command": "npm test", "projectPath": "/tmp/attacker"}},
		),
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, ToolRegistry{"run_command": record})

	_, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)

	require.Len(t, seen, 2)
	for _, args := range seen {
		for _, key := range []string{"cwd", "projectPath"} {
			if v, ok := args[key]; ok {
				assert.Equal(t, "/work/project", v)
			}
		}
	}

	// the recorded model turn carries the pinned arguments
	for _, c := range llm.Request(1).Turns[1].ToolCalls() {
		for _, key := range []string{"cwd", "projectPath"} {
			if v, ok := c.Args[key]; ok {
				assert.Equal(t, "/work/project", v)
			}
		}
	}
}

func TestLoop_EmptyResponsesEndRun(t *testing.T) {
	llm := script(empty(), empty(), empty(), unexpected(t))
	a := newTestAgent(t, llm, nil)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusStalled, res.Status)
	assert.Equal(t, CompletedBySilence, res.CompletedBy)
	assert.True(t, res.Completed())
	assert.Equal(t, 3, llm.Calls())
	assert.Equal(t, 1, a.Conversation().Len(), "empty responses append nothing")
}

func TestLoop_EmptyCounterResetsOnContent(t *testing.T) {
	llm := script(
		empty(), empty(),
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "x"}}),
		empty(), empty(), empty(),
		unexpected(t),
	)
	a := newTestAgent(t, llm, ToolRegistry{"write_file": echoTool("write_file")})

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusStalled, res.Status)
	assert.Equal(t, 6, llm.Calls())
}

func TestLoop_FailingToolsBecomeErrorStrings(t *testing.T) {
	tools := ToolRegistry{
		"boom": Tool{Name: "boom", Fn: func(context.Context, map[string]any) (string, error) {
			panic("kaboom")
		}},
		"bad": Tool{Name: "bad", Fn: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("disk full")
		}},
	}
	llm := script(
		callTools(ToolCall{Name: "boom"}, ToolCall{Name: "bad"}, ToolCall{Name: "missing"}),
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, tools)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, llm.Calls())

	parts := lastTurn(llm.Request(1)).Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "Error: tool panicked: kaboom", parts[0].Result.Result)
	assert.Equal(t, "Error: disk full", parts[1].Result.Result)
	assert.True(t, strings.HasPrefix(parts[2].Result.Result, `Error: unknown tool "missing"`))
}

func TestLoop_NudgesDescriptiveReplies(t *testing.T) {
	llm := script(
		reply("I will now create the server.", FinishOther),
		reply("TASK COMPLETE", FinishOther),
	)
	a := newTestAgent(t, llm, nil)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, CompletedBySentinel, res.CompletedBy)

	turns := llm.Request(1).Turns
	require.Len(t, turns, 3)
	assert.Equal(t, RoleModel, turns[1].Role)
	assert.Equal(t, "I will now create the server.", turns[1].Text())
	assert.Equal(t, RoleUser, turns[2].Role)
	assert.Contains(t, turns[2].Text(), "TASK COMPLETE")
	assert.Contains(t, turns[2].Text(), "Continue")
}

func TestLoop_NaturalStopCompletes(t *testing.T) {
	llm := script(reply("The API is implemented and tests pass.", FinishStop), unexpected(t))
	a := newTestAgent(t, llm, nil)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, CompletedByStop, res.CompletedBy)
	assert.Equal(t, "The API is implemented and tests pass.", res.Summary)
}

func TestLoop_FinishToolCompletesAfterRound(t *testing.T) {
	var wrote bool
	tools := ToolRegistry{
		"write_file": Tool{Name: "write_file", Fn: func(context.Context, map[string]any) (string, error) {
			wrote = true
			return "ok", nil
		}},
		FinishToolName: echoTool(FinishToolName),
	}
	llm := script(
		callTools(
			ToolCall{Name: "write_file", Args: map[string]any{"path": "README.md"}},
			ToolCall{Name: FinishToolName, Args: map[string]any{"summary": "API built"}},
		),
		unexpected(t),
	)
	a := newTestAgent(t, llm, tools)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, CompletedByFinishTool, res.CompletedBy)
	assert.Equal(t, "API built", res.Summary)
	assert.Equal(t, 3, a.Conversation().Len(), "seed, model turn, results turn")
}

func TestLoop_SentinelWithToolCallsRunsRoundFirst(t *testing.T) {
	var wrote bool
	tools := ToolRegistry{
		"write_file": Tool{Name: "write_file", Fn: func(context.Context, map[string]any) (string, error) {
			wrote = true
			return "ok", nil
		}},
	}
	llm := script(
		func(Request) (*Response, error) {
			return &Response{
				Text:         "Writing the README. TASK COMPLETE",
				ToolCalls:    []ToolCall{{ID: "w1", Name: "write_file", Args: map[string]any{"path": "README.md"}}},
				FinishReason: FinishToolCalls,
			}, nil
		},
		unexpected(t),
	)
	a := newTestAgent(t, llm, tools)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.True(t, wrote, "calls in the completing round still execute")
	assert.Equal(t, CompletedBySentinel, res.CompletedBy)
	assert.Equal(t, 1, llm.Calls())

	turns := a.Conversation().Turns()
	require.Len(t, turns, 3, "seed, model turn, results turn")
	require.Len(t, turns[2].Parts, 1)
	assert.Equal(t, "w1", turns[2].Parts[0].Result.CallID)
}

func TestLoop_FatalErrorBecomesUserTurn(t *testing.T) {
	llm := script(
		fail("invalid api key"),
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, nil)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	require.Equal(t, 2, llm.Calls(), "fatal errors are not retried")

	last := lastTurn(llm.Request(1))
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, "Error occurred: invalid api key. Please try a different approach.", last.Text())
}

func TestLoop_TransientErrorsRetriedInsideCall(t *testing.T) {
	llm := script(
		fail("503 Service Unavailable"),
		fail("429 rate limit exceeded"),
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, nil)

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations, "retries happen within one iteration")
	assert.Equal(t, 2, a.State().Retries)
	assert.Equal(t, 2, a.Conversation().Len(), "no error turns appended")
}

func TestLoop_ContextLengthTriggersSummaryReseed(t *testing.T) {
	store := newMemStore()
	llm := script(
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "server.go"}}),
		fail("request exceeds the maximum context length"),
		func(req Request) (*Response, error) {
			assert.Empty(t, req.Tools, "summary call has no tools")
			return &Response{Text: "- wrote server.go"}, nil
		},
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, ToolRegistry{"write_file": echoTool("write_file")}, withStore(store))

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "- wrote server.go", store.saved["/work/project"])

	turns := llm.Request(3).Turns
	require.Len(t, turns, 1)
	text := turns[0].Text()
	assert.Contains(t, text, "build a todo API")
	assert.Contains(t, text, "## Progress summary")
	assert.Contains(t, text, "- wrote server.go")
	assert.Contains(t, text, "Continue from where you left off.")
}

func TestLoop_ContextLengthWithFailingSummaryUsesHeuristic(t *testing.T) {
	store := newMemStore()
	llm := script(
		callTools(
			ToolCall{Name: "write_file", Args: map[string]any{"path": "server.go"}},
			ToolCall{Name: "run_command", Args: map[string]any{"command": "go build ./...", "cwd": "/work/project"}},
		),
		fail("prompt is too long"),
		fail("prompt is too long"),
		reply("TASK COMPLETE", FinishStop),
	)
	tools := ToolRegistry{"write_file": echoTool("write_file"), "run_command": echoTool("run_command")}
	a := newTestAgent(t, llm, tools, withStore(store))

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "- Wrote file: server.go\n- Ran command: go build ./...", store.saved["/work/project"])
}

func TestLoop_SummaryPersistFailureFallsBackToTruncation(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("read-only filesystem")
	llm := script(
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "a"}}),
		fail("context window exceeded"),
		reply("- summary", FinishStop),
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, ToolRegistry{"write_file": echoTool("write_file")}, withStore(store))

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 1, a.State().Compactions)
	// truncation keeps the short history intact
	assert.Len(t, llm.Request(3).Turns, 3)
}

func TestLoop_LightweightCompactionAboveThreshold(t *testing.T) {
	calls := 0
	llm := LLMClientFunc(func(_ context.Context, req Request) (*Response, error) {
		calls++
		if calls == 15 {
			return &Response{Text: "TASK COMPLETE"}, nil
		}
		// every reply reports a prompt above 70% of the 1000-token window
		return &Response{
			ToolCalls: []ToolCall{{Name: "write_file", Args: map[string]any{"path": fmt.Sprint(calls)}}},
			Usage:     Usage{Prompt: 800},
		}, nil
	})
	a := newTestAgent(t, llm, ToolRegistry{"write_file": echoTool("write_file")},
		withBudget(BudgetConfig{MaxContextTokens: 1000, ThresholdFraction: 0.7, KeepRecent: 10}))

	res, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.LessOrEqual(t, a.Conversation().Len(), 11+1)
	first, ok := a.Conversation().First()
	require.True(t, ok)
	assert.Contains(t, first.Text(), "build a todo API")
}

func TestLoop_NoCompactionBelowThreshold(t *testing.T) {
	llm := script(
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "1"}}),
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "2"}}),
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "3"}}),
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "4"}}),
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "5"}}),
		callTools(ToolCall{Name: "write_file", Args: map[string]any{"path": "6"}}),
		reply("TASK COMPLETE", FinishStop),
	)
	a := newTestAgent(t, llm, ToolRegistry{"write_file": echoTool("write_file")},
		withBudget(BudgetConfig{MaxContextTokens: 1000, ThresholdFraction: 0.7, KeepRecent: 2}))

	_, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)
	// 100 reported prompt tokens never cross 700
	assert.Equal(t, 0, a.State().Compactions)
	assert.Equal(t, 1+12+1, a.Conversation().Len())
}

func TestStart_PrefixesSavedSummary(t *testing.T) {
	store := newMemStore()
	store.saved["/work/project"] = "- created schema.sql"
	llm := script(reply("TASK COMPLETE", FinishStop))
	a := newTestAgent(t, llm, nil, withStore(store))

	_, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)

	seed := llm.Request(0).Turns[0].Text()
	assert.True(t, strings.HasPrefix(seed, "## Previous progress\n\n- created schema.sql"))
	assert.Contains(t, seed, "Task: build a todo API")
	assert.Contains(t, seed, "Working directory: /work/project")
}

func TestStart_IncludesDatabaseURL(t *testing.T) {
	llm := script(reply("TASK COMPLETE", FinishStop))
	a := newTestAgent(t, llm, nil)

	task := testTask()
	task.DatabaseURL = "sqlite:///work/project/app.db"
	_, err := a.Start(context.Background(), task)
	require.NoError(t, err)
	assert.Contains(t, llm.Request(0).Turns[0].Text(), "Database URL: sqlite:///work/project/app.db")
}

func TestStart_RejectsEmptyGoal(t *testing.T) {
	a := newTestAgent(t, script(unexpected(t)), nil)
	_, err := a.Start(context.Background(), Task{WorkDir: "/work/project"})
	require.Error(t, err)
}

func TestContinue_ReusesConversation(t *testing.T) {
	llm := script(
		reply("TASK COMPLETE", FinishStop),
		reply("Added the tests. TASK COMPLETE", FinishOther),
	)
	a := newTestAgent(t, llm, nil)

	_, err := a.Continue(context.Background(), "add tests")
	require.Error(t, err, "continue before start")

	_, err = a.Start(context.Background(), testTask())
	require.NoError(t, err)

	res, err := a.Continue(context.Background(), "add tests")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 1, res.Iterations)

	turns := llm.Request(1).Turns
	require.Len(t, turns, 3)
	assert.Equal(t, "add tests", turns[2].Text())
}

func TestLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newTestAgent(t, script(unexpected(t)), nil)

	res, err := a.Start(ctx, testTask())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCancelled, res.Status)
}

func TestLoop_RequestCarriesSystemToolsAndEffort(t *testing.T) {
	llm := script(reply("TASK COMPLETE", FinishStop))
	a := newTestAgent(t, llm, ToolRegistry{"write_file": echoTool("write_file")})

	_, err := a.Start(context.Background(), testTask())
	require.NoError(t, err)

	req := llm.Request(0)
	assert.Equal(t, "test-model", req.Model)
	assert.Contains(t, req.System, "autobuild")
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "write_file", req.Tools[0].Name)
	assert.Equal(t, EffortMedium, req.ReasoningEffort)
}
