package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedLLM replays one step per call; the last step repeats.
type scriptedLLM struct {
	mu       sync.Mutex
	steps    []func(req Request) (*Response, error)
	requests []Request
}

func script(steps ...func(req Request) (*Response, error)) *scriptedLLM {
	return &scriptedLLM{steps: steps}
}

func (s *scriptedLLM) Generate(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i](req)
}

func (s *scriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedLLM) Request(i int) Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func reply(text string, finish FinishReason) func(Request) (*Response, error) {
	return func(Request) (*Response, error) {
		return &Response{Text: text, FinishReason: finish, Usage: Usage{Prompt: 100, Completion: 10, Total: 110}}, nil
	}
}

func callTools(calls ...ToolCall) func(Request) (*Response, error) {
	return func(Request) (*Response, error) {
		return &Response{ToolCalls: calls, FinishReason: FinishToolCalls, Usage: Usage{Prompt: 100, Completion: 10, Total: 110}}, nil
	}
}

func empty() func(Request) (*Response, error) {
	return func(Request) (*Response, error) {
		return &Response{FinishReason: FinishOther}, nil
	}
}

func fail(msg string) func(Request) (*Response, error) {
	return func(Request) (*Response, error) {
		return nil, errors.New(msg)
	}
}

func unexpected(t *testing.T) func(Request) (*Response, error) {
	return func(Request) (*Response, error) {
		t.Error("model called more times than expected")
		return &Response{Text: "TASK COMPLETE"}, nil
	}
}

// memStore is an in-memory SummaryStore.
type memStore struct {
	mu      sync.Mutex
	saved   map[string]string
	saveErr error
	loadErr error
}

func newMemStore() *memStore { return &memStore{saved: make(map[string]string)} }

func (m *memStore) Load(dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", m.loadErr
	}
	return m.saved[dir], nil
}

func (m *memStore) Save(dir, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[dir] = summary
	return nil
}

func noSleepPolicy() RetryPolicy {
	p := DefaultLLMRetryPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

type agentOpt func(*AgentBuilder)

func withMaxIterations(n int) agentOpt {
	return func(b *AgentBuilder) { b.WithMaxIterations(n) }
}

func withStore(s *memStore) agentOpt {
	return func(b *AgentBuilder) { b.WithSummaryStore(s) }
}

func withBudget(cfg BudgetConfig) agentOpt {
	return func(b *AgentBuilder) { b.WithBudget(cfg) }
}

func newTestAgent(t *testing.T, llm LLMClient, tools ToolRegistry, opts ...agentOpt) *Agent {
	t.Helper()
	if tools == nil {
		tools = make(ToolRegistry)
	}
	b := NewAgentBuilder().
		WithLLM(llm).
		WithTools(tools).
		WithModel("test-model").
		WithMaxIterations(20).
		WithRetryPolicy(noSleepPolicy()).
		WithHooks(Hooks{NopHook{}}).
		WithSummaryStore(newMemStore())
	for _, o := range opts {
		o(b)
	}
	a, err := b.Build()
	require.NoError(t, err)
	return a
}

func testTask() Task {
	return Task{Goal: "build a todo API", WorkDir: "/work/project"}
}
