package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/factory"
	"github.com/ChamsBouzaiene/autobuild/internal/session"
)

// runner owns everything one CLI invocation sets up around an agent.
type runner struct {
	agent   *engine.Agent
	rt      *factory.Runtime
	store   *session.Store
	record  *session.Session
	events  chan engine.Event
	drained sync.WaitGroup
}

// newRunner loads config for dir and builds a ready agent. watch keeps
// the code index fresh, which only pays off for long interactive sessions.
func newRunner(ctx context.Context, dir, databaseURL string, watch bool) (*runner, error) {
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}

	rt, err := factory.PrepareRuntime(ctx, dir, factory.RuntimeOptions{Sandbox: cfg.Sandbox, Watch: watch})
	if err != nil {
		return nil, err
	}

	r := &runner{rt: rt}
	var hooks []engine.Hook
	if events == "json" {
		r.events = make(chan engine.Event, 256)
		hooks = append(hooks, engine.EventHook{Ch: r.events})
		r.drained.Add(1)
		go func() {
			defer r.drained.Done()
			writeEvents(os.Stdout, r.events)
		}()
	}

	r.agent, err = factory.BuildAgent(ctx, rt, cfg, databaseURL, hooks...)
	if err != nil {
		r.Close()
		return nil, err
	}

	if store, err := session.NewDefaultStore(); err != nil {
		log.Warn().Err(err).Msg("session history disabled")
	} else {
		r.store = store
	}
	r.record = &session.Session{WorkDir: rt.WorkDir, DatabaseURL: databaseURL}
	return r, nil
}

// writeEvents encodes each event as one JSON line until ch is closed.
func writeEvents(w io.Writer, ch <-chan engine.Event) {
	enc := json.NewEncoder(w)
	for ev := range ch {
		if err := enc.Encode(ev); err != nil {
			log.Warn().Err(err).Msg("failed to write event")
		}
	}
}

// start runs goal as a new task.
func (r *runner) start(ctx context.Context, goal string) (engine.Result, error) {
	r.record.Goal = goal
	res, err := r.agent.Start(ctx, engine.Task{Goal: goal, WorkDir: r.rt.WorkDir, DatabaseURL: r.record.DatabaseURL})
	r.save(res, err)
	return res, err
}

// follow sends a follow-up message in the same session.
func (r *runner) follow(ctx context.Context, message string) (engine.Result, error) {
	res, err := r.agent.Continue(ctx, message)
	r.save(res, err)
	return res, err
}

func (r *runner) save(res engine.Result, err error) {
	if r.store == nil || (err != nil && res.Status == "") {
		return
	}
	r.record.Record(r.agent, res)
	if err := r.store.Save(r.record); err != nil {
		log.Warn().Err(err).Msg("failed to save session")
	}
}

// Close stops the event stream and the runtime.
func (r *runner) Close() {
	if r.events != nil {
		close(r.events)
		r.drained.Wait()
	}
	r.rt.Close()
}

// report logs the outcome. Exhausting the iteration budget is a warning,
// not a failure; a cancelled run is an error.
func report(res engine.Result) error {
	ev := log.Info().
		Str("status", string(res.Status)).
		Int("iterations", res.Iterations).
		Int("prompt_tokens", res.Usage.Prompt).
		Int("completion_tokens", res.Usage.Completion)
	if res.CompletedBy != "" {
		ev = ev.Str("completed_by", string(res.CompletedBy))
	}
	ev.Msg("Run finished")

	switch res.Status {
	case engine.StatusIterationsExhausted:
		log.Warn().Int("iterations", res.Iterations).Msg("Iteration budget exhausted before the task was complete; run `autobuild continue` to resume")
	case engine.StatusCancelled:
		return fmt.Errorf("run cancelled")
	}
	if res.Summary != "" && events == "" {
		fmt.Println(res.Summary)
	}
	return nil
}
