// Package factory prepares the per-project runtime (command runner and
// code index) and builds agents on top of it.
package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ChamsBouzaiene/autobuild/internal/coder"
	"github.com/ChamsBouzaiene/autobuild/internal/config"
	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/indexer"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
)

// Runtime holds the long-lived services one project needs.
type Runtime struct {
	WorkDir string
	Runner  sandbox.Runner
	Index   *indexer.CodeIndex // nil when indexing failed
	watcher *indexer.Watcher
}

// Close stops the watcher and releases the index.
func (r *Runtime) Close() {
	if r.watcher != nil {
		if err := r.watcher.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop file watcher")
		}
	}
	if r.Index != nil {
		if err := r.Index.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close code index")
		}
	}
}

// RuntimeOptions controls PrepareRuntime.
type RuntimeOptions struct {
	Sandbox config.SandboxConfig
	// Watch keeps the index fresh while the agent edits files.
	Watch bool
}

// PrepareRuntime resolves workDir and starts the runner and the code
// index. Index failures only disable search_code.
func PrepareRuntime(ctx context.Context, workDir string, opts RuntimeOptions) (*Runtime, error) {
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project path is not a valid directory: %s", abs)
	}
	log.Info().Str("dir", abs).Msg("Project root")

	rt := &Runtime{
		WorkDir: abs,
		Runner:  sandbox.NewRunner(ctx, sandbox.ConfigFrom(opts.Sandbox)),
	}
	log.Info().Str("runner", rt.Runner.Name()).Msg("Command runner ready")

	idx, err := indexer.NewCodeIndex(abs)
	if err != nil {
		log.Warn().Err(err).Msg("code index unavailable, search_code disabled")
		return rt, nil
	}
	if err := idx.Build(ctx); err != nil {
		log.Warn().Err(err).Msg("code index build failed, search_code disabled")
		_ = idx.Close()
		return rt, nil
	}
	rt.Index = idx
	log.Info().Int("files", len(idx.Files())).Msg("Code index built")

	if opts.Watch {
		w, err := idx.Watch(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("file watcher unavailable, index refreshes disabled")
		} else {
			rt.watcher = w
		}
	}
	return rt, nil
}

// BuildAgent creates a coding agent bound to rt.
func BuildAgent(ctx context.Context, rt *Runtime, cfg config.Config, databaseURL string, extraHooks ...engine.Hook) (*engine.Agent, error) {
	p := coder.Params{
		Config:      cfg,
		WorkDir:     rt.WorkDir,
		DatabaseURL: databaseURL,
		Runner:      rt.Runner,
		Hooks:       extraHooks,
	}
	if rt.Index != nil {
		p.Index = rt.Index
	}
	return coder.NewAgent(ctx, p)
}
