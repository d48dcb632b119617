// Package engine provides agent orchestration functionality.
// This file contains context budget tracking and conversation compaction.

package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/ChamsBouzaiene/autobuild/internal/project"
)

// BudgetConfig controls when and how the conversation is compacted.
type BudgetConfig struct {
	MaxContextTokens  int     // 0 means look up the model's window
	ThresholdFraction float64 // lightweight compaction above this share of the window
	KeepRecent        int     // turns kept after the first one on truncation
}

// DefaultBudgetConfig returns the standard thresholds.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		ThresholdFraction: 0.70,
		KeepRecent:        10,
	}
}

// BudgetManager decides when the conversation must shrink. It only ever
// trusts the prompt size the provider reported for the previous call.
type BudgetManager struct {
	cfg        BudgetConfig
	model      string
	summarizer Summarizer
	store      project.SummaryStore
	tokenizer  Tokenizer
}

// NewBudgetManager creates a manager. tokenizer may be nil, in which case a
// call without reported usage leaves the observed count unchanged.
func NewBudgetManager(cfg BudgetConfig, model string, summarizer Summarizer, store project.SummaryStore, tokenizer Tokenizer) *BudgetManager {
	def := DefaultBudgetConfig()
	if cfg.ThresholdFraction <= 0 || cfg.ThresholdFraction > 1 {
		cfg.ThresholdFraction = def.ThresholdFraction
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = def.KeepRecent
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = ContextLimitFor(model)
	}
	if store == nil {
		store = project.FileSummaryStore{}
	}
	return &BudgetManager{cfg: cfg, model: model, summarizer: summarizer, store: store, tokenizer: tokenizer}
}

// Config returns the effective configuration.
func (b *BudgetManager) Config() BudgetConfig { return b.cfg }

// Threshold is the observed prompt size above which truncation kicks in.
func (b *BudgetManager) Threshold() int {
	return int(math.Round(float64(b.cfg.MaxContextTokens) * b.cfg.ThresholdFraction))
}

// CompactIfNeeded truncates the conversation to the first turn plus the
// most recent ones when the last call's prompt crossed the threshold.
// It reports whether the conversation changed.
func (b *BudgetManager) CompactIfNeeded(st *State, conv *Conversation) bool {
	if st.LastObservedTokens <= b.Threshold() {
		return false
	}
	before := conv.Len()
	conv.TruncateToRecent(b.cfg.KeepRecent)
	return conv.Len() != before
}

// Observe records the prompt size of a successful call. When the provider
// reports nothing, the conversation is measured locally instead.
func (b *BudgetManager) Observe(st *State, usage Usage, conv *Conversation) {
	if usage.Prompt > 0 {
		st.LastObservedTokens = usage.Prompt
		return
	}
	if b.tokenizer != nil && conv != nil {
		st.LastObservedTokens = CountTokensForTurns(b.tokenizer, conv.Turns(), b.model)
	}
}

// Recover performs heavyweight compaction after a context-length failure:
// summarize, persist, reseed. If summarizing fails a heuristic summary is
// used; if persisting fails the conversation is truncated instead and the
// error is returned for logging. The conversation is usable either way.
func (b *BudgetManager) Recover(ctx context.Context, st *State, conv *Conversation, task string) (CompactionKind, error) {
	turns := conv.Turns()

	var summary string
	if b.summarizer != nil {
		s, err := b.summarizer.Summarize(ctx, ExtractConversationText(turns))
		if err == nil {
			summary = s
		}
	}
	if summary == "" {
		summary = HeuristicSummary(turns)
	}

	if err := b.store.Save(st.WorkDir, summary); err != nil {
		conv.TruncateToRecent(b.cfg.KeepRecent)
		return CompactionFallback, fmt.Errorf("persist summary: %w", err)
	}

	conv.ReplaceWithSummary(summary, task)
	st.LastObservedTokens = 0
	return CompactionSummary, nil
}
