// Package engine provides agent orchestration functionality.
// This file contains token counting used when a provider reports no usage.

package engine

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in text for a given model.
type Tokenizer interface {
	CountTokens(text string, model string) (int, error)
}

// EstimateTokens is a character-based approximation: roughly four characters
// per token plus a small allowance for whitespace.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")
	estimated := (charCount / 4) + (whitespaceCount / 6)
	if estimated < 1 {
		return 1
	}
	return estimated
}

// DefaultTokenizer uses EstimateTokens.
type DefaultTokenizer struct{}

func (DefaultTokenizer) CountTokens(text string, _ string) (int, error) {
	return EstimateTokens(text), nil
}

// TiktokenTokenizer counts with a BPE encoding. Models tiktoken does not
// know (Gemini, Claude) use cl100k_base, which is close enough for budget
// decisions. If no encoding can be loaded the estimator is used.
type TiktokenTokenizer struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	failed    bool
}

// NewTiktokenTokenizer creates a tokenizer with an empty encoding cache.
func NewTiktokenTokenizer() *TiktokenTokenizer {
	return &TiktokenTokenizer{encodings: make(map[string]*tiktoken.Tiktoken)}
}

func (t *TiktokenTokenizer) CountTokens(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc := t.encoding(model)
	if enc == nil {
		return EstimateTokens(text), nil
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) encoding(model string) *tiktoken.Tiktoken {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failed {
		return nil
	}
	if enc, ok := t.encodings[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		// Encodings are fetched on first use; offline hosts fall back for good.
		t.failed = true
		return nil
	}
	t.encodings[model] = enc
	return enc
}

// CountTokensForTurns sums token counts over a conversation, including a
// small per-turn overhead for role markers.
func CountTokensForTurns(tok Tokenizer, turns []Turn, model string) int {
	total := 0
	for _, turn := range turns {
		total += 4
		for _, p := range turn.Parts {
			var text string
			switch p.Kind {
			case PartText:
				text = p.Text
			case PartToolCall:
				if p.Call != nil {
					args, _ := json.Marshal(p.Call.Args)
					text = p.Call.Name + string(args)
				}
			case PartToolResult:
				if p.Result != nil {
					text = p.Result.Name + p.Result.Result
				}
			}
			n, err := tok.CountTokens(text, model)
			if err != nil {
				n = EstimateTokens(text)
			}
			total += n
		}
	}
	return total
}
