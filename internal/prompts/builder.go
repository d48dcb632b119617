package prompts

import (
	"fmt"
	"strings"
)

// PromptBuilder composes a registered prompt with extra fragments and
// {{name}} substitutions.
type PromptBuilder struct {
	fragments []string
	variables map[string]string
}

// NewLatestPromptBuilder starts from the latest version of id.
func NewLatestPromptBuilder(registry *PromptRegistry, id string) (*PromptBuilder, error) {
	base, err := registry.GetLatest(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}
	return &PromptBuilder{
		fragments: []string{base.Content},
		variables: make(map[string]string),
	}, nil
}

func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	b.fragments = append(b.fragments, text)
	return b
}

func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build joins fragments with blank lines and substitutes variables.
// Unknown placeholders are left as written.
func (b *PromptBuilder) Build() (string, error) {
	pairs := make([]string, 0, 2*len(b.variables))
	for k, v := range b.variables {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(strings.Join(b.fragments, "\n\n")), nil
}

// BuildWithRules appends project rules, when present, under a heading.
func (b *PromptBuilder) BuildWithRules(rules string) (string, error) {
	if r := strings.TrimSpace(rules); r != "" {
		b.AddFragment("Project rules (follow these over the defaults above):\n" + r)
	}
	return b.Build()
}
