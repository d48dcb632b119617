package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ToolErrorPrefix starts every failed tool result the model sees.
const ToolErrorPrefix = "Error: "

type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// ToolMetadata provides categorization for tools.
type ToolMetadata struct {
	Category string   // e.g., "filesystem", "execution", "database"
	Tags     []string // e.g., ["read-only"]
}

type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
	Metadata    ToolMetadata
}

// ValidateArgs validates the provided arguments against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	if t.SchemaJSON == "" {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(t.SchemaJSON),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return &ToolArgsError{Tool: t.Name, Problems: problems}
	}
	return nil
}

// BindArgs validates raw model arguments against schema and decodes them
// into a typed struct. Each tool calls this first so argument parsing stays
// local to the tool.
func BindArgs[T any](tool, schema string, args map[string]any) (T, error) {
	var out T
	if err := (Tool{Name: tool, SchemaJSON: schema}).ValidateArgs(args); err != nil {
		return out, err
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("invalid arguments for %s: %w", tool, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("invalid arguments for %s: %w", tool, err)
	}
	return out, nil
}

type ToolRegistry map[string]Tool

// Register adds a tool, replacing any existing tool with the same name.
func (r ToolRegistry) Register(t Tool) {
	r[t.Name] = t
}

// Names returns the registered tool names, sorted.
func (r ToolRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the tool descriptions exposed to the model, sorted by name
// so requests are stable across calls.
func (r ToolRegistry) Schemas() []ToolSchema {
	s := make([]ToolSchema, 0, len(r))
	for _, name := range r.Names() {
		t := r[name]
		schema := t.SchemaJSON
		if strings.TrimSpace(schema) == "" {
			schema = `{"type":"object","properties":{}}`
		}
		s = append(s, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  json.RawMessage(schema),
		})
	}
	return s
}

// Categories returns the distinct tool categories, sorted.
func (r ToolRegistry) Categories() []string {
	seen := make(map[string]bool)
	for _, t := range r {
		if t.Metadata.Category != "" {
			seen[t.Metadata.Category] = true
		}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Tagged returns the sorted names of tools carrying tag.
func (r ToolRegistry) Tagged(tag string) []string {
	var names []string
	for _, name := range r.Names() {
		if slices.Contains(r[name].Metadata.Tags, tag) {
			names = append(names, name)
		}
	}
	return names
}

// Execute runs a tool call and always returns a string. Unknown tools,
// returned errors and panics all become error-prefixed results.
func (r ToolRegistry) Execute(ctx context.Context, call ToolCall) (result string) {
	tool, ok := r[call.Name]
	if !ok || tool.Fn == nil {
		return fmt.Sprintf("%sunknown tool %q (available tools: %s)", ToolErrorPrefix, call.Name, strings.Join(r.Names(), ", "))
	}

	defer func() {
		if p := recover(); p != nil {
			result = fmt.Sprintf("%stool panicked: %v", ToolErrorPrefix, p)
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	out, err := tool.Fn(ctx, args)
	if err != nil {
		return ToolErrorPrefix + err.Error()
	}
	return out
}

// IsToolError reports whether a tool result is an error string.
func IsToolError(result string) bool {
	return strings.HasPrefix(result, ToolErrorPrefix)
}
