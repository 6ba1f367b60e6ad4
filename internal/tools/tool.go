package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cinescout/cinescout/internal/catalog"
)

// Tool defines the interface for executable tools the model can call.
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Definition returns the OpenAI-compatible function definition
	Definition() ToolDefinition

	// Execute runs the tool with the given arguments
	// Returns formatted result string for model consumption
	Execute(ctx context.Context, args string) (string, error)
}

// ToolDefinition represents an OpenAI-compatible function definition for tools.
type ToolDefinition struct {
	Type     string      `json:"type"` // Always "function"
	Function FunctionDef `json:"function"`
}

// FunctionDef defines the function schema.
type FunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ArgumentError reports model-supplied arguments that failed validation.
// The orchestrator records these as failed tool turns; they are never fatal.
type ArgumentError struct {
	Tool   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// ParseArguments is a helper to parse JSON arguments into a struct.
func ParseArguments(args string, target interface{}) error {
	return json.Unmarshal([]byte(args), target)
}

// collectorKey carries the per-request item collector through tool execution.
type collectorKey struct{}

// ItemCollector receives the normalized items a catalog-backed tool produced,
// so the caller can merge them independently of the text result.
type ItemCollector func(items []catalog.MediaItem)

// WithCollector attaches an item collector to the context. The registry is
// process-wide and immutable, so per-request state travels on the context.
func WithCollector(ctx context.Context, collect ItemCollector) context.Context {
	return context.WithValue(ctx, collectorKey{}, collect)
}

// collect forwards items to the context's collector if one is attached.
func collect(ctx context.Context, items []catalog.MediaItem) {
	if fn, ok := ctx.Value(collectorKey{}).(ItemCollector); ok && fn != nil {
		fn(items)
	}
}
