package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/logger"
)

// PersonSearchTool resolves a person name to catalog person ids, used to
// build cast/crew filters for discovery.
type PersonSearchTool struct {
	client *catalog.Client
	logger *logger.Logger
}

// NewPersonSearchTool creates the person search tool.
func NewPersonSearchTool(client *catalog.Client, logger *logger.Logger) *PersonSearchTool {
	return &PersonSearchTool{
		client: client,
		logger: logger.WithComponent("person-search-tool"),
	}
}

type personSearchArgs struct {
	Name string `json:"name" jsonschema:"description=Full or partial name of the actor or crew member"`
}

// Name returns the tool name.
func (t *PersonSearchTool) Name() string {
	return "search_person_by_name"
}

// Definition returns the OpenAI-compatible function definition.
func (t *PersonSearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        t.Name(),
			Description: "Resolve a person name to catalog person ids. Use the returned ids as person_ids in discover calls.",
			Parameters:  schemaFor(&personSearchArgs{}),
		},
	}
}

// Execute runs the person search.
func (t *PersonSearchTool) Execute(ctx context.Context, args string) (string, error) {
	var parsed personSearchArgs
	if err := ParseArguments(args, &parsed); err != nil {
		return "", &ArgumentError{Tool: t.Name(), Reason: err.Error()}
	}

	parsed.Name = strings.TrimSpace(parsed.Name)
	if parsed.Name == "" {
		return "", &ArgumentError{Tool: t.Name(), Reason: "name is required"}
	}

	people, err := t.client.SearchPerson(ctx, parsed.Name, "en-US")
	if err != nil {
		return "", fmt.Errorf("person search failed: %w", err)
	}

	if len(people) == 0 {
		return "No people found.", nil
	}

	var builder strings.Builder
	for i, p := range people {
		if i > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "id=%d name=%q popularity=%.1f", p.ID, p.Name, p.Popularity)
		if p.Department != "" {
			fmt.Fprintf(&builder, " department=%s", p.Department)
		}
	}
	return builder.String(), nil
}
