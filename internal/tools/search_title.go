package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/logger"
)

// TitleSearchTool performs free-text title search for one media kind.
// Registered twice, once per kind, as search_movies_by_title and
// search_tv_shows_by_title.
type TitleSearchTool struct {
	client *catalog.Client
	logger *logger.Logger
	kind   catalog.Kind
}

// NewMovieTitleSearchTool creates the movie title search tool.
func NewMovieTitleSearchTool(client *catalog.Client, logger *logger.Logger) *TitleSearchTool {
	return &TitleSearchTool{
		client: client,
		logger: logger.WithComponent("title-search-tool"),
		kind:   catalog.KindMovie,
	}
}

// NewTVTitleSearchTool creates the TV show title search tool.
func NewTVTitleSearchTool(client *catalog.Client, logger *logger.Logger) *TitleSearchTool {
	return &TitleSearchTool{
		client: client,
		logger: logger.WithComponent("title-search-tool"),
		kind:   catalog.KindTV,
	}
}

type titleSearchArgs struct {
	Query  string `json:"query" jsonschema:"description=Title or partial title to search for"`
	Locale string `json:"locale,omitempty" jsonschema:"description=BCP 47 locale for localized titles (default en-US)"`
}

// Name returns the tool name.
func (t *TitleSearchTool) Name() string {
	if t.kind == catalog.KindTV {
		return "search_tv_shows_by_title"
	}
	return "search_movies_by_title"
}

// Definition returns the OpenAI-compatible function definition.
func (t *TitleSearchTool) Definition() ToolDefinition {
	description := "Search movies by title. Returns id, title, rating and popularity for each match."
	if t.kind == catalog.KindTV {
		description = "Search TV shows by title. Returns id, title, rating and popularity for each match."
	}
	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        t.Name(),
			Description: description,
			Parameters:  schemaFor(&titleSearchArgs{}),
		},
	}
}

// Execute runs the title search.
func (t *TitleSearchTool) Execute(ctx context.Context, args string) (string, error) {
	var parsed titleSearchArgs
	if err := ParseArguments(args, &parsed); err != nil {
		return "", &ArgumentError{Tool: t.Name(), Reason: err.Error()}
	}

	parsed.Query = strings.TrimSpace(parsed.Query)
	if parsed.Query == "" {
		return "", &ArgumentError{Tool: t.Name(), Reason: "query is required"}
	}
	if parsed.Locale == "" {
		parsed.Locale = "en-US"
	}

	var (
		items []catalog.MediaItem
		err   error
	)
	if t.kind == catalog.KindTV {
		items, err = t.client.SearchTVShows(ctx, parsed.Query, parsed.Locale)
	} else {
		items, err = t.client.SearchMovies(ctx, parsed.Query, parsed.Locale)
	}
	if err != nil {
		return "", fmt.Errorf("title search failed: %w", err)
	}

	collect(ctx, items)
	return FormatItems(items), nil
}

// FormatItems renders normalized items as compact lines for model consumption.
func FormatItems(items []catalog.MediaItem) string {
	if len(items) == 0 {
		return "No results found."
	}

	var builder strings.Builder
	for i, item := range items {
		if i > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "id=%d kind=%s title=%q rating=%.1f popularity=%.1f", item.ID, item.Kind, item.Title, item.Rating, item.Popularity)
		if item.ReleaseDate != "" {
			fmt.Fprintf(&builder, " released=%s", item.ReleaseDate)
		}
	}
	return builder.String()
}
