package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/logger"
)

// allowed sort orders for discovery, mirroring the provider's vocabulary.
var allowedSorts = map[string]bool{
	"popularity.desc":   true,
	"popularity.asc":    true,
	"vote_average.desc": true,
	"vote_average.asc":  true,
	"revenue.desc":      true,
}

// DiscoverTool lists catalog entries by genre/year/person filters for one
// media kind. Registered as discover_movies and discover_tv_shows.
type DiscoverTool struct {
	client   *catalog.Client
	logger   *logger.Logger
	kind     catalog.Kind
	genreIDs map[string]int // lowercase genre name -> provider genre id
}

// NewDiscoverMoviesTool creates the movie discovery tool.
func NewDiscoverMoviesTool(client *catalog.Client, genres map[string]int, logger *logger.Logger) *DiscoverTool {
	return &DiscoverTool{
		client:   client,
		logger:   logger.WithComponent("discover-tool"),
		kind:     catalog.KindMovie,
		genreIDs: lowercaseKeys(genres),
	}
}

// NewDiscoverTVShowsTool creates the TV discovery tool.
func NewDiscoverTVShowsTool(client *catalog.Client, genres map[string]int, logger *logger.Logger) *DiscoverTool {
	return &DiscoverTool{
		client:   client,
		logger:   logger.WithComponent("discover-tool"),
		kind:     catalog.KindTV,
		genreIDs: lowercaseKeys(genres),
	}
}

type discoverArgs struct {
	Genres    []string `json:"genres,omitempty" jsonschema:"description=Genre names to filter by (e.g. action, comedy, drama)"`
	Year      int      `json:"year,omitempty" jsonschema:"description=Release year to filter by"`
	SortBy    string   `json:"sort_by,omitempty" jsonschema:"description=Sort order: popularity.desc, popularity.asc, vote_average.desc, vote_average.asc or revenue.desc"`
	PersonIDs []int    `json:"person_ids,omitempty" jsonschema:"description=Catalog person ids to filter by cast (resolve names with search_person_by_name first)"`
	Locale    string   `json:"locale,omitempty" jsonschema:"description=BCP 47 locale for localized titles (default en-US)"`
}

// Name returns the tool name.
func (t *DiscoverTool) Name() string {
	if t.kind == catalog.KindTV {
		return "discover_tv_shows"
	}
	return "discover_movies"
}

// Definition returns the OpenAI-compatible function definition.
func (t *DiscoverTool) Definition() ToolDefinition {
	description := "Discover movies by genre, year, cast and sort order. Use for queries about categories rather than specific titles."
	if t.kind == catalog.KindTV {
		description = "Discover TV shows by genre, year, cast and sort order. Use for queries about categories rather than specific titles."
	}
	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        t.Name(),
			Description: description,
			Parameters:  schemaFor(&discoverArgs{}),
		},
	}
}

// Execute runs the discovery query.
func (t *DiscoverTool) Execute(ctx context.Context, args string) (string, error) {
	var parsed discoverArgs
	if err := ParseArguments(args, &parsed); err != nil {
		return "", &ArgumentError{Tool: t.Name(), Reason: err.Error()}
	}

	filters := catalog.DiscoverFilters{
		Year:        parsed.Year,
		SortBy:      parsed.SortBy,
		WithCastIDs: parsed.PersonIDs,
	}

	if filters.SortBy == "" {
		filters.SortBy = "popularity.desc"
	} else if !allowedSorts[filters.SortBy] {
		return "", &ArgumentError{Tool: t.Name(), Reason: fmt.Sprintf("unsupported sort_by %q", parsed.SortBy)}
	}

	for _, name := range parsed.Genres {
		id, ok := t.genreIDs[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return "", &ArgumentError{Tool: t.Name(), Reason: fmt.Sprintf("unknown genre %q", name)}
		}
		filters.GenreIDs = append(filters.GenreIDs, id)
	}

	locale := parsed.Locale
	if locale == "" {
		locale = "en-US"
	}

	var (
		items []catalog.MediaItem
		err   error
	)
	if t.kind == catalog.KindTV {
		items, err = t.client.DiscoverTVShows(ctx, filters, locale)
	} else {
		items, err = t.client.DiscoverMovies(ctx, filters, locale)
	}
	if err != nil {
		return "", fmt.Errorf("discover failed: %w", err)
	}

	collect(ctx, items)
	return FormatItems(items), nil
}

func lowercaseKeys(genres map[string]int) map[string]int {
	out := make(map[string]int, len(genres))
	for name, id := range genres {
		out[strings.ToLower(name)] = id
	}
	return out
}
