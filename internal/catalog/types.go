package catalog

import "fmt"

// Kind identifies the underlying catalog entity type.
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// MediaItem is the normalized shape shared by movie and TV results.
// Title and dates differ between the two provider schemas; normalization
// happens in the client so nothing downstream cares about the kind.
type MediaItem struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"posterPath"`
	Rating      float64 `json:"rating"`
	Overview    string  `json:"overview,omitempty"`
	Popularity  float64 `json:"popularity,omitempty"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	Kind        Kind    `json:"kind"`
}

// MediaListItem is the minimal shape returned to API callers.
type MediaListItem struct {
	ID         int      `json:"id"`
	Title      *string  `json:"title"`
	PosterPath *string  `json:"posterPath"`
	Rating     *float64 `json:"rating"`
}

// ToListItem reduces a MediaItem to the caller-facing shape.
// Empty provider fields become explicit nulls.
func (m MediaItem) ToListItem() MediaListItem {
	item := MediaListItem{ID: m.ID}
	if m.Title != "" {
		title := m.Title
		item.Title = &title
	}
	if m.PosterPath != "" {
		poster := m.PosterPath
		item.PosterPath = &poster
	}
	if m.Rating > 0 {
		rating := m.Rating
		item.Rating = &rating
	}
	return item
}

// Person is a catalog person search result.
type Person struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Popularity float64 `json:"popularity"`
	Department string  `json:"department,omitempty"`
}

// Video is a trailer/clip attached to a catalog entity.
type Video struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// DiscoverFilters are the supported discovery parameters.
type DiscoverFilters struct {
	GenreIDs      []int
	Year          int
	SortBy        string
	WithCastIDs   []int
	MinVoteCount  int
}

// UpstreamError is a uniform catalog provider failure. Status is the HTTP
// status from the provider, or 0 for transport-level failures.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog upstream error (status %d): %s", e.Status, e.Message)
}

// Transient reports whether the failure is worth a single per-call retry:
// network failures and provider 5xx responses. Client errors are not.
func (e *UpstreamError) Transient() bool {
	return e.Status == 0 || e.Status >= 500
}
