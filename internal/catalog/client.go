package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cinescout/cinescout/internal/logger"
	"github.com/cinescout/cinescout/internal/metrics"
)

// retryBackoff is the pause before the single per-call retry of a
// transient provider failure.
const retryBackoff = 250 * time.Millisecond

// Client issues authenticated requests against a TMDB-compatible metadata API.
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	baseURL     string
	bearerToken string
}

// NewClient creates a new catalog client.
func NewClient(baseURL, bearerToken string, logger *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger:      logger.WithComponent("catalog"),
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		bearerToken: bearerToken,
	}
}

// listResponse is the raw provider shape for paginated list endpoints.
// Movie entries use title/release_date, TV entries use name/first_air_date;
// both are declared and the zero values disambiguate.
type listResponse struct {
	Page    int `json:"page"`
	Results []struct {
		ID           int     `json:"id"`
		Title        string  `json:"title"`
		Name         string  `json:"name"`
		PosterPath   string  `json:"poster_path"`
		VoteAverage  float64 `json:"vote_average"`
		Overview     string  `json:"overview"`
		Popularity   float64 `json:"popularity"`
		ReleaseDate  string  `json:"release_date"`
		FirstAirDate string  `json:"first_air_date"`
	} `json:"results"`
	TotalResults int `json:"total_results"`
}

type personListResponse struct {
	Results []struct {
		ID                 int     `json:"id"`
		Name               string  `json:"name"`
		Popularity         float64 `json:"popularity"`
		KnownForDepartment string  `json:"known_for_department"`
	} `json:"results"`
}

type videoListResponse struct {
	Results []Video `json:"results"`
}

// SearchMovies performs a free-text movie title search.
func (c *Client) SearchMovies(ctx context.Context, query, locale string) ([]MediaItem, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("language", locale)
	params.Set("include_adult", "false")
	return c.fetchList(ctx, "/search/movie", params, KindMovie)
}

// SearchTVShows performs a free-text TV show title search.
func (c *Client) SearchTVShows(ctx context.Context, query, locale string) ([]MediaItem, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("language", locale)
	params.Set("include_adult", "false")
	return c.fetchList(ctx, "/search/tv", params, KindTV)
}

// DiscoverMovies lists movies matching the given filters.
func (c *Client) DiscoverMovies(ctx context.Context, filters DiscoverFilters, locale string) ([]MediaItem, error) {
	params := discoverParams(filters, locale)
	if filters.Year > 0 {
		params.Set("primary_release_year", strconv.Itoa(filters.Year))
	}
	return c.fetchList(ctx, "/discover/movie", params, KindMovie)
}

// DiscoverTVShows lists TV shows matching the given filters.
func (c *Client) DiscoverTVShows(ctx context.Context, filters DiscoverFilters, locale string) ([]MediaItem, error) {
	params := discoverParams(filters, locale)
	if filters.Year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(filters.Year))
	}
	return c.fetchList(ctx, "/discover/tv", params, KindTV)
}

// SearchPerson resolves a person name to catalog person entries.
func (c *Client) SearchPerson(ctx context.Context, name, locale string) ([]Person, error) {
	params := url.Values{}
	params.Set("query", name)
	params.Set("language", locale)

	body, err := c.get(ctx, "/search/person", params)
	if err != nil {
		return nil, err
	}

	var resp personListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Status: 0, Message: "malformed person response: " + err.Error()}
	}

	people := make([]Person, 0, len(resp.Results))
	for _, p := range resp.Results {
		people = append(people, Person{
			ID:         p.ID,
			Name:       p.Name,
			Popularity: p.Popularity,
			Department: p.KnownForDepartment,
		})
	}
	return people, nil
}

// Details fetches a single entity by kind and id.
func (c *Client) Details(ctx context.Context, kind Kind, id int, locale string) (*MediaItem, error) {
	params := url.Values{}
	params.Set("language", locale)

	body, err := c.get(ctx, fmt.Sprintf("/%s/%d", kind, id), params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID          int     `json:"id"`
		Title       string  `json:"title"`
		Name        string  `json:"name"`
		PosterPath  string  `json:"poster_path"`
		VoteAverage float64 `json:"vote_average"`
		Overview    string  `json:"overview"`
		Popularity  float64 `json:"popularity"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &UpstreamError{Status: 0, Message: "malformed details response: " + err.Error()}
	}

	item := MediaItem{
		ID:         raw.ID,
		Title:      raw.Title,
		PosterPath: raw.PosterPath,
		Rating:     raw.VoteAverage,
		Overview:   raw.Overview,
		Popularity: raw.Popularity,
		Kind:       kind,
	}
	if item.Title == "" {
		item.Title = raw.Name
	}
	return &item, nil
}

// Videos lists trailers/clips for an entity.
func (c *Client) Videos(ctx context.Context, kind Kind, id int) ([]Video, error) {
	body, err := c.get(ctx, fmt.Sprintf("/%s/%d/videos", kind, id), url.Values{})
	if err != nil {
		return nil, err
	}

	var resp videoListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Status: 0, Message: "malformed videos response: " + err.Error()}
	}
	return resp.Results, nil
}

// fetchList performs a GET against a list endpoint and normalizes results.
func (c *Client) fetchList(ctx context.Context, endpoint string, params url.Values, kind Kind) ([]MediaItem, error) {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Status: 0, Message: "malformed list response: " + err.Error()}
	}

	items := make([]MediaItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		item := MediaItem{
			ID:          r.ID,
			Title:       r.Title,
			PosterPath:  r.PosterPath,
			Rating:      r.VoteAverage,
			Overview:    r.Overview,
			Popularity:  r.Popularity,
			ReleaseDate: r.ReleaseDate,
			Kind:        kind,
		}
		if item.Title == "" {
			item.Title = r.Name
		}
		if item.ReleaseDate == "" {
			item.ReleaseDate = r.FirstAirDate
		}
		items = append(items, item)
	}
	return items, nil
}

// get issues the HTTP request, retrying once with backoff on transient
// failures. The retry is per catalog call, never per search request.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	body, err := c.getOnce(ctx, endpoint, params)
	if err == nil {
		return body, nil
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) || !upstream.Transient() {
		return nil, err
	}

	c.logger.Warn("catalog request failed, retrying once",
		slog.String("endpoint", endpoint),
		slog.Int("status", upstream.Status))

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, &UpstreamError{Status: 0, Message: ctx.Err().Error()}
	}

	return c.getOnce(ctx, endpoint, params)
}

// getOnce maps all failure modes of a single attempt to UpstreamError.
func (c *Client) getOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + endpoint
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &UpstreamError{Status: 0, Message: "failed to create request: " + err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		// Timeouts and connection failures classify as status 0.
		return nil, &UpstreamError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "read_error").Inc()
		return nil, &UpstreamError{Status: 0, Message: "failed to read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		c.logger.Warn("catalog request failed",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode))
		return nil, &UpstreamError{Status: resp.StatusCode, Message: providerMessage(body, resp.StatusCode)}
	}

	metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

func discoverParams(filters DiscoverFilters, locale string) url.Values {
	params := url.Values{}
	params.Set("language", locale)
	params.Set("include_adult", "false")

	if len(filters.GenreIDs) > 0 {
		params.Set("with_genres", joinInts(filters.GenreIDs))
	}
	if len(filters.WithCastIDs) > 0 {
		params.Set("with_cast", joinInts(filters.WithCastIDs))
	}
	if filters.SortBy != "" {
		params.Set("sort_by", filters.SortBy)
	}
	if filters.MinVoteCount > 0 {
		params.Set("vote_count.gte", strconv.Itoa(filters.MinVoteCount))
	}
	return params
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// providerMessage pulls the status_message field out of a TMDB error body,
// falling back to the HTTP status text.
func providerMessage(body []byte, status int) string {
	var parsed struct {
		StatusMessage string `json:"status_message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.StatusMessage != "" {
		return parsed.StatusMessage
	}
	return http.StatusText(status)
}
