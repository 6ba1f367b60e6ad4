package tools

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError, Format: "text"})
}

func testCatalog(t *testing.T, handler http.HandlerFunc) *catalog.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return catalog.NewClient(server.URL, "test", testLogger())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	tool := NewCompletePhaseTool(testLogger())

	if err := registry.Register(tool); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := registry.Register(tool); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRegistryDefinitionsSubset(t *testing.T) {
	registry := NewRegistry()
	client := testCatalog(t, func(w http.ResponseWriter, r *http.Request) {})

	registry.Register(NewMovieTitleSearchTool(client, testLogger()))
	registry.Register(NewTVTitleSearchTool(client, testLogger()))
	registry.Register(NewCompletePhaseTool(testLogger()))

	defs := registry.Definitions("search_movies_by_title", "complete_phase_1")
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Function.Name != "search_movies_by_title" || defs[1].Function.Name != "complete_phase_1" {
		t.Errorf("definitions out of order: %s, %s", defs[0].Function.Name, defs[1].Function.Name)
	}
	for _, def := range defs {
		if def.Type != "function" {
			t.Errorf("expected type function, got %q", def.Type)
		}
		if def.Function.Parameters["type"] != "object" {
			t.Errorf("expected object parameter schema for %s", def.Function.Name)
		}
	}
}

func TestTitleSearchRejectsEmptyQuery(t *testing.T) {
	client := testCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("catalog must not be called for invalid arguments")
	})
	tool := NewMovieTitleSearchTool(client, testLogger())

	_, err := tool.Execute(context.Background(), `{"query":"   "}`)
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %T: %v", err, err)
	}
}

func TestTitleSearchCollectsItems(t *testing.T) {
	client := testCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":603,"title":"The Matrix","vote_average":8.2,"popularity":90.5}]}`))
	})
	tool := NewMovieTitleSearchTool(client, testLogger())

	var collected []catalog.MediaItem
	ctx := WithCollector(context.Background(), func(items []catalog.MediaItem) {
		collected = append(collected, items...)
	})

	result, err := tool.Execute(ctx, `{"query":"matrix"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collected) != 1 || collected[0].ID != 603 {
		t.Fatalf("expected collected item 603, got %+v", collected)
	}
	if !strings.Contains(result, "The Matrix") {
		t.Errorf("result should mention the title: %q", result)
	}
}

func TestDiscoverResolvesGenreNames(t *testing.T) {
	var gotGenres, gotSort string
	client := testCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		gotGenres = r.URL.Query().Get("with_genres")
		gotSort = r.URL.Query().Get("sort_by")
		w.Write([]byte(`{"results":[]}`))
	})
	tool := NewDiscoverMoviesTool(client, map[string]int{"Action": 28, "Comedy": 35}, testLogger())

	_, err := tool.Execute(context.Background(), `{"genres":["Action"],"sort_by":"popularity.desc"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotGenres != "28" {
		t.Errorf("expected genre id 28, got %q", gotGenres)
	}
	if gotSort != "popularity.desc" {
		t.Errorf("expected popularity sort, got %q", gotSort)
	}
}

func TestDiscoverRejectsUnknownGenre(t *testing.T) {
	client := testCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("catalog must not be called for invalid arguments")
	})
	tool := NewDiscoverMoviesTool(client, map[string]int{"action": 28}, testLogger())

	_, err := tool.Execute(context.Background(), `{"genres":["jazzercise"]}`)
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %T: %v", err, err)
	}
}

func TestDiscoverRejectsUnknownSort(t *testing.T) {
	client := testCatalog(t, func(w http.ResponseWriter, r *http.Request) {})
	tool := NewDiscoverMoviesTool(client, nil, testLogger())

	_, err := tool.Execute(context.Background(), `{"sort_by":"chaos.desc"}`)
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %T: %v", err, err)
	}
}

func TestCompletePhaseReturnsFixedAck(t *testing.T) {
	tool := NewCompletePhaseTool(testLogger())

	result, err := tool.Execute(context.Background(), `{"summary":"gathered 8 action candidates"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != CompletePhaseAck {
		t.Errorf("expected fixed ack, got %q", result)
	}

	if _, err := tool.Execute(context.Background(), `{"summary":""}`); err == nil {
		t.Error("expected empty summary to be rejected")
	}

	if got := ParseCompletionSummary(`{"summary":"done"}`); got != "done" {
		t.Errorf("unexpected summary %q", got)
	}
	if got := ParseCompletionSummary(`not json`); got != "" {
		t.Errorf("expected empty summary for malformed args, got %q", got)
	}
}

func TestPersonSearchFormatsIDs(t *testing.T) {
	client := testCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":6384,"name":"Keanu Reeves","popularity":60.2,"known_for_department":"Acting"}]}`))
	})
	tool := NewPersonSearchTool(client, testLogger())

	result, err := tool.Execute(context.Background(), `{"name":"keanu"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "id=6384") {
		t.Errorf("result should contain the person id: %q", result)
	}
}
