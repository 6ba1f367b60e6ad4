package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cinescout/cinescout/internal/agent"
	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/llm"
	"github.com/cinescout/cinescout/internal/logger"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	lastReq agent.Request
	result  *agent.Result
	err     error
	emit    []agent.Event
}

func (f *fakeRunner) Run(ctx context.Context, req agent.Request) (*agent.Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()

	for _, e := range f.emit {
		if req.Sink != nil {
			req.Sink(e)
		}
	}
	return f.result, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func strPtr(s string) *string { return &s }

func newTestRouter(runner Runner, allowList []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.Config{Level: slog.LevelError})
	handler := NewHandler(runner, Options{
		SupportedLocales: []string{"en-US", "fr-FR"},
		DefaultLocale:    "en-US",
		StreamTimeout:    5 * time.Second,
	}, log)
	return NewRouter(handler, allowList, prometheus.NewRegistry(), log)
}

func defaultResult() *agent.Result {
	return &agent.Result{Items: []catalog.MediaListItem{
		{ID: 603, Title: strPtr("The Matrix")},
		{ID: 604, Title: strPtr("The Matrix Reloaded")},
	}}
}

func TestSearchGetSuccess(t *testing.T) {
	runner := &fakeRunner{result: defaultResult()}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?query=matrix&locale=fr-FR", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.Count != len(resp.Items) {
		t.Errorf("count %d does not match items length %d", resp.Count, len(resp.Items))
	}
	if resp.Locale != "fr-FR" {
		t.Errorf("expected locale fr-FR, got %s", resp.Locale)
	}
	for _, item := range resp.Items {
		if item.ID == 0 {
			t.Errorf("item missing id: %+v", item)
		}
	}
}

func TestSearchValidation(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"empty query", "/api/search?query="},
		{"whitespace query", "/api/search?query=%20%20"},
		{"overlong query", "/api/search?query=" + strings.Repeat("a", 501)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{result: defaultResult()}
			router := newTestRouter(runner, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if runner.callCount() != 0 {
				t.Error("orchestrator must not run on invalid input")
			}
		})
	}
}

func TestSearchUnsupportedLocaleDefaults(t *testing.T) {
	runner := &fakeRunner{result: defaultResult()}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?query=matrix&locale=xx-XX", nil))

	var resp searchResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Locale != "en-US" {
		t.Errorf("expected default locale en-US, got %s", resp.Locale)
	}
}

func TestSearchSanitizesQueryForModel(t *testing.T) {
	runner := &fakeRunner{result: defaultResult()}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?query="+
		"%3Cscript%3Ealert(1)%3C/script%3E", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	sent := runner.lastReq.Messages[0].Content
	if strings.ContainsAny(sent, "<>") {
		t.Errorf("unescaped markup reached the transcript: %q", sent)
	}
}

func TestSearchPartialOnBudgetExceeded(t *testing.T) {
	runner := &fakeRunner{
		result: defaultResult(),
		err:    &agent.BudgetExceededError{Budget: agent.BudgetWallClock, TurnsUsed: 7},
	}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?query=matrix", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 partial success, got %d", rec.Code)
	}
	var resp searchResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Success {
		t.Error("expected success false on partial result")
	}
	if resp.Count != 2 || resp.Error == "" {
		t.Errorf("expected partial items with error message, got %+v", resp)
	}
}

func TestSearchAgentErrorStatus(t *testing.T) {
	runner := &fakeRunner{err: &llm.AgentError{Code: llm.CodeRateLimit, Message: "rate limited"}}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?query=matrix", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for rate limit, got %d", rec.Code)
	}
}

func TestRefererRejection(t *testing.T) {
	runner := &fakeRunner{result: defaultResult()}
	router := newTestRouter(runner, []string{"myapp.com"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?query=matrix", nil)
	req.Header.Set("Referer", "https://evil.example/page")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unauthorized") {
		t.Errorf("expected Unauthorized body, got %s", rec.Body.String())
	}
	if runner.callCount() != 0 {
		t.Error("orchestrator must not run after referer rejection")
	}
}

func TestRefererPolicy(t *testing.T) {
	cases := []struct {
		name    string
		referer string
		status  int
	}{
		{"absent allowed", "", http.StatusOK},
		{"exact match", "https://myapp.com/search", http.StatusOK},
		{"subdomain match", "https://www.myapp.com/", http.StatusOK},
		{"malformed rejected", "::not a url::", http.StatusForbidden},
		{"suffix trick rejected", "https://notmyapp.com/", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{result: defaultResult()}
			router := newTestRouter(runner, []string{"myapp.com"})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/search?query=matrix", nil)
			if tc.referer != "" {
				req.Header.Set("Referer", tc.referer)
			}
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Errorf("referer %q: expected %d, got %d", tc.referer, tc.status, rec.Code)
			}
		})
	}
}

func streamBody(messages string) *strings.Reader {
	return strings.NewReader(`{"messages":` + messages + `}`)
}

func TestStreamMessageBounds(t *testing.T) {
	tooMany := "["
	for i := 0; i < 21; i++ {
		if i > 0 {
			tooMany += ","
		}
		tooMany += `{"role":"user","content":"hi"}`
	}
	tooMany += "]"

	cases := []struct {
		name string
		body string
	}{
		{"empty array", "[]"},
		{"over twenty messages", tooMany},
		{"bad role", `[{"role":"system","content":"hi"}]`},
		{"overlong content", `[{"role":"user","content":"` + strings.Repeat("a", 1001) + `"}]`},
		{"empty content", `[{"role":"user","content":"  "}]`},
		{"empty results array", `[{"role":"assistant","content":"shown earlier","results":[]}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{result: defaultResult()}
			router := newTestRouter(runner, nil)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/search/stream", streamBody(tc.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); strings.Contains(ct, "text/event-stream") {
				t.Error("validation failure must not open a stream")
			}
			if runner.callCount() != 0 {
				t.Error("orchestrator must not run on invalid input")
			}
		})
	}
}

func decodeStream(t *testing.T, body string) []agent.Event {
	t.Helper()
	var events []agent.Event
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		var event agent.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &event); err != nil {
			t.Fatalf("bad frame %q: %v", frame, err)
		}
		events = append(events, event)
	}
	return events
}

func TestStreamHappyPath(t *testing.T) {
	runner := &fakeRunner{
		result: defaultResult(),
		emit: []agent.Event{
			{Type: agent.EventThinking, Summary: "gathering"},
			{Type: agent.EventToolCall, Tool: "discover_movies", Status: agent.ToolStatusCompleted},
		},
	}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search/stream",
		streamBody(`[{"role":"user","content":"popular action movies"}]`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	events := decodeStream(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %v", len(events), events)
	}
	if events[2].Type != agent.EventResults || events[2].Count != 2 {
		t.Errorf("unexpected results event: %+v", events[2])
	}
	if events[3].Type != agent.EventDone {
		t.Errorf("stream must end with done, got %+v", events[3])
	}
}

func TestStreamErrorTerminal(t *testing.T) {
	runner := &fakeRunner{err: &llm.AgentError{Code: llm.CodeUpstream, Message: "model down"}}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search/stream",
		streamBody(`[{"role":"user","content":"anything"}]`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	events := decodeStream(t, rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("expected a single error terminal, got %d events", len(events))
	}
	if events[0].Type != agent.EventError || events[0].Code != llm.CodeUpstream {
		t.Errorf("unexpected terminal: %+v", events[0])
	}
}

func TestStreamPartialOnBudgetExceeded(t *testing.T) {
	runner := &fakeRunner{
		result: defaultResult(),
		err:    &agent.BudgetExceededError{Budget: agent.BudgetTurns, TurnsUsed: 10},
	}
	router := newTestRouter(runner, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search/stream",
		streamBody(`[{"role":"user","content":"long search"}]`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	events := decodeStream(t, rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("expected results+done, got %d events", len(events))
	}
	if events[0].Type != agent.EventResults || events[0].Count != 2 {
		t.Errorf("expected partial results, got %+v", events[0])
	}
	if events[1].Type != agent.EventDone {
		t.Errorf("expected done terminal, got %+v", events[1])
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	input := `<script>alert("xss")</script> it's a/b`
	once := Sanitize(input)
	twice := Sanitize(once)

	if strings.ContainsAny(once, `<>"'/`) {
		t.Errorf("escaped output still contains markup characters: %q", once)
	}
	if once != twice {
		t.Errorf("sanitization is not idempotent: %q vs %q", once, twice)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeRunner{result: defaultResult()}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
