package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/logger"
	"github.com/cinescout/cinescout/internal/metrics"
	"github.com/cinescout/cinescout/internal/tools"
)

// Completer is the model transport the orchestrator drives.
// Satisfied by *llm.Client; tests substitute a scripted fake.
type Completer interface {
	Complete(ctx context.Context, phase string, messages []openai.ChatCompletionMessage, toolDefs []tools.ToolDefinition) (openai.ChatCompletionMessage, error)
}

// Config holds the run budgets.
type Config struct {
	Phase1MaxTurns int
	MaxTurns       int
	Timeout        time.Duration
	ToolTimeout    time.Duration
	MaxResults     int
}

// ConversationMessage is one sanitized inbound message. Assistant messages
// may carry the results they presented earlier so the model sees them.
type ConversationMessage struct {
	Role    string
	Content string
	Results []catalog.MediaListItem
}

// Request is one orchestration run request.
type Request struct {
	Messages []ConversationMessage
	Locale   string
	Sink     EventSink
}

// Result is the final ranked item list of a run.
type Result struct {
	Items []catalog.MediaListItem
}

// Orchestrator drives the two-phase tool-calling loop. It owns no mutable
// state itself; everything per-run lives in a State constructed inside Run.
type Orchestrator struct {
	model    Completer
	registry *tools.Registry
	logger   *logger.Logger
	cfg      Config
}

// New creates an orchestrator.
func New(model Completer, registry *tools.Registry, cfg Config, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		model:    model,
		registry: registry,
		logger:   logger.WithComponent("orchestrator"),
		cfg:      cfg,
	}
}

// Run executes one full orchestration: gathering, ranking, finalizing.
// On BudgetExceededError the returned Result still carries whatever was
// collected; every other error means no usable result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	log := o.logger.WithContext(ctx)
	state := newState(o.buildTranscript(req.Messages))

	emit := func(e Event) {
		if req.Sink != nil {
			req.Sink(e)
		}
	}

	if err := o.runGathering(ctx, state, req.Locale, emit, log); err != nil {
		if budgetErr, ok := err.(*BudgetExceededError); ok {
			log.Warn("budget exceeded, returning partial results",
				slog.String("budget", budgetErr.Budget),
				slog.Int("turns_used", budgetErr.TurnsUsed),
				slog.Int("collected", state.CollectedCount()))
			return &Result{Items: o.finalize(state.ByPopularity())}, budgetErr
		}
		return nil, err
	}

	ranked := o.runRanking(ctx, state, req.Messages, log)
	if ranked == nil {
		// Any phase-2 failure degrades to provider-native relevance.
		ranked = state.ByPopularity()
	}

	return &Result{Items: o.finalize(ranked)}, nil
}

// buildTranscript seeds the conversation with system instructions plus the
// caller's (already sanitized) messages.
func (o *Orchestrator) buildTranscript(messages []ConversationMessage) []openai.ChatCompletionMessage {
	transcript := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	transcript = append(transcript, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: phase1SystemPrompt,
	})

	for _, msg := range messages {
		content := msg.Content
		if msg.Role == openai.ChatMessageRoleAssistant && len(msg.Results) > 0 {
			content += "\n[previously shown results: " + renderResultRefs(msg.Results) + "]"
		}
		transcript = append(transcript, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: content,
		})
	}
	return transcript
}

func renderResultRefs(items []catalog.MediaListItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		title := ""
		if item.Title != nil {
			title = *item.Title
		}
		parts = append(parts, fmt.Sprintf("%d:%q", item.ID, title))
	}
	return strings.Join(parts, ", ")
}

// runGathering is the phase-1 loop. It returns nil once the state has
// transitioned to Phase2Ranking, or a BudgetExceededError/model error.
func (o *Orchestrator) runGathering(ctx context.Context, state *State, locale string, emit EventSink, log *logger.Logger) error {
	for state.Phase == Phase1Gathering {
		if ctx.Err() != nil {
			return &BudgetExceededError{Budget: BudgetWallClock, TurnsUsed: state.TurnsUsed}
		}
		if state.TurnsUsed >= o.cfg.MaxTurns {
			return &BudgetExceededError{Budget: BudgetTurns, TurnsUsed: state.TurnsUsed}
		}
		if state.TurnsUsed >= o.cfg.Phase1MaxTurns {
			// The model never signalled completion; transition anyway with
			// whatever has been collected.
			log.Warn("phase 1 turn budget exhausted, forcing transition",
				slog.Int("turns_used", state.TurnsUsed),
				slog.Int("collected", state.CollectedCount()))
			state.Phase = Phase2Ranking
			return nil
		}

		msg, err := o.model.Complete(ctx, state.Phase.String(), state.Transcript,
			o.registry.Definitions(phaseTools[Phase1Gathering]...))
		if err != nil {
			if ctx.Err() != nil {
				return &BudgetExceededError{Budget: BudgetWallClock, TurnsUsed: state.TurnsUsed}
			}
			return err
		}

		state.TurnsUsed++
		state.Transcript = append(state.Transcript, msg)

		if msg.Content != "" {
			emit(Event{Type: EventTextDelta, Text: msg.Content})
		}
		if len(msg.ToolCalls) == 0 {
			// Plain text consumes a turn; the loop nudges by re-invoking with
			// the same tool set.
			continue
		}

		if o.executeToolCalls(ctx, state, msg.ToolCalls, emit, log) {
			state.Phase = Phase2Ranking
		}
	}
	return nil
}

// executeToolCalls runs one turn's tool calls and appends their results to
// the transcript in issuance order. Catalog-backed calls execute
// concurrently; collected items merge in completion order. Returns true when
// a valid complete_phase_1 call was among them.
func (o *Orchestrator) executeToolCalls(ctx context.Context, state *State, calls []openai.ToolCall, emit EventSink, log *logger.Logger) bool {
	results := make([]openai.ChatCompletionMessage, len(calls))
	phaseComplete := false

	collectCtx := tools.WithCollector(ctx, state.Merge)

	var wg sync.WaitGroup
	var completeMu sync.Mutex

	for i, call := range calls {
		emit(Event{Type: EventToolCall, Tool: call.Function.Name, Status: ToolStatusStarted})

		wg.Add(1)
		go func(idx int, call openai.ToolCall) {
			defer wg.Done()

			content, err := o.executeSingleTool(collectCtx, call)
			if err != nil {
				log.Warn("tool execution failed",
					slog.String("tool", call.Function.Name),
					slog.String("error", err.Error()))
				metrics.ToolExecutionsTotal.WithLabelValues(call.Function.Name, "error").Inc()
				emit(Event{Type: EventToolCall, Tool: call.Function.Name, Status: ToolStatusFailed})

				// Recorded as a failed tool turn so the model can adapt.
				content = "Error executing tool: " + err.Error()
			} else {
				metrics.ToolExecutionsTotal.WithLabelValues(call.Function.Name, "success").Inc()
				emit(Event{Type: EventToolCall, Tool: call.Function.Name, Status: ToolStatusCompleted})

				if call.Function.Name == "complete_phase_1" {
					completeMu.Lock()
					phaseComplete = true
					completeMu.Unlock()
					if summary := tools.ParseCompletionSummary(call.Function.Arguments); summary != "" {
						emit(Event{Type: EventThinking, Summary: summary})
					}
				}
			}

			results[idx] = openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
				Content:    content,
			}
		}(i, call)
	}
	wg.Wait()

	state.Transcript = append(state.Transcript, results...)
	return phaseComplete
}

func (o *Orchestrator) executeSingleTool(ctx context.Context, call openai.ToolCall) (string, error) {
	tool, exists := o.registry.Get(call.Function.Name)
	if !exists {
		return "", fmt.Errorf("tool %s not found", call.Function.Name)
	}

	toolCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
	defer cancel()

	return tool.Execute(toolCtx, call.Function.Arguments)
}

// candidateView is the compact item rendering given to the ranking model.
type candidateView struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Kind       string  `json:"kind"`
	Rating     float64 `json:"rating"`
	Popularity float64 `json:"popularity"`
	Overview   string  `json:"overview,omitempty"`
}

// runRanking is phase 2: a single completion over the collected set with no
// tools enabled. Returns nil on any failure; the caller falls back to
// popularity order. Ids outside the collected set are discarded.
func (o *Orchestrator) runRanking(ctx context.Context, state *State, messages []ConversationMessage, log *logger.Logger) []catalog.MediaItem {
	collected := state.Collected()
	if len(collected) == 0 {
		return nil
	}

	views := make([]candidateView, 0, len(collected))
	for _, item := range collected {
		views = append(views, candidateView{
			ID:         item.ID,
			Title:      item.Title,
			Kind:       string(item.Kind),
			Rating:     item.Rating,
			Popularity: item.Popularity,
			Overview:   truncate(item.Overview, 200),
		})
	}
	payload, err := json.Marshal(views)
	if err != nil {
		log.Error("failed to marshal candidates", slog.String("error", err.Error()))
		return nil
	}

	ranking := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: phase2SystemPrompt},
	}
	if query := lastUserContent(messages); query != "" {
		ranking = append(ranking, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "Request: " + query,
		})
	}
	ranking = append(ranking, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: "Candidates:\n" + string(payload),
	})

	msg, err := o.model.Complete(ctx, Phase2Ranking.String(), ranking,
		o.registry.Definitions(phaseTools[Phase2Ranking]...))
	state.TurnsUsed++
	if err != nil {
		log.Warn("ranking turn failed, falling back to popularity order",
			slog.String("error", err.Error()))
		return nil
	}

	if len(msg.ToolCalls) > 0 {
		// No tools exist in this phase; a call here is a model violation and
		// is ignored wholesale.
		log.Warn("model requested tools during ranking, ignoring",
			slog.Int("tool_calls", len(msg.ToolCalls)))
	}

	ids := parseRanking(msg.Content)
	if len(ids) == 0 {
		return nil
	}

	ranked := make([]catalog.MediaItem, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if item, ok := state.Lookup(id); ok {
			ranked = append(ranked, item)
		}
	}
	if len(ranked) == 0 {
		return nil
	}
	return ranked
}

// parseRanking extracts the ranked id list from the model's reply,
// tolerating markdown code fences around the JSON.
func parseRanking(content string) []int {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed struct {
		Ranking []int `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil
	}
	return parsed.Ranking
}

func (o *Orchestrator) finalize(items []catalog.MediaItem) []catalog.MediaListItem {
	if o.cfg.MaxResults > 0 && len(items) > o.cfg.MaxResults {
		items = items[:o.cfg.MaxResults]
	}
	out := make([]catalog.MediaListItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.ToListItem())
	}
	return out
}

func lastUserContent(messages []ConversationMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.ChatMessageRoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
