package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"github.com/cinescout/cinescout/internal/agent"
	"github.com/cinescout/cinescout/internal/catalog"
	apierrors "github.com/cinescout/cinescout/internal/errors"
	"github.com/cinescout/cinescout/internal/llm"
	"github.com/cinescout/cinescout/internal/logger"
	"github.com/cinescout/cinescout/internal/metrics"
	"github.com/cinescout/cinescout/internal/streaming"
)

const (
	maxQueryLength   = 500
	maxMessages      = 20
	maxContentLength = 1000
)

// Runner abstracts the orchestrator for handler tests.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// Options holds the request-boundary settings.
type Options struct {
	SupportedLocales []string
	DefaultLocale    string
	StreamTimeout    time.Duration
}

// Handler serves the search endpoints.
type Handler struct {
	runner Runner
	opts   Options
	logger *logger.Logger
}

// NewHandler creates the search handler.
func NewHandler(runner Runner, opts Options, log *logger.Logger) *Handler {
	return &Handler{
		runner: runner,
		opts:   opts,
		logger: log.WithComponent("search-handler"),
	}
}

type searchRequest struct {
	Query  string `json:"query" form:"query"`
	Locale string `json:"locale" form:"locale"`
}

type clientMessage struct {
	Role    string                  `json:"role"`
	Content string                  `json:"content"`
	Results []catalog.MediaListItem `json:"results,omitempty"`
}

type streamRequest struct {
	Messages []clientMessage `json:"messages"`
	Locale   string          `json:"locale"`
}

type searchResponse struct {
	Success bool                    `json:"success"`
	Query   string                  `json:"query"`
	Locale  string                  `json:"locale"`
	Items   []catalog.MediaListItem `json:"items"`
	Count   int                     `json:"count"`
	Error   string                  `json:"error,omitempty"`
}

// Search handles GET and POST /api/search: one-shot query, plain JSON reply.
func (h *Handler) Search(c *gin.Context) {
	start := time.Now()

	var req searchRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("json", "invalid").Inc()
		apierrors.AbortWithBadRequest(c, "invalid request body", nil)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" || len(query) > maxQueryLength {
		metrics.SearchRequestsTotal.WithLabelValues("json", "invalid").Inc()
		apierrors.AbortWithBadRequest(c, fmt.Sprintf("query must be between 1 and %d characters", maxQueryLength), nil)
		return
	}

	locale := h.normalizeLocale(req.Locale)
	sanitized := Sanitize(query)
	log := h.logger.WithContext(c.Request.Context())

	result, err := h.runner.Run(c.Request.Context(), agent.Request{
		Messages: []agent.ConversationMessage{{Role: openai.ChatMessageRoleUser, Content: sanitized}},
		Locale:   locale,
	})

	defer metrics.SearchRequestDuration.WithLabelValues("json").Observe(time.Since(start).Seconds())

	if err != nil {
		var budgetErr *agent.BudgetExceededError
		if errors.As(err, &budgetErr) && result != nil {
			metrics.SearchRequestsTotal.WithLabelValues("json", "partial").Inc()
			c.JSON(http.StatusOK, searchResponse{
				Success: false,
				Query:   query,
				Locale:  locale,
				Items:   result.Items,
				Count:   len(result.Items),
				Error:   "search budget exceeded, returning partial results",
			})
			return
		}

		var agentErr *llm.AgentError
		if errors.As(err, &agentErr) {
			log.Error("search failed", slog.String("code", agentErr.Code), slog.String("error", agentErr.Message))
			metrics.SearchRequestsTotal.WithLabelValues("json", "error").Inc()
			c.JSON(statusForCode(agentErr.Code), searchResponse{
				Success: false,
				Query:   query,
				Locale:  locale,
				Items:   []catalog.MediaListItem{},
				Error:   agentErr.Message,
			})
			return
		}

		log.Error("search failed", slog.String("error", err.Error()))
		metrics.SearchRequestsTotal.WithLabelValues("json", "error").Inc()
		apierrors.AbortWithInternal(c)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues("json", "success").Inc()
	c.JSON(http.StatusOK, searchResponse{
		Success: true,
		Query:   query,
		Locale:  locale,
		Items:   result.Items,
		Count:   len(result.Items),
	})
}

// SearchStream handles POST /api/search/stream: conversational input,
// server-sent events out. Validation failures reply with plain JSON before
// the stream opens; afterwards every outcome is a stream terminal.
func (h *Handler) SearchStream(c *gin.Context) {
	start := time.Now()

	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("stream", "invalid").Inc()
		apierrors.AbortWithBadRequest(c, "invalid request body", nil)
		return
	}

	messages, validationErr := h.validateMessages(req.Messages)
	if validationErr != "" {
		metrics.SearchRequestsTotal.WithLabelValues("stream", "invalid").Inc()
		apierrors.AbortWithBadRequest(c, validationErr, nil)
		return
	}

	locale := h.normalizeLocale(req.Locale)
	log := h.logger.WithContext(c.Request.Context())

	stream, err := streaming.New(c.Request.Context(), c.Writer, h.logger)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("stream", "error").Inc()
		apierrors.AbortWithInternal(c)
		return
	}

	// The stream is held open at most this long; past the ceiling the run is
	// cancelled and whatever terminal applies is written.
	runCtx, cancel := context.WithTimeout(c.Request.Context(), h.opts.StreamTimeout)
	defer cancel()

	result, err := h.runner.Run(runCtx, agent.Request{
		Messages: messages,
		Locale:   locale,
		Sink:     stream.Sink(),
	})

	defer metrics.SearchRequestDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())

	if err != nil {
		var budgetErr *agent.BudgetExceededError
		if errors.As(err, &budgetErr) && result != nil {
			metrics.SearchRequestsTotal.WithLabelValues("stream", "partial").Inc()
			stream.Finish(result.Items)
			return
		}

		var agentErr *llm.AgentError
		if errors.As(err, &agentErr) {
			log.Error("stream search failed", slog.String("code", agentErr.Code), slog.String("error", agentErr.Message))
			metrics.SearchRequestsTotal.WithLabelValues("stream", "error").Inc()
			stream.Fail(agentErr.Message, agentErr.Code)
			return
		}

		log.Error("stream search failed", slog.String("error", err.Error()))
		metrics.SearchRequestsTotal.WithLabelValues("stream", "error").Inc()
		stream.Fail("internal error", "INTERNAL")
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues("stream", "success").Inc()
	stream.Finish(result.Items)
}

// validateMessages enforces the message schema and returns the sanitized
// conversation, or a non-empty validation message.
func (h *Handler) validateMessages(messages []clientMessage) ([]agent.ConversationMessage, string) {
	if len(messages) == 0 || len(messages) > maxMessages {
		return nil, fmt.Sprintf("messages must contain between 1 and %d entries", maxMessages)
	}

	out := make([]agent.ConversationMessage, 0, len(messages))
	for i, msg := range messages {
		if msg.Role != openai.ChatMessageRoleUser && msg.Role != openai.ChatMessageRoleAssistant {
			return nil, fmt.Sprintf("messages[%d]: role must be user or assistant", i)
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			return nil, fmt.Sprintf("messages[%d]: content is required", i)
		}
		if len(msg.Content) > maxContentLength {
			return nil, fmt.Sprintf("messages[%d]: content exceeds %d characters", i, maxContentLength)
		}
		if msg.Results != nil && len(msg.Results) == 0 {
			return nil, fmt.Sprintf("messages[%d]: results must not be empty when present", i)
		}
		out = append(out, agent.ConversationMessage{
			Role:    msg.Role,
			Content: Sanitize(content),
			Results: msg.Results,
		})
	}
	return out, ""
}

func (h *Handler) normalizeLocale(locale string) string {
	for _, supported := range h.opts.SupportedLocales {
		if locale == supported {
			return locale
		}
	}
	return h.opts.DefaultLocale
}

func statusForCode(code string) int {
	switch code {
	case llm.CodeRateLimit:
		return http.StatusTooManyRequests
	case llm.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
