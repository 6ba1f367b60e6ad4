package llm

import (
	"context"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cinescout/cinescout/internal/logger"
	"github.com/cinescout/cinescout/internal/metrics"
	"github.com/cinescout/cinescout/internal/tools"
)

// chatAPI is the slice of the go-openai client the wrapper needs.
// Satisfied by *openai.Client; tests substitute a fake.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the model transport settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	RetryBackoff time.Duration
	Logger       *logger.Logger
}

// Client wraps an OpenAI-compatible chat completion API with tool support,
// error classification and a single retry for transient failures.
type Client struct {
	api          chatAPI
	model        string
	temperature  float32
	retryBackoff time.Duration
	logger       *logger.Logger
}

// NewClient creates an LLM client from config.
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Client{
		api:          openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		retryBackoff: backoff,
		logger:       cfg.Logger.WithComponent("llm"),
	}
}

// NewClientWithAPI creates a client over an existing chat API implementation.
// Used by tests and by callers that manage the underlying client themselves.
func NewClientWithAPI(api chatAPI, model string, backoff time.Duration, logger *logger.Logger) *Client {
	return &Client{
		api:          api,
		model:        model,
		retryBackoff: backoff,
		logger:       logger.WithComponent("llm"),
	}
}

// Complete runs one chat completion turn. Turn re-submission is idempotent,
// so rate-limit and timeout failures are retried exactly once after backoff.
func (c *Client) Complete(ctx context.Context, phase string, messages []openai.ChatCompletionMessage, toolDefs []tools.ToolDefinition) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}
	for _, def := range toolDefs {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Function.Name,
				Description: def.Function.Description,
				Parameters:  def.Function.Parameters,
			},
		})
	}

	msg, agentErr := c.complete(ctx, phase, req)
	if agentErr == nil {
		return msg, nil
	}

	if !agentErr.Retryable() {
		return openai.ChatCompletionMessage{}, agentErr
	}

	c.logger.Warn("model call failed, retrying once",
		slog.String("code", agentErr.Code),
		slog.Duration("backoff", c.retryBackoff))

	select {
	case <-time.After(c.retryBackoff):
	case <-ctx.Done():
		return openai.ChatCompletionMessage{}, &AgentError{Code: CodeTimeout, Message: ctx.Err().Error()}
	}

	msg, agentErr = c.complete(ctx, phase, req)
	if agentErr != nil {
		return openai.ChatCompletionMessage{}, agentErr
	}
	return msg, nil
}

func (c *Client) complete(ctx context.Context, phase string, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, *AgentError) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues(c.model, phase, "error").Inc()
		return openai.ChatCompletionMessage{}, classify(err)
	}

	if len(resp.Choices) == 0 {
		metrics.ModelCallsTotal.WithLabelValues(c.model, phase, "error").Inc()
		return openai.ChatCompletionMessage{}, &AgentError{Code: CodeEmptyResponse, Message: "completion returned no choices"}
	}

	metrics.ModelCallsTotal.WithLabelValues(c.model, phase, "success").Inc()
	return resp.Choices[0].Message, nil
}
