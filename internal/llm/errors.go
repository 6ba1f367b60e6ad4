package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// AgentError classification codes.
const (
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeTimeout       = "TIMEOUT"
	CodeUpstream      = "UPSTREAM_ERROR"
	CodeEmptyResponse = "EMPTY_RESPONSE"
)

// AgentError is a classified language-model transport failure.
type AgentError struct {
	Code    string
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("model error [%s]: %s", e.Code, e.Message)
}

// Retryable reports whether a single retry with backoff is worthwhile.
func (e *AgentError) Retryable() bool {
	return e.Code == CodeRateLimit || e.Code == CodeTimeout
}

// classify maps go-openai transport errors into AgentError codes.
func classify(err error) *AgentError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &AgentError{Code: CodeTimeout, Message: err.Error()}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &AgentError{Code: CodeRateLimit, Message: apiErr.Message}
		case apiErr.HTTPStatusCode >= 500:
			return &AgentError{Code: CodeUpstream, Message: apiErr.Message}
		default:
			return &AgentError{Code: CodeUpstream, Message: fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)}
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &AgentError{Code: CodeRateLimit, Message: string(reqErr.Body)}
		}
		return &AgentError{Code: CodeUpstream, Message: fmt.Sprintf("status %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))}
	}

	return &AgentError{Code: CodeUpstream, Message: err.Error()}
}
