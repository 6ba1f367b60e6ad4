package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cinescout/cinescout/internal/agent"
	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/logger"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported by connection")

// Stream writes server-sent events for one search request. It is safe for
// concurrent senders, delivers at most one terminal (done or error), and
// never writes after the client disconnects.
type Stream struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *logger.Logger

	mu   sync.Mutex // serializes frame writes
	done atomic.Bool
}

// New prepares the response for server-sent events and returns the stream.
// The context should carry the request's lifetime including the stream
// deadline; once it is cancelled every subsequent write is dropped.
func New(ctx context.Context, w http.ResponseWriter, log *logger.Logger) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{
		ctx:     ctx,
		w:       w,
		flusher: flusher,
		logger:  log.WithComponent("sse"),
	}, nil
}

// Send writes a non-terminal lifecycle event. Events arriving after the
// stream has finished are dropped silently.
func (s *Stream) Send(event agent.Event) {
	if s.done.Load() {
		return
	}
	s.write(event)
}

// Sink adapts the stream for the orchestrator's event callback.
func (s *Stream) Sink() agent.EventSink {
	return s.Send
}

// resultsEvent is the results terminal's wire shape. Unlike agent.Event it
// always carries items and count, so an empty result set serializes as an
// explicit empty list rather than vanishing behind omitempty.
type resultsEvent struct {
	Type  agent.EventType         `json:"type"`
	Items []catalog.MediaListItem `json:"items"`
	Count int                     `json:"count"`
}

// Finish emits the results event followed by the done terminal. Only the
// first terminal call on a stream has any effect.
func (s *Stream) Finish(items []catalog.MediaListItem) {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	if items == nil {
		items = []catalog.MediaListItem{}
	}
	s.write(resultsEvent{Type: agent.EventResults, Items: items, Count: len(items)})
	s.write(agent.Event{Type: agent.EventDone})
}

// Fail emits the error terminal. Only the first terminal call on a stream
// has any effect.
func (s *Stream) Fail(message, code string) {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.write(agent.Event{Type: agent.EventError, Error: message, Code: code})
}

func (s *Stream) write(event any) {
	if s.ctx.Err() != nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal stream event",
			slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.logger.Debug("stream write failed, client likely gone",
			slog.String("error", err.Error()))
		return
	}
	s.flusher.Flush()
}
