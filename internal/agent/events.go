package agent

import "github.com/cinescout/cinescout/internal/catalog"

// EventType tags a streaming lifecycle event.
type EventType string

const (
	EventThinking  EventType = "thinking"
	EventToolCall  EventType = "tool_call"
	EventTextDelta EventType = "text_delta"
	EventResults   EventType = "results"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// Tool call statuses carried on tool_call events.
const (
	ToolStatusStarted   = "started"
	ToolStatusCompleted = "completed"
	ToolStatusFailed    = "failed"
)

// Event is the tagged union pushed to streaming consumers. Only the fields
// relevant to the event type are populated.
type Event struct {
	Type    EventType               `json:"type"`
	Summary string                  `json:"summary,omitempty"` // thinking
	Tool    string                  `json:"tool,omitempty"`    // tool_call
	Status  string                  `json:"status,omitempty"`  // tool_call
	Text    string                  `json:"text,omitempty"`    // text_delta
	Items   []catalog.MediaListItem `json:"items,omitempty"`   // results
	Count   int                     `json:"count,omitempty"`   // results
	Error   string                  `json:"error,omitempty"`   // error
	Code    string                  `json:"code,omitempty"`    // error
}

// EventSink receives lifecycle events as the orchestrator produces them.
// A nil sink is valid for non-streaming callers.
type EventSink func(Event)
