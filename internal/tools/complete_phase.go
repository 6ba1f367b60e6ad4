package tools

import (
	"context"
	"strings"

	"github.com/cinescout/cinescout/internal/logger"
)

// CompletePhaseAck is the fixed payload returned by complete_phase_1.
const CompletePhaseAck = `{"acknowledged":true,"next_phase":"ranking"}`

// CompletePhaseTool is a no-op signal tool. Calling it is how the model
// declares data gathering finished; the orchestrator watches for the call
// by name and performs the phase transition itself.
type CompletePhaseTool struct {
	logger *logger.Logger
}

// NewCompletePhaseTool creates the phase completion signal tool.
func NewCompletePhaseTool(logger *logger.Logger) *CompletePhaseTool {
	return &CompletePhaseTool{logger: logger.WithComponent("complete-phase-tool")}
}

type completePhaseArgs struct {
	Summary string `json:"summary" jsonschema:"description=One or two sentences describing what was gathered and why it satisfies the query"`
}

// Name returns the tool name.
func (t *CompletePhaseTool) Name() string {
	return "complete_phase_1"
}

// Definition returns the OpenAI-compatible function definition.
func (t *CompletePhaseTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        t.Name(),
			Description: "Call exactly once when enough candidates have been gathered to answer the query. Do not call any other tool afterwards.",
			Parameters:  schemaFor(&completePhaseArgs{}),
		},
	}
}

// Execute acknowledges the signal. The summary is validated but otherwise
// unused here; the orchestrator reads it from the call arguments.
func (t *CompletePhaseTool) Execute(ctx context.Context, args string) (string, error) {
	var parsed completePhaseArgs
	if err := ParseArguments(args, &parsed); err != nil {
		return "", &ArgumentError{Tool: t.Name(), Reason: err.Error()}
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return "", &ArgumentError{Tool: t.Name(), Reason: "summary is required"}
	}
	return CompletePhaseAck, nil
}

// ParseCompletionSummary extracts the summary from a complete_phase_1 call's
// raw arguments. Returns empty string when absent or malformed.
func ParseCompletionSummary(args string) string {
	var parsed completePhaseArgs
	if err := ParseArguments(args, &parsed); err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.Summary)
}
