package tools

import (
	"fmt"
	"sync"
)

// Registry manages available tools.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Definitions returns OpenAI-compatible definitions for the named tools,
// in the order given. Unknown names are skipped. With no names it returns
// definitions for every registered tool.
func (r *Registry) Definitions(names ...string) []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		definitions := make([]ToolDefinition, 0, len(r.tools))
		for _, tool := range r.tools {
			definitions = append(definitions, tool.Definition())
		}
		return definitions
	}

	definitions := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, exists := r.tools[name]; exists {
			definitions = append(definitions, tool.Definition())
		}
	}
	return definitions
}

// List returns names of all registered tools.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
