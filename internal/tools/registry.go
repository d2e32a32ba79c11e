package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Call is a named, argument-bearing request for one tool execution.
// Calls are created by the planner and consumed at most once.
type Call struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Result is the structured outcome of a tool execution. Every result
// carries at least the boolean "ok" key.
type Result map[string]any

// OK reports the result's success flag.
func (r Result) OK() bool {
	ok, _ := r["ok"].(bool)
	return ok
}

// ErrorMessage returns the failure message, if any.
func (r Result) ErrorMessage() string {
	msg, _ := r["message"].(string)
	return msg
}

// Handler executes one tool. A handler may return any value; non-map
// values are wrapped by the executor. Errors and panics are converted
// to structured failure results and never propagate.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry manages tool handlers by name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a new registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under name.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool handler is required: %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.handlers[name] = handler
	return nil
}

// Get retrieves a handler by exact name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]
	return handler, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
