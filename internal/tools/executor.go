package tools

import (
	"context"
	"fmt"
	"log/slog"
)

// Executor dispatches a single call to its registered handler and
// converts every failure mode into a structured result. It never
// panics and never returns an error.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs one call. Unknown names yield a tool_not_found result;
// handler errors and panics yield an exception result.
func (e *Executor) Execute(ctx context.Context, call Call) (result Result) {
	handler, ok := e.registry.Get(call.Name)
	if !ok {
		return Result{"ok": false, "error": "tool_not_found", "tool": call.Name}
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", call.Name, "panic", rec)
			result = Result{
				"ok":      false,
				"error":   "exception",
				"tool":    call.Name,
				"message": fmt.Sprint(rec),
			}
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	out, err := handler(ctx, args)
	if err != nil {
		slog.Error("tool failed", "tool", call.Name, "error", err)
		return Result{
			"ok":      false,
			"error":   "exception",
			"tool":    call.Name,
			"message": err.Error(),
		}
	}

	switch v := out.(type) {
	case Result:
		return v
	case map[string]any:
		return Result(v)
	default:
		return Result{"ok": true, "result": v}
	}
}
