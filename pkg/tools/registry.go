// Package tools holds the capability registry and the contract every capability implements.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a single capability call when the registry has no explicit timeout.
const DefaultTimeout = 15 * time.Second

// Params is the argument map passed to a capability.
type Params map[string]any

// String returns the trimmed string value for key, or "" when absent or not a string.
func (p Params) String(key string) string {
	value, ok := p[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// Result is the normalized outcome of a capability call.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail returns a failed Result with a formatted message.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Tool is one named external capability.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params Params) (Result, error)
}

// Info describes a registered tool for listings.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Func adapts a function into a Tool.
type Func struct {
	ToolName        string
	ToolDescription string
	Fn              func(ctx context.Context, params Params) (Result, error)
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.ToolDescription }

func (f Func) Execute(ctx context.Context, params Params) (Result, error) {
	if f.Fn == nil {
		return Result{}, errors.New("tool function is nil")
	}
	return f.Fn(ctx, params)
}

// Registry maps names to tools and executes them in isolation.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	log     *slog.Logger
}

// NewRegistry creates an empty registry. A zero timeout uses DefaultTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: timeout,
		log:     slog.Default().With("component", "tools.registry"),
	}
}

// Register adds or replaces a tool. A nil tool, an empty name, or a nil Func body is rejected.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("register tool: tool is nil")
	}
	if fn, ok := tool.(Func); ok && fn.Fn == nil {
		return fmt.Errorf("register tool %q: execute function is nil", fn.ToolName)
	}
	name := strings.TrimSpace(tool.Name())
	if name == "" {
		return errors.New("register tool: name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	r.log.Debug("Tool registered", "tool", name)
	return nil
}

// MustRegister is Register for wiring code where a bad tool is a programming error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Unregister removes name and reports whether it was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	r.order = slices.DeleteFunc(r.order, func(existing string) bool { return existing == name })
	return true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// List returns registered tools in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Info{Name: name, Description: r.tools[name].Description()})
	}
	return out
}

// Execute runs name once with params. It never returns an error and never panics:
// unknown names, tool errors, panics and timeouts all become a failed Result.
func (r *Registry) Execute(ctx context.Context, name string, params Params) Result {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("Tool not found", "tool", name)
		return Fail("Tool not found: %s", name)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	EmitEvent(ctx, Event{Kind: EventCall, Tool: name, Payload: paramsPreview(params)})

	done := make(chan Result, 1)
	go func() {
		done <- runIsolated(callCtx, tool, params)
	}()

	var result Result
	select {
	case result = <-done:
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			result = Fail("%s timed out after %s", name, r.timeout)
		} else {
			result = Fail("%s cancelled: %v", name, callCtx.Err())
		}
	}

	elapsed := time.Since(start)
	attrs := []any{"tool", name, "success", result.Success, "duration_ms", elapsed.Milliseconds()}
	if result.Success {
		r.log.InfoContext(ctx, "Tool executed", attrs...)
	} else {
		r.log.WarnContext(ctx, "Tool failed", append(attrs, "error", result.Error)...)
	}

	payload := "ok"
	if !result.Success {
		payload = result.Error
	}
	EmitEvent(ctx, Event{Kind: EventResult, Tool: name, Payload: payload, DurationMs: elapsed.Milliseconds()})

	return result
}

func runIsolated(ctx context.Context, tool Tool, params Params) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Fail("%v", recovered)
		}
	}()

	if params == nil {
		params = Params{}
	}

	res, err := tool.Execute(ctx, params)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if !res.Success && res.Error == "" {
		res.Error = "tool reported failure"
	}
	return res
}

func paramsPreview(params Params) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := fmt.Sprint(params[key])
		if len(value) > 80 {
			value = value[:80] + "..."
		}
		parts = append(parts, key+"="+value)
	}
	return strings.Join(parts, " ")
}
