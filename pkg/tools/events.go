package tools

import (
	"context"
	"strings"
)

// Event kinds emitted around each Execute call.
const (
	EventCall   = "call"
	EventResult = "result"
)

// Event is a normalized capability lifecycle notification.
type Event struct {
	Kind       string `json:"kind"`
	Tool       string `json:"tool"`
	Payload    string `json:"payload,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

type eventHandlerKey struct{}

// EventHandler receives capability events emitted during a request.
type EventHandler func(event Event)

// WithEventHandler returns a context carrying handler.
func WithEventHandler(ctx context.Context, handler EventHandler) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == nil {
		return ctx
	}

	return context.WithValue(ctx, eventHandlerKey{}, handler)
}

// EventHandlerFromContext returns a context-carried handler.
func EventHandlerFromContext(ctx context.Context) (EventHandler, bool) {
	if ctx == nil {
		return nil, false
	}

	handler, ok := ctx.Value(eventHandlerKey{}).(EventHandler)
	if !ok || handler == nil {
		return nil, false
	}

	return handler, true
}

// EmitEvent forwards event to the context handler, when present.
func EmitEvent(ctx context.Context, event Event) {
	handler, ok := EventHandlerFromContext(ctx)
	if !ok {
		return
	}

	event.Kind = strings.TrimSpace(event.Kind)
	event.Tool = strings.TrimSpace(event.Tool)
	event.Payload = strings.TrimSpace(event.Payload)
	handler(event)
}
