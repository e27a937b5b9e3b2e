package bus

import (
	"context"
	"log/slog"
	"time"
)

// Observe logs every event published on mb until ctx ends or the bus closes.
func Observe(ctx context.Context, mb *MessageBus, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "bus.events")

	events, unsubscribe := mb.SubscribeEvents(ctx, 32)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			LogEvent(log, event)
		}
	}
}

// LogEvent writes event with a stable attribute set; failures log at error, blocks and
// degraded tools at warn, milestones at info.
func LogEvent(log *slog.Logger, event Event) {
	attrs := []any{
		"event_type", event.Type,
		"request_id", event.RequestID,
		"channel", event.Channel,
		"chat_id", event.ChatID,
		"session_key", event.SessionKey,
		"timestamp", event.At.UTC().Format(time.RFC3339Nano),
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch event.Type {
	case EventPromptFailed:
		log.Error("Prompt event", append(attrs, "error", event.Error)...)
	case EventPromptBlocked, EventToolFailed:
		log.Warn("Prompt event", append(attrs, "error", event.Error)...)
	case EventPromptReceived, EventPromptCompleted, EventToolCompleted:
		log.Info("Prompt event", attrs...)
	default:
		log.Debug("Prompt event", attrs...)
	}
}
