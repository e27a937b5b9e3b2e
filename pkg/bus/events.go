package bus

import (
	"context"
	"sync"
	"time"
)

// EventType names one lifecycle milestone of a processed message.
type EventType string

const (
	EventPromptReceived  EventType = "prompt_received"
	EventPromptCompleted EventType = "prompt_completed"
	EventPromptBlocked   EventType = "prompt_blocked"
	EventPromptFailed    EventType = "prompt_failed"
	EventToolCompleted   EventType = "tool_completed"
	EventToolFailed      EventType = "tool_failed"
)

// Publisher accepts lifecycle events. *MessageBus implements it.
type Publisher interface {
	PublishEvent(ctx context.Context, event Event) bool
}

// Event is a lifecycle notification fanned out to every subscriber.
type Event struct {
	Type       EventType         `json:"type"`
	At         time.Time         `json:"at"`
	Channel    string            `json:"channel,omitempty"`
	ChatID     string            `json:"chat_id,omitempty"`
	SessionKey string            `json:"session_key,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type subscription struct {
	ch   chan Event
	once sync.Once
}

// PublishEvent delivers event to current subscribers. A full subscriber misses the event
// and the drop is counted; the publisher never waits.
func (mb *MessageBus) PublishEvent(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	for _, sub := range mb.subscribers {
		select {
		case sub.ch <- event:
		default:
			mb.dropped.Add(1)
		}
	}

	return true
}

// DroppedEvents reports how many deliveries were skipped because a subscriber was full.
func (mb *MessageBus) DroppedEvents() uint64 {
	return mb.dropped.Load()
}

// SubscribeEvents registers a buffered subscriber that lives until ctx ends, the bus closes,
// or the returned unsubscribe func is called.
func (mb *MessageBus) SubscribeEvents(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	sub := &subscription{ch: make(chan Event, buffer)}

	mb.mu.Lock()
	select {
	case <-mb.done:
		mb.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	default:
	}
	id := mb.nextSubID
	mb.nextSubID++
	mb.subscribers[id] = sub
	mb.mu.Unlock()

	unsubscribe := func() { mb.unsubscribe(id) }

	go func() {
		select {
		case <-ctx.Done():
		case <-mb.done:
		}
		unsubscribe()
	}()

	return sub.ch, unsubscribe
}

func (mb *MessageBus) unsubscribe(id uint64) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	sub, ok := mb.subscribers[id]
	if !ok {
		return
	}
	delete(mb.subscribers, id)
	sub.once.Do(func() { close(sub.ch) })
}
