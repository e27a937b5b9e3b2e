// Package bus is the in-process transport between front doors (CLI, Telegram, HTTP) and the
// pipeline workers, plus a lossy fan-out of lifecycle events.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 100

// MessageBus carries inbound prompts, outbound replies and lifecycle events.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	subscribers map[uint64]*subscription
	nextSubID   uint64
	dropped     atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

// NewMessageBus returns an open bus with buffered queues.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:     make(chan InboundMessage, defaultBufferSize),
		outbound:    make(chan OutboundMessage, defaultBufferSize),
		subscribers: make(map[uint64]*subscription),
		done:        make(chan struct{}),
	}
}

// PublishInbound queues a user message for a worker. It fails once the bus or ctx is done.
func (mb *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) bool {
	return send(ctx, mb.done, mb.inbound, msg)
}

// ConsumeInbound blocks until a message is queued, ctx ends, or the bus closes.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return receive(ctx, mb.done, mb.inbound)
}

// PublishOutbound queues a reply for the originating front door.
func (mb *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) bool {
	return send(ctx, mb.done, mb.outbound, msg)
}

// ConsumeOutbound blocks until a reply is queued, ctx ends, or the bus closes.
func (mb *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return receive(ctx, mb.done, mb.outbound)
}

// Pending reports queued, unconsumed inbound and outbound messages.
func (mb *MessageBus) Pending() (inbound int, outbound int) {
	return len(mb.inbound), len(mb.outbound)
}

// Close stops all queues and closes every event subscription. It is safe to call twice.
func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, sub := range mb.subscribers {
			sub.once.Do(func() { close(sub.ch) })
			delete(mb.subscribers, id)
		}
		mb.mu.Unlock()
	})
}

// send refuses work on a closed bus even when the queue still has room.
func send[T any](ctx context.Context, done <-chan struct{}, queue chan<- T, msg T) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return false
	case <-done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return false
	case queue <- msg:
		return true
	}
}

func receive[T any](ctx context.Context, done <-chan struct{}, queue <-chan T) (T, bool) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return zero, false
	case <-done:
		return zero, false
	case msg := <-queue:
		return msg, true
	}
}
