package bus

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestQueuesRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)
	ctx := context.Background()

	in := InboundMessage{Channel: "telegram", SenderID: "42", Content: "merhaba", SessionKey: "telegram:7"}
	if ok := mb.PublishInbound(ctx, in); !ok {
		t.Fatal("expected inbound publish to succeed")
	}
	reply := OutboundMessage{Channel: "telegram", ChatID: "7", Content: "selam", Metadata: map[string]string{MetadataOutcome: "success"}}
	if ok := mb.PublishOutbound(ctx, reply); !ok {
		t.Fatal("expected outbound publish to succeed")
	}

	if inbound, outbound := mb.Pending(); inbound != 1 || outbound != 1 {
		t.Fatalf("pending = %d/%d, want 1/1", inbound, outbound)
	}

	gotIn, ok := mb.ConsumeInbound(ctx)
	if !ok || gotIn.Content != "merhaba" || gotIn.SessionKey != "telegram:7" {
		t.Fatalf("unexpected inbound %#v (ok=%v)", gotIn, ok)
	}
	gotOut, ok := mb.ConsumeOutbound(ctx)
	if !ok || gotOut.Content != "selam" || gotOut.Metadata[MetadataOutcome] != "success" {
		t.Fatalf("unexpected outbound %#v (ok=%v)", gotOut, ok)
	}
}

func TestClosedBusRejectsWork(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	ctx := context.Background()
	if mb.PublishInbound(ctx, InboundMessage{Content: "x"}) {
		t.Fatal("expected inbound publish to fail after close")
	}
	if mb.PublishOutbound(ctx, OutboundMessage{Content: "x"}) {
		t.Fatal("expected outbound publish to fail after close")
	}
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatal("expected inbound consume to fail after close")
	}
	if _, ok := mb.ConsumeOutbound(ctx); ok {
		t.Fatal("expected outbound consume to fail after close")
	}
	if mb.PublishEvent(ctx, Event{Type: EventPromptReceived}) {
		t.Fatal("expected event publish to fail after close")
	}
}

func TestCancelledContextRejectsWork(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if mb.PublishInbound(ctx, InboundMessage{Content: "x"}) {
		t.Fatal("expected publish to fail with cancelled context")
	}
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatal("expected consume to fail with cancelled context")
	}
}

func TestBlockedConsumersUnblockOnClose(t *testing.T) {
	tests := []struct {
		name    string
		consume func(*MessageBus) bool
	}{
		{name: "inbound", consume: func(mb *MessageBus) bool {
			_, ok := mb.ConsumeInbound(context.Background())
			return ok
		}},
		{name: "outbound", consume: func(mb *MessageBus) bool {
			_, ok := mb.ConsumeOutbound(context.Background())
			return ok
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mb := NewMessageBus()
			result := make(chan bool, 1)
			go func() { result <- tc.consume(mb) }()

			mb.Close()

			select {
			case ok := <-result:
				if ok {
					t.Fatal("expected consume to report closed bus")
				}
			case <-time.After(500 * time.Millisecond):
				t.Fatal("consume did not unblock after close")
			}
		})
	}
}

func TestEventFanout(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	eventsA, unsubA := mb.SubscribeEvents(ctx, 1)
	defer unsubA()
	eventsB, unsubB := mb.SubscribeEvents(ctx, 1)
	defer unsubB()

	if ok := mb.PublishEvent(ctx, Event{Type: EventToolCompleted, RequestID: "1", Payload: map[string]string{"tool": "weather"}}); !ok {
		t.Fatal("expected event publish to succeed")
	}

	for name, events := range map[string]<-chan Event{"A": eventsA, "B": eventsB} {
		select {
		case got := <-events:
			if got.Type != EventToolCompleted || got.Payload["tool"] != "weather" || got.At.IsZero() {
				t.Fatalf("subscriber %s got %#v", name, got)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("subscriber %s did not receive event", name)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	defer unsubscribe()

	start := time.Now()
	for _, eventType := range []EventType{EventPromptReceived, EventPromptCompleted, EventPromptBlocked} {
		if ok := mb.PublishEvent(ctx, Event{Type: eventType}); !ok {
			t.Fatalf("expected %s publish to succeed", eventType)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("publish event blocked on slow subscriber")
	}

	if got := mb.DroppedEvents(); got != 2 {
		t.Fatalf("dropped events = %d, want 2", got)
	}
	if got := <-events; got.Type != EventPromptReceived {
		t.Fatalf("first buffered event = %q, want %q", got.Type, EventPromptReceived)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	unsubscribe()
	unsubscribe()

	if ok := mb.PublishEvent(ctx, Event{Type: EventPromptReceived}); !ok {
		t.Fatal("expected event publish to succeed")
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event channel close after unsubscribe")
	}
}

func TestSubscriptionEndsWithContextOrClose(t *testing.T) {
	t.Run("context", func(t *testing.T) {
		mb := NewMessageBus()
		t.Cleanup(mb.Close)

		ctx, cancel := context.WithCancel(context.Background())
		events, _ := mb.SubscribeEvents(ctx, 1)
		cancel()
		waitClosed(t, events)
	})

	t.Run("close", func(t *testing.T) {
		mb := NewMessageBus()
		events, _ := mb.SubscribeEvents(context.Background(), 1)
		mb.Close()
		waitClosed(t, events)
	})

	t.Run("after close", func(t *testing.T) {
		mb := NewMessageBus()
		mb.Close()
		events, unsubscribe := mb.SubscribeEvents(context.Background(), 1)
		unsubscribe()
		waitClosed(t, events)
	})
}

func waitClosed(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected event channel to be closed")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("event subscription did not end")
	}
}

func TestInboundIdentityPrefersSender(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", SenderID: "42", SessionKey: "telegram:7"}
	if got := msg.Identity(); got != "telegram:42" {
		t.Fatalf("identity = %q, want %q", got, "telegram:42")
	}

	msg.SenderID = ""
	if got := msg.Identity(); got != "telegram:7" {
		t.Fatalf("identity = %q, want session key fallback", got)
	}
}

func TestObserveStopsWhenBusCloses(t *testing.T) {
	mb := NewMessageBus()

	done := make(chan struct{})
	go func() {
		defer close(done)
		Observe(context.Background(), mb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	mb.PublishEvent(context.Background(), Event{Type: EventToolFailed, Error: "timeout"})
	mb.Close()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("observer did not stop after close")
	}
}

func TestLogEventLevels(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{eventType: EventPromptFailed, want: "level=ERROR"},
		{eventType: EventPromptBlocked, want: "level=WARN"},
		{eventType: EventToolFailed, want: "level=WARN"},
		{eventType: EventPromptCompleted, want: "level=INFO"},
		{eventType: EventType("custom"), want: "level=DEBUG"},
	}

	for _, tc := range tests {
		t.Run(string(tc.eventType), func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			LogEvent(log, Event{Type: tc.eventType, RequestID: "r1"})
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("log = %q, want %q", buf.String(), tc.want)
			}
		})
	}
}
