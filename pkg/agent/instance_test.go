package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"zeta/pkg/orchestrator"
)

type fakeProcessor struct {
	mu sync.Mutex

	outcomes []orchestrator.Outcome
	requests []orchestrator.Request
	delay    time.Duration
	active   int
	maxSeen  int
}

func (f *fakeProcessor) Process(_ context.Context, req orchestrator.Request) orchestrator.Outcome {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.requests = append(f.requests, req)
	out := orchestrator.Outcome{Kind: orchestrator.KindSuccess, Message: "tamam"}
	if len(f.outcomes) > 0 {
		out = f.outcomes[0]
		f.outcomes = f.outcomes[1:]
	}
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return out
}

func (f *fakeProcessor) request(i int) orchestrator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[i]
}

func newTestInstance(proc *fakeProcessor) *Instance {
	return New(proc, Session{Channel: "telegram", ChatID: "42", SessionKey: "telegram:42"}, 0)
}

func TestPromptRejectsEmptyText(t *testing.T) {
	inst := newTestInstance(&fakeProcessor{})

	if _, err := inst.Prompt(context.Background(), "   ", "", "1"); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestPromptCarriesSessionAndHistory(t *testing.T) {
	proc := &fakeProcessor{outcomes: []orchestrator.Outcome{
		{Kind: orchestrator.KindSuccess, Message: "Merhaba!"},
		{Kind: orchestrator.KindSuccess, Message: "İyiyim."},
	}}
	inst := newTestInstance(proc)
	ctx := context.Background()

	if _, err := inst.Prompt(ctx, "selam", "telegram:7", "1"); err != nil {
		t.Fatalf("first prompt error: %v", err)
	}
	out, err := inst.Prompt(ctx, "nasılsın", "", "2")
	if err != nil {
		t.Fatalf("second prompt error: %v", err)
	}
	if out.Message != "İyiyim." {
		t.Fatalf("message = %q", out.Message)
	}

	first := proc.request(0)
	if first.Identity != "telegram:7" || first.SessionKey != "telegram:42" || first.Channel != "telegram" || first.ChatID != "42" {
		t.Fatalf("first request = %+v", first)
	}
	if len(first.History) != 0 {
		t.Fatalf("first history = %#v", first.History)
	}

	second := proc.request(1)
	if second.Identity != "telegram:42" {
		t.Fatalf("identity fallback = %q, want session key", second.Identity)
	}
	if len(second.History) != 2 || second.History[1].Content != "Merhaba!" {
		t.Fatalf("second history = %#v", second.History)
	}
}

func TestPromptOnlyRemembersSuccess(t *testing.T) {
	tests := []struct {
		name string
		kind orchestrator.Kind
		want int
	}{
		{name: "success", kind: orchestrator.KindSuccess, want: 2},
		{name: "safety block", kind: orchestrator.KindSafetyBlock, want: 0},
		{name: "error", kind: orchestrator.KindError, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{outcomes: []orchestrator.Outcome{{Kind: tt.kind, Message: "yanıt"}}}
			inst := newTestInstance(proc)

			out, err := inst.Prompt(context.Background(), "soru", "", "1")
			if err != nil {
				t.Fatalf("Prompt error: %v", err)
			}
			if out.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", out.Kind, tt.kind)
			}
			if got := len(inst.MemorySnapshot()); got != tt.want {
				t.Fatalf("memory len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPromptSerializesConcurrentCalls(t *testing.T) {
	proc := &fakeProcessor{delay: 10 * time.Millisecond}
	inst := newTestInstance(proc)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = inst.Prompt(context.Background(), "soru", "", "")
		}()
	}
	wg.Wait()

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if proc.maxSeen != 1 {
		t.Fatalf("max concurrent Process calls = %d, want 1", proc.maxSeen)
	}
	if got := len(inst.MemorySnapshot()); got != 10 {
		t.Fatalf("memory len = %d, want 10", got)
	}
}

func TestPromptHonorsCancelledContext(t *testing.T) {
	proc := &fakeProcessor{}
	inst := newTestInstance(proc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := inst.Prompt(ctx, "soru", "", "1"); err == nil {
		t.Fatalf("expected context error")
	}
	if len(proc.requests) != 0 {
		t.Fatalf("processor called %d times", len(proc.requests))
	}
}

func TestResetClearsMemory(t *testing.T) {
	inst := newTestInstance(&fakeProcessor{})
	if _, err := inst.Prompt(context.Background(), "soru", "", "1"); err != nil {
		t.Fatalf("Prompt error: %v", err)
	}

	inst.Reset()
	if got := len(inst.MemorySnapshot()); got != 0 {
		t.Fatalf("memory len after reset = %d", got)
	}
}
