package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	agentruntime "zeta/pkg/agent/runtime"
	"zeta/pkg/orchestrator"
	providertypes "zeta/pkg/provider/types"
	"zeta/pkg/tools"
)

func TestApplyResultAddsToolCardsBeforeAnswer(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), Options{}, modeInteractive, "")
	m.applyResult(promptResultMsg{
		outcome: orchestrator.Outcome{
			Kind:    orchestrator.KindSuccess,
			Message: "İstanbul 18°C",
			Usage:   &providertypes.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		},
		events: []tools.Event{
			{Kind: tools.EventCall, Tool: "weather", Payload: "city=İstanbul"},
			{Kind: tools.EventResult, Tool: "weather", Payload: "ok", DurationMs: 42},
		},
	})

	if len(m.messages) != 2 {
		t.Fatalf("expected tool card and answer, got %#v", m.messages)
	}
	if m.messages[0].role != roleTool || !strings.Contains(m.messages[0].content, "weather · 42 ms") {
		t.Fatalf("unexpected tool card: %#v", m.messages[0])
	}
	if m.messages[1].role != roleAssistant || m.messages[1].content != "İstanbul 18°C" {
		t.Fatalf("unexpected answer: %#v", m.messages[1])
	}
	if m.usageTotal != 15 || m.usageIn != 10 || m.usageOut != 5 {
		t.Fatalf("unexpected usage totals: %d/%d/%d", m.usageIn, m.usageOut, m.usageTotal)
	}
}

func TestApplyResultByOutcomeKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      promptResultMsg
		wantRole string
		wantErr  bool
	}{
		{
			name:     "safety block",
			msg:      promptResultMsg{outcome: orchestrator.Outcome{Kind: orchestrator.KindSafetyBlock, Message: "Çok fazla istek"}},
			wantRole: roleBlocked,
		},
		{
			name:     "processing error",
			msg:      promptResultMsg{outcome: orchestrator.Outcome{Kind: orchestrator.KindError, Message: "Bir hata oluştu"}},
			wantRole: roleError,
			wantErr:  true,
		},
		{
			name:     "transport error",
			msg:      promptResultMsg{err: errors.New("bus closed")},
			wantRole: roleError,
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := newModel(context.Background(), Options{}, modeInteractive, "")
			m.applyResult(tc.msg)
			if len(m.messages) != 1 || m.messages[0].role != tc.wantRole {
				t.Fatalf("unexpected messages: %#v", m.messages)
			}
			if (m.lastErr != "") != tc.wantErr {
				t.Fatalf("lastErr = %q, wantErr %v", m.lastErr, tc.wantErr)
			}
		})
	}
}

func TestSubmitResetClearsTranscript(t *testing.T) {
	t.Parallel()

	resets := 0
	m := newModel(context.Background(), Options{Reset: func() { resets++ }}, modeInteractive, "")
	m.booting = false
	m.messages = []chatMessage{{role: roleUser, content: "merhaba"}, {role: roleAssistant, content: "selam"}}
	m.usageTotal = 12
	m.input.SetValue("/reset")

	_, cmd := m.submit()
	if cmd != nil {
		t.Fatal("expected no command for reset")
	}
	if resets != 1 {
		t.Fatalf("expected reset callback once, got %d", resets)
	}
	if len(m.messages) != 1 || m.messages[0].role != roleNotice {
		t.Fatalf("expected only reset notice, got %#v", m.messages)
	}
	if m.usageTotal != 0 {
		t.Fatalf("expected usage reset, got %d", m.usageTotal)
	}
}

func TestSubmitSendsPrompt(t *testing.T) {
	t.Parallel()

	var got string
	m := newModel(context.Background(), Options{Prompt: func(_ context.Context, prompt string) (agentruntime.PromptResult, error) {
		got = prompt
		return agentruntime.PromptResult{Outcome: orchestrator.Outcome{Kind: orchestrator.KindSuccess, Message: "tamam"}}, nil
	}}, modeInteractive, "")
	m.booting = false
	m.input.SetValue("  hava nasıl  ")

	_, cmd := m.submit()
	if cmd == nil {
		t.Fatal("expected prompt command")
	}
	if !m.isLoading {
		t.Fatal("expected loading state")
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input cleared, got %q", m.input.Value())
	}

	result := sendPromptCmd(context.Background(), m.promptFn, "hava nasıl")()
	msg, ok := result.(promptResultMsg)
	if !ok || msg.err != nil || msg.outcome.Message != "tamam" {
		t.Fatalf("unexpected prompt result: %#v", result)
	}
	if got != "hava nasıl" {
		t.Fatalf("prompt = %q", got)
	}
}

func TestSendPromptWithoutFunctionFails(t *testing.T) {
	t.Parallel()

	msg, ok := sendPromptCmd(context.Background(), nil, "x")().(promptResultMsg)
	if !ok || msg.err == nil {
		t.Fatalf("expected error result, got %#v", msg)
	}
}

func TestOneShotQuitsAfterResult(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), Options{}, modeOneShot, "selam")
	_, cmd := m.Update(promptResultMsg{outcome: orchestrator.Outcome{Kind: orchestrator.KindSuccess, Message: "merhaba"}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	if view := m.View(); !strings.Contains(view, "selam") {
		t.Fatalf("expected sent prompt in view, got %q", view)
	}
}

func TestCommandHelpers(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"exit", " /EXIT ", "quit", ":q"} {
		if !isExitCommand(input) {
			t.Fatalf("expected %q to exit", input)
		}
	}
	if isExitCommand("çıkış yap") {
		t.Fatal("unexpected exit match")
	}
	if !isResetCommand("/Reset") || !isResetCommand("/yeni") || isResetCommand("reset") {
		t.Fatal("unexpected reset command matching")
	}
}

func TestMarkdownRendererFallsBackOnEmpty(t *testing.T) {
	t.Parallel()

	var r markdownRenderer
	if got := r.render("   ", 80); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
	if got := r.render("merhaba dünya", 80); !strings.Contains(got, "merhaba") {
		t.Fatalf("expected rendered text to keep content, got %q", got)
	}
}
