package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"

	agentruntime "zeta/pkg/agent/runtime"
	"zeta/pkg/orchestrator"
	"zeta/pkg/safety"
)

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "exit", want: true},
		{input: " quit ", want: true},
		{input: ":q", want: true},
		{input: "EXIT", want: true},
		{input: "merhaba", want: false},
		{input: "quit now", want: false},
	}

	for _, tt := range tests {
		if got := isExitCommand(tt.input); got != tt.want {
			t.Fatalf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAssistantLines(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantOut []string
	}{
		{name: "single line", input: "selam", wantOut: []string{"selam"}},
		{name: "multi line", input: "bir\niki", wantOut: []string{"bir", "iki"}},
		{name: "trim outer whitespace", input: "  bir\niki  ", wantOut: []string{"bir", "iki"}},
		{name: "empty input", input: "   ", wantOut: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assistantLines(tt.input)
			if !reflect.DeepEqual(got, tt.wantOut) {
				t.Fatalf("assistantLines(%q) = %#v, want %#v", tt.input, got, tt.wantOut)
			}
		})
	}
}

func TestResolvePrompt(t *testing.T) {
	original := promptText
	t.Cleanup(func() {
		promptText = original
	})

	promptText = " from-flag "
	if got := resolvePrompt([]string{"from", "args"}); got != "from-flag" {
		t.Fatalf("resolvePrompt with flag = %q, want %q", got, "from-flag")
	}

	promptText = ""
	if got := resolvePrompt([]string{"hava", "nasıl"}); got != "hava nasıl" {
		t.Fatalf("resolvePrompt with args = %q, want %q", got, "hava nasıl")
	}

	if got := resolvePrompt(nil); got != "" {
		t.Fatalf("resolvePrompt without input = %q, want empty", got)
	}
}

func TestPrintAssistantMessage(t *testing.T) {
	output := captureStdout(t, func() {
		printAssistantMessage("first\nsecond")
	})

	if output != "🤖 first\n🤖 second\n\n" {
		t.Fatalf("printAssistantMessage output = %q", output)
	}

	emptyOutput := captureStdout(t, func() {
		printAssistantMessage("   ")
	})
	if emptyOutput != "" {
		t.Fatalf("expected no output for empty message, got %q", emptyOutput)
	}
}

func TestPrintOutcomeByKind(t *testing.T) {
	tests := []struct {
		name    string
		outcome orchestrator.Outcome
		want    string
	}{
		{
			name:    "success with tool",
			outcome: orchestrator.Outcome{Kind: orchestrator.KindSuccess, Message: "18°C", ToolUsed: "weather"},
			want:    "🔧 weather\n🤖 18°C\n\n",
		},
		{
			name:    "safety block",
			outcome: orchestrator.Outcome{Kind: orchestrator.KindSafetyBlock, Message: "Mesaj çok kısa", Reason: safety.ReasonRateLimited},
			want:    "⛔ Mesaj çok kısa\n\n",
		},
		{
			name:    "error",
			outcome: orchestrator.Outcome{Kind: orchestrator.KindError, Message: "Bir hata oluştu"},
			want:    "🚨 Bir hata oluştu\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := captureStdout(t, func() {
				printOutcome(agentruntime.PromptResult{Outcome: tt.outcome})
			})
			if got != tt.want {
				t.Fatalf("printOutcome output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunPlainInteractiveStopsOnExit(t *testing.T) {
	var prompts []string
	promptFn := func(_ context.Context, prompt string) (agentruntime.PromptResult, error) {
		prompts = append(prompts, prompt)
		if prompt == "bozuk" {
			return agentruntime.PromptResult{}, errors.New("bus closed")
		}
		return agentruntime.PromptResult{Outcome: orchestrator.Outcome{Kind: orchestrator.KindSuccess, Message: "yanıt"}}, nil
	}

	output := captureStdout(t, func() {
		err := runPlainInteractive(context.Background(), promptFn, strings.NewReader("merhaba\n\nbozuk\nexit\nsonra\n"))
		if err != nil {
			t.Errorf("runPlainInteractive error: %v", err)
		}
	})

	if !reflect.DeepEqual(prompts, []string{"merhaba", "bozuk"}) {
		t.Fatalf("prompts = %#v", prompts)
	}
	if !strings.Contains(output, "🤖 yanıt") || !strings.Contains(output, "prompt failed: bus closed") {
		t.Fatalf("unexpected output %q", output)
	}
}

func TestRunPlainPromptFailsOnBlockedOutcome(t *testing.T) {
	promptFn := func(_ context.Context, _ string) (agentruntime.PromptResult, error) {
		return agentruntime.PromptResult{Outcome: orchestrator.Outcome{Kind: orchestrator.KindSafetyBlock, Message: "engellendi"}}, nil
	}

	var err error
	captureStdout(t, func() {
		err = runPlainPrompt(context.Background(), promptFn, "x")
	})
	if err == nil {
		t.Fatal("expected error for blocked prompt")
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("create pipe: %v", err)
	}

	os.Stdout = w

	outCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		var builder strings.Builder
		_, copyErr := io.Copy(&builder, r)
		if copyErr != nil {
			errCh <- copyErr
			return
		}
		outCh <- builder.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = original

	select {
	case copyErr := <-errCh:
		_ = r.Close()
		t.Fatalf("read captured stdout: %v", copyErr)
	case output := <-outCh:
		_ = r.Close()
		return output
	}

	return ""
}
