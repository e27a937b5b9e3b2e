package opencode

import (
	"strings"
	"testing"

	"zeta/pkg/config"
	"zeta/pkg/message"

	sdk "github.com/sst/opencode-sdk-go"
)

func TestNewRequiresBaseURL(t *testing.T) {
	cfg := &config.Config{}

	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error when base_url is missing")
	}
}

func TestParseModelRef(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantOK     bool
		wantProvID string
		wantModel  string
	}{
		{name: "valid", input: "groq/llama-3.1-70b-versatile", wantOK: true, wantProvID: "groq", wantModel: "llama-3.1-70b-versatile"},
		{name: "missing slash", input: "llama-3.1-70b-versatile", wantOK: false},
		{name: "empty provider", input: "/llama", wantOK: false},
		{name: "empty model", input: "groq/", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provID, modelID, ok := parseModelRef(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if provID != tt.wantProvID {
				t.Fatalf("providerID = %q, want %q", provID, tt.wantProvID)
			}
			if modelID != tt.wantModel {
				t.Fatalf("modelID = %q, want %q", modelID, tt.wantModel)
			}
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	history := []message.Message{
		{Role: message.RoleUser, Content: "selam"},
		{Role: message.RoleAssistant, Content: "merhaba"},
	}

	got := renderPrompt(history, " nasılsın ", "Sen Zeta'sın.")
	want := "Sen Zeta'sın.\n\nKonuşma geçmişi:\nuser: selam\nassistant: merhaba\n\nnasılsın"
	if got != want {
		t.Fatalf("renderPrompt() = %q, want %q", got, want)
	}

	if got := renderPrompt(nil, "tek mesaj", ""); got != "tek mesaj" {
		t.Fatalf("renderPrompt(no history) = %q", got)
	}
}

func TestExtractText(t *testing.T) {
	parts := []sdk.Part{
		{Type: sdk.PartTypeReasoning, Text: "should be ignored"},
		{Type: sdk.PartTypeText, Text: "  first line  "},
		{Type: sdk.PartTypeText, Text: ""},
		{Type: sdk.PartTypeText, Text: "second line"},
	}

	got := extractText(parts)
	if got != "first line\nsecond line" {
		t.Fatalf("extractText() = %q", got)
	}
}

func TestBuildBasicAuthHeader(t *testing.T) {
	t.Setenv("TEST_OPENCODE_PASSWORD", "secret")

	header, ok := buildBasicAuthHeader(config.OpenCodeProviderConfig{
		Username:    "opencode",
		PasswordEnv: "TEST_OPENCODE_PASSWORD",
	})
	if !ok {
		t.Fatal("expected basic auth header")
	}
	if !strings.HasPrefix(header, "Basic ") {
		t.Fatalf("unexpected header prefix: %q", header)
	}
}

func TestBuildBasicAuthHeaderMissingEnvValue(t *testing.T) {
	t.Setenv("TEST_OPENCODE_PASSWORD_EMPTY", "")

	_, ok := buildBasicAuthHeader(config.OpenCodeProviderConfig{
		PasswordEnv: "TEST_OPENCODE_PASSWORD_EMPTY",
	})
	if ok {
		t.Fatal("expected no basic auth header")
	}
}
