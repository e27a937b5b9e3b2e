package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"zeta/pkg/config"
	"zeta/pkg/message"
	providertypes "zeta/pkg/provider/types"
)

const completionFixture = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "llama-3.1-70b-versatile",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": " Merhaba! "}}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Providers.OpenAI.BaseURL = baseURL
	cfg.Providers.OpenAI.APIKeyEnv = "TEST_GROQ_API_KEY"
	cfg.Providers.OpenAI.FallbackAPIKeyEnv = "TEST_GROQ_FALLBACK_KEY"
	return cfg
}

func TestChatWithoutCredentials(t *testing.T) {
	t.Setenv("TEST_GROQ_API_KEY", "")
	t.Setenv("TEST_GROQ_FALLBACK_KEY", "")

	client, err := New(testConfig("https://api.groq.com/openai/v1"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if client.ModelInfo().Available {
		t.Fatal("client without key should not be available")
	}

	_, err = client.Chat(context.Background(), nil, "merhaba", "")
	if got := providertypes.CodeFromError(err); got != providertypes.CodeMissingCredentials {
		t.Fatalf("code = %q, want %q", got, providertypes.CodeMissingCredentials)
	}
}

func TestFallbackKeySwitchesModel(t *testing.T) {
	t.Setenv("TEST_GROQ_API_KEY", "")
	t.Setenv("TEST_GROQ_FALLBACK_KEY", "gsk-fallback")

	client, err := New(testConfig("https://api.groq.com/openai/v1"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	info := client.ModelInfo()
	if info.KeyType != providertypes.KeyFallback || info.Model != defaultFallbackModel || info.Provider != "groq" || !info.Available {
		t.Fatalf("model info = %+v", info)
	}
}

func TestChatSendsHistoryAndSystemPrompt(t *testing.T) {
	t.Setenv("TEST_GROQ_API_KEY", "gsk-test")

	type requestBody struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	bodies := make(chan requestBody, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer gsk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionFixture))
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	history := []message.Message{
		{Role: message.RoleUser, Content: "selam"},
		{Role: message.RoleAssistant, Content: "selam, nasıl yardımcı olabilirim?"},
	}
	result, err := client.Chat(context.Background(), history, "bugün ne yapalım", "Sen Zeta'sın.")
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if result.Text != "Merhaba!" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Metadata.Usage == nil || result.Metadata.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v", result.Metadata.Usage)
	}

	body := <-bodies
	if body.Model != defaultModel || body.Temperature != 0.2 || body.MaxTokens != 1000 {
		t.Fatalf("request = model %q temp %v max %d", body.Model, body.Temperature, body.MaxTokens)
	}
	roles := make([]string, 0, len(body.Messages))
	for _, m := range body.Messages {
		roles = append(roles, m.Role)
	}
	want := []string{"system", "user", "assistant", "user"}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}
	if body.Messages[3].Content != "bugün ne yapalım" {
		t.Fatalf("last message = %q", body.Messages[3].Content)
	}
}

func TestChatMapsStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   providertypes.Code
	}{
		{status: http.StatusTooManyRequests, want: providertypes.CodeRateLimited},
		{status: http.StatusUnauthorized, want: providertypes.CodeInvalidCredentials},
		{status: http.StatusInternalServerError, want: providertypes.CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Setenv("TEST_GROQ_API_KEY", "gsk-test")
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "error"}}`))
			}))
			defer server.Close()

			client, err := New(testConfig(server.URL))
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			_, err = client.Chat(context.Background(), nil, "merhaba", "")
			if got := providertypes.CodeFromError(err); got != tt.want {
				t.Fatalf("code = %q, want %q (err = %v)", got, tt.want, err)
			}
			var providerErr *providertypes.Error
			if !errors.As(err, &providerErr) || providerErr.Provider != "openai" {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain model", input: "llama-3.1-70b-versatile", want: "llama-3.1-70b-versatile"},
		{name: "groq prefix", input: "groq/llama-3.1-8b-instant", want: "llama-3.1-8b-instant"},
		{name: "vendor namespaced model", input: "meta-llama/llama-4-scout", want: "meta-llama/llama-4-scout"},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("normalizeModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
