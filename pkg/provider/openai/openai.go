package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"zeta/pkg/config"
	"zeta/pkg/message"
	providertypes "zeta/pkg/provider/types"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	defaultModel         = "llama-3.1-70b-versatile"
	defaultFallbackModel = "llama-3.1-8b-instant"
	emptyReply           = "Yanıt oluşturulamadı."
)

// Client talks to an OpenAI-compatible chat completions endpoint (Groq by default).
type Client struct {
	client         *osdk.Client
	name           string
	model          string
	keyType        string
	maxTokens      int64
	temperature    float64
	requestTimeout time.Duration
}

// New builds the client. A missing key is not an error here; Chat reports it per call.
func New(cfg *config.Config) (*Client, error) {
	providerCfg := cfg.Providers.OpenAI
	defaults := cfg.Agents.Defaults

	c := &Client{
		name:        providerName(providerCfg.BaseURL),
		model:       strings.TrimSpace(defaults.Model),
		maxTokens:   int64(defaults.MaxTokens),
		temperature: defaults.Temperature,
	}
	if c.model == "" {
		c.model = defaultModel
	}

	apiKey, keyType := resolveAPIKey(providerCfg)
	if keyType == providertypes.KeyFallback {
		c.model = strings.TrimSpace(providerCfg.FallbackModel)
		if c.model == "" {
			c.model = defaultFallbackModel
		}
	}
	c.keyType = keyType

	model, err := normalizeModel(c.model)
	if err != nil {
		return nil, err
	}
	c.model = model

	c.requestTimeout = time.Duration(providerCfg.RequestTimeoutSeconds) * time.Second
	if apiKey == "" {
		return c, nil
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL := strings.TrimSpace(providerCfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if c.requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.requestTimeout))
	}

	client := osdk.NewClient(opts...)
	c.client = &client

	return c, nil
}

func (c *Client) Health(ctx context.Context) error {
	if c.client == nil {
		return providertypes.MissingCredentials(c.name)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "health")
	startedAt := time.Now()
	log.Debug("provider request started")

	if _, err := c.client.Models.List(ctx); err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("health check failed: %w", classify(c.name, err))
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

// Chat sends the system prompt, the replayed history and the new user message as one completion.
func (c *Client) Chat(ctx context.Context, history []message.Message, userMessage string, systemPrompt string) (providertypes.ChatResult, error) {
	if c.client == nil {
		return providertypes.ChatResult{}, providertypes.MissingCredentials(c.name)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "chat")
	startedAt := time.Now()

	messages := buildMessages(history, userMessage, systemPrompt)
	log.Debug("provider request started", "model", c.model, "messages", len(messages), "key_type", c.keyType)

	params := osdk.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: osdk.Float(c.temperature),
		TopP:        osdk.Float(1),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = osdk.Int(c.maxTokens)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.ChatResult{}, fmt.Errorf("chat failed: %w", classify(c.name, err))
	}

	text := ""
	if len(completion.Choices) > 0 {
		text = strings.TrimSpace(completion.Choices[0].Message.Content)
	}
	if text == "" {
		text = emptyReply
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	metadata := providertypes.PromptMetadata{Provider: c.name, Model: c.model, KeyType: c.keyType}
	usage := providertypes.TokenUsage{
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
		TotalTokens:  completion.Usage.TotalTokens,
	}
	if !usage.IsZero() {
		metadata.Usage = &usage
	}

	return providertypes.ChatResult{Text: text, Metadata: metadata}, nil
}

func (c *Client) ModelInfo() providertypes.ModelInfo {
	return providertypes.ModelInfo{
		Provider:  c.name,
		Model:     c.model,
		KeyType:   c.keyType,
		Available: c.client != nil,
	}
}

func buildMessages(history []message.Message, userMessage string, systemPrompt string) []osdk.ChatCompletionMessageParamUnion {
	messages := make([]osdk.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, osdk.SystemMessage(systemPrompt))
	}
	for _, msg := range history {
		if providertypes.ChatRole(msg.Role) == message.RoleUser {
			messages = append(messages, osdk.UserMessage(msg.Content))
			continue
		}
		messages = append(messages, osdk.AssistantMessage(msg.Content))
	}
	if strings.TrimSpace(userMessage) != "" {
		messages = append(messages, osdk.UserMessage(userMessage))
	}
	return messages
}

func classify(provider string, err error) error {
	status := 0
	var apiErr *osdk.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	if status == 0 && errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusRequestTimeout
	}
	return providertypes.Classify(provider, status, err)
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.openai")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

// resolveAPIKey prefers the primary key env, then the fallback key env.
func resolveAPIKey(cfg config.OpenAIProviderConfig) (string, string) {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey, providertypes.KeyPrimary
		}
	}
	if fallbackEnv := strings.TrimSpace(cfg.FallbackAPIKeyEnv); fallbackEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(fallbackEnv)); apiKey != "" {
			return apiKey, providertypes.KeyFallback
		}
	}

	return "", ""
}

func providerName(baseURL string) string {
	if strings.Contains(strings.ToLower(baseURL), "groq") {
		return "groq"
	}
	return "openai"
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 {
		return model, nil
	}

	providerID := strings.TrimSpace(parts[0])
	modelID := strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", errors.New("model is invalid")
	}
	if providerID != "openai" && providerID != "groq" {
		return model, nil
	}

	return modelID, nil
}
