// Package gemini answers chats with Google's Gemini models through the genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"zeta/pkg/config"
	"zeta/pkg/message"
	providertypes "zeta/pkg/provider/types"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.0-flash"
	emptyReply   = "Yanıt oluşturulamadı."
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client wraps the genai models service.
type Client struct {
	models         contentGenerator
	model          string
	maxTokens      int32
	temperature    float32
	requestTimeout time.Duration
}

// New builds the client. Without an API key the client stays unavailable and Chat reports it.
func New(cfg *config.Config) (*Client, error) {
	model := strings.TrimSpace(cfg.Agents.Defaults.Model)
	if model == "" || !strings.HasPrefix(model, "gemini") {
		model = defaultModel
	}

	c := &Client{
		model:          model,
		maxTokens:      int32(cfg.Agents.Defaults.MaxTokens),
		temperature:    float32(cfg.Agents.Defaults.Temperature),
		requestTimeout: time.Duration(cfg.Providers.Gemini.RequestTimeoutSeconds) * time.Second,
	}

	apiKey := strings.TrimSpace(os.Getenv(strings.TrimSpace(cfg.Providers.Gemini.APIKeyEnv)))
	if apiKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.models = client.Models

	return c, nil
}

func (c *Client) Health(ctx context.Context) error {
	if c.models == nil {
		return providertypes.MissingCredentials(providerName)
	}
	return nil
}

func (c *Client) Chat(ctx context.Context, history []message.Message, userMessage string, systemPrompt string) (providertypes.ChatResult, error) {
	if c.models == nil {
		return providertypes.ChatResult{}, providertypes.MissingCredentials(providerName)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := slog.Default().With("component", "provider.gemini", "operation", "chat")
	startedAt := time.Now()

	contents := buildContents(history, userMessage)
	generationConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		generationConfig.MaxOutputTokens = c.maxTokens
	}
	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		generationConfig.SystemInstruction = genai.NewContentFromText(trimmed, genai.RoleUser)
	}

	log.Debug("provider request started", "model", c.model, "contents", len(contents))
	response, err := c.models.GenerateContent(ctx, c.model, contents, generationConfig)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.ChatResult{}, fmt.Errorf("chat failed: %w", classify(err))
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		text = emptyReply
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	metadata := providertypes.PromptMetadata{Provider: providerName, Model: c.model, KeyType: providertypes.KeyPrimary}
	if usage := response.UsageMetadata; usage != nil {
		metadata.Usage = &providertypes.TokenUsage{
			InputTokens:     int64(usage.PromptTokenCount),
			OutputTokens:    int64(usage.CandidatesTokenCount),
			TotalTokens:     int64(usage.TotalTokenCount),
			CacheReadTokens: int64(usage.CachedContentTokenCount),
		}
	}

	return providertypes.ChatResult{Text: text, Metadata: metadata}, nil
}

func (c *Client) ModelInfo() providertypes.ModelInfo {
	info := providertypes.ModelInfo{Provider: providerName, Model: c.model, Available: c.models != nil}
	if info.Available {
		info.KeyType = providertypes.KeyPrimary
	}
	return info
}

func buildContents(history []message.Message, userMessage string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.Role(genai.RoleModel)
		if providertypes.ChatRole(msg.Role) == message.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	if strings.TrimSpace(userMessage) != "" {
		contents = append(contents, genai.NewContentFromText(userMessage, genai.RoleUser))
	}
	return contents
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providertypes.Classify(providerName, apiErr.Code, err)
	}
	return providertypes.Classify(providerName, 0, err)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}
