package fantasy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	core "charm.land/fantasy"
	provideropenai "charm.land/fantasy/providers/openai"

	"zeta/pkg/config"
	"zeta/pkg/message"
	providertypes "zeta/pkg/provider/types"
)

const providerName = "fantasy"

type languageModelProvider interface {
	LanguageModel(ctx context.Context, modelID string) (core.LanguageModel, error)
}

// Client answers chats through a fantasy agent backed by an OpenAI-compatible model.
type Client struct {
	provider        languageModelProvider
	requestTimeout  time.Duration
	modelID         string
	maxOutputTokens *int64
	temperature     *float64
	generate        func(context.Context, core.LanguageModel, core.AgentCall) (*core.AgentResult, error)
}

// New builds the client. A missing key leaves the client unavailable; Chat reports it per call.
func New(cfg *config.Config) (*Client, error) {
	modelID, err := normalizeOpenAIModel(cfg.Agents.Defaults.Model)
	if err != nil {
		return nil, err
	}

	client := &Client{
		requestTimeout: time.Duration(cfg.Providers.Fantasy.RequestTimeoutSeconds) * time.Second,
		modelID:        modelID,
		generate:       generateWithFantasyAgent,
	}
	if cfg.Agents.Defaults.MaxTokens > 0 {
		maxTokens := int64(cfg.Agents.Defaults.MaxTokens)
		client.maxOutputTokens = &maxTokens
	}
	if cfg.Agents.Defaults.Temperature > 0 {
		temp := cfg.Agents.Defaults.Temperature
		client.temperature = &temp
	}

	apiKey := resolveAPIKey(cfg.Providers.Fantasy)
	if apiKey == "" {
		return client, nil
	}

	providerOptions := []provideropenai.Option{provideropenai.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.Providers.Fantasy.BaseURL); baseURL != "" {
		providerOptions = append(providerOptions, provideropenai.WithBaseURL(baseURL))
	}

	fantasyProvider, err := provideropenai.New(providerOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize fantasy openai provider: %w", err)
	}
	client.provider = fantasyProvider

	return client, nil
}

func (c *Client) Health(ctx context.Context) error {
	if c.provider == nil {
		return providertypes.MissingCredentials(providerName)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.provider.LanguageModel(ctx, c.modelID); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

// Chat replays history as fantasy messages and sends userMessage as the agent prompt.
func (c *Client) Chat(ctx context.Context, history []message.Message, userMessage string, systemPrompt string) (providertypes.ChatResult, error) {
	if c.provider == nil {
		return providertypes.ChatResult{}, providertypes.MissingCredentials(providerName)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := slog.Default().With("component", "provider.fantasy", "operation", "chat")
	startedAt := time.Now()

	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return providertypes.ChatResult{}, errors.New("prompt is required")
	}

	languageModel, err := c.provider.LanguageModel(ctx, c.modelID)
	if err != nil {
		return providertypes.ChatResult{}, fmt.Errorf("resolve language model: %w", providertypes.Classify(providerName, 0, err))
	}

	call := core.AgentCall{
		Prompt:          userMessage,
		Messages:        buildMessages(history, systemPrompt),
		MaxOutputTokens: c.maxOutputTokens,
		Temperature:     c.temperature,
	}

	generate := c.generate
	if generate == nil {
		generate = generateWithFantasyAgent
	}

	result, err := generate(ctx, languageModel, call)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.ChatResult{}, fmt.Errorf("chat failed: %w", providertypes.Classify(providerName, 0, err))
	}

	response := extractText(result.Response.Content)
	if response == "" {
		return providertypes.ChatResult{}, errors.New("chat succeeded but returned no text")
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(response))

	usage := providertypes.TokenUsage{
		InputTokens:         result.TotalUsage.InputTokens,
		OutputTokens:        result.TotalUsage.OutputTokens,
		TotalTokens:         result.TotalUsage.TotalTokens,
		ReasoningTokens:     result.TotalUsage.ReasoningTokens,
		CacheCreationTokens: result.TotalUsage.CacheCreationTokens,
		CacheReadTokens:     result.TotalUsage.CacheReadTokens,
	}

	metadata := providertypes.PromptMetadata{
		Provider: providerName,
		Model:    c.modelID,
		KeyType:  providertypes.KeyPrimary,
	}
	if !usage.IsZero() {
		metadata.Usage = &usage
	}

	return providertypes.ChatResult{Text: response, Metadata: metadata}, nil
}

func (c *Client) ModelInfo() providertypes.ModelInfo {
	info := providertypes.ModelInfo{Provider: providerName, Model: c.modelID, Available: c.provider != nil}
	if info.Available {
		info.KeyType = providertypes.KeyPrimary
	}
	return info
}

func buildMessages(history []message.Message, systemPrompt string) []core.Message {
	messages := make([]core.Message, 0, len(history)+1)
	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		messages = append(messages, core.Message{
			Role:    core.MessageRoleSystem,
			Content: []core.MessagePart{core.TextPart{Text: trimmed}},
		})
	}
	for _, msg := range history {
		if providertypes.ChatRole(msg.Role) == message.RoleUser {
			messages = append(messages, core.NewUserMessage(msg.Content))
			continue
		}
		messages = append(messages, core.Message{
			Role:    core.MessageRoleAssistant,
			Content: []core.MessagePart{core.TextPart{Text: msg.Content}},
		})
	}
	return messages
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func resolveAPIKey(cfg config.FantasyProviderConfig) string {
	if env := strings.TrimSpace(cfg.APIKeyEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

func normalizeOpenAIModel(model string) (string, error) {
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
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by fantasy openai provider", providerID)
	}

	return modelID, nil
}

func extractText(content core.ResponseContent) string {
	lines := make([]string, 0)
	for _, part := range content {
		if part.GetType() != core.ContentTypeText {
			continue
		}

		textPart, ok := core.AsContentType[core.TextContent](part)
		if !ok {
			continue
		}

		line := strings.TrimSpace(textPart.Text)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func generateWithFantasyAgent(ctx context.Context, model core.LanguageModel, call core.AgentCall) (*core.AgentResult, error) {
	runtime := core.NewAgent(model)
	return runtime.Generate(ctx, call)
}
