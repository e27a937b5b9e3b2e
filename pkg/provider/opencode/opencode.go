package opencode

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"zeta/pkg/config"
	"zeta/pkg/message"
	providertypes "zeta/pkg/provider/types"

	sdk "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
)

const (
	providerName = "opencode"
	sessionTitle = "Zeta"
)

// Client answers chats through an OpenCode server. Each chat runs in a fresh session
// whose single prompt carries the persona and the replayed transcript.
type Client struct {
	client         *sdk.Client
	model          string
	requestTimeout time.Duration
}

type healthResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

func New(cfg *config.Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.Providers.OpenCode.BaseURL)
	if baseURL == "" {
		return nil, errors.New("providers.opencode.base_url is required")
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL), option.WithMaxRetries(0)}
	if authHeader, ok := buildBasicAuthHeader(cfg.Providers.OpenCode); ok {
		opts = append(opts, option.WithHeader("Authorization", authHeader))
	}

	return &Client{
		client:         sdk.NewClient(opts...),
		model:          strings.TrimSpace(cfg.Agents.Defaults.Model),
		requestTimeout: time.Duration(cfg.Providers.OpenCode.RequestTimeoutSeconds) * time.Second,
	}, nil
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "health")
	startedAt := time.Now()
	log.Debug("provider request started")

	var response healthResponse
	if err := c.client.Get(ctx, "/global/health", nil, &response); err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("health check failed: %w", classify(err))
	}
	if !response.Healthy {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "server unhealthy")
		return errors.New("opencode server reported unhealthy status")
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "version", response.Version)
	return nil
}

func (c *Client) Chat(ctx context.Context, history []message.Message, userMessage string, systemPrompt string) (providertypes.ChatResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "chat")
	startedAt := time.Now()

	session, err := c.client.Session.New(ctx, sdk.SessionNewParams{Title: sdk.F(sessionTitle)})
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.ChatResult{}, fmt.Errorf("create session failed: %w", classify(err))
	}
	if session.ID == "" {
		return providertypes.ChatResult{}, errors.New("create session returned empty session id")
	}

	prompt := renderPrompt(history, userMessage, systemPrompt)
	log.Debug("provider request started",
		"session_id", session.ID,
		"model", c.model,
		"prompt_length", len(prompt),
	)

	params := sdk.SessionPromptParams{
		Parts: sdk.F([]sdk.SessionPromptParamsPartUnion{
			sdk.TextPartInputParam{
				Type: sdk.F(sdk.TextPartInputTypeText),
				Text: sdk.F(prompt),
			},
		}),
	}
	if providerID, modelID, ok := parseModelRef(c.model); ok {
		params.Model = sdk.F(sdk.SessionPromptParamsModel{
			ProviderID: sdk.F(providerID),
			ModelID:    sdk.F(modelID),
		})
	}

	response, err := c.client.Session.Prompt(ctx, session.ID, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.ChatResult{}, fmt.Errorf("chat failed: %w", classify(err))
	}

	text := extractText(response.Parts)
	if text == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no text parts")
		return providertypes.ChatResult{}, errors.New("chat succeeded but returned no text parts")
	}
	log.Debug("provider request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"response_length", len(text),
		"parts_count", len(response.Parts),
	)

	usage := providertypes.TokenUsage{
		InputTokens:     tokenCount(response.Info.Tokens.Input),
		OutputTokens:    tokenCount(response.Info.Tokens.Output),
		TotalTokens:     tokenCount(response.Info.Tokens.Input) + tokenCount(response.Info.Tokens.Output),
		ReasoningTokens: tokenCount(response.Info.Tokens.Reasoning),
		CacheReadTokens: tokenCount(response.Info.Tokens.Cache.Read),
	}
	var usagePtr *providertypes.TokenUsage
	if !usage.IsZero() {
		usagePtr = &usage
	}

	return providertypes.ChatResult{
		Text: text,
		Metadata: providertypes.PromptMetadata{
			Provider: strings.TrimSpace(response.Info.ProviderID),
			Model:    strings.TrimSpace(response.Info.ModelID),
			Usage:    usagePtr,
		},
	}, nil
}

func (c *Client) ModelInfo() providertypes.ModelInfo {
	return providertypes.ModelInfo{Provider: providerName, Model: c.model, Available: true}
}

// renderPrompt flattens persona, transcript and the new message into one text part.
func renderPrompt(history []message.Message, userMessage string, systemPrompt string) string {
	var b strings.Builder
	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteString("\n\n")
	}
	if len(history) > 0 {
		b.WriteString("Konuşma geçmişi:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", providertypes.ChatRole(msg.Role), msg.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.TrimSpace(userMessage))
	return b.String()
}

func classify(err error) error {
	status := 0
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	if status == 0 && errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusRequestTimeout
	}
	return providertypes.Classify(providerName, status, err)
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.opencode")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func buildBasicAuthHeader(cfg config.OpenCodeProviderConfig) (string, bool) {
	passwordEnv := strings.TrimSpace(cfg.PasswordEnv)
	if passwordEnv == "" {
		return "", false
	}

	password := strings.TrimSpace(os.Getenv(passwordEnv))
	if password == "" {
		return "", false
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "opencode"
	}

	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token, true
}

func parseModelRef(input string) (providerID string, modelID string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(input), "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	providerID = strings.TrimSpace(parts[0])
	modelID = strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", "", false
	}

	return providerID, modelID, true
}

func extractText(parts []sdk.Part) string {
	var lines []string
	for _, part := range parts {
		if part.Type == sdk.PartTypeText {
			text := strings.TrimSpace(part.Text)
			if text != "" {
				lines = append(lines, text)
			}
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func tokenCount(value float64) int64 {
	if value <= 0 {
		return 0
	}

	return int64(math.Round(value))
}
