package provider

import (
	"context"
	"fmt"
	"log/slog"

	"zeta/pkg/config"
	"zeta/pkg/message"
	providerfantasy "zeta/pkg/provider/fantasy"
	"zeta/pkg/provider/gemini"
	provideropenai "zeta/pkg/provider/openai"
	"zeta/pkg/provider/opencode"
	providertypes "zeta/pkg/provider/types"
)

// Client is the chat-completion contract the orchestrator depends on.
type Client interface {
	Health(ctx context.Context) error
	Chat(ctx context.Context, history []message.Message, userMessage string, systemPrompt string) (providertypes.ChatResult, error)
	ModelInfo() providertypes.ModelInfo
}

func New(cfg *config.Config) (Client, error) {
	providerID := cfg.Agents.Defaults.Provider
	if providerID == "" {
		providerID = "openai"
	}

	slog.Default().With("component", "provider.factory").Debug("Resolving provider client", "provider", providerID)

	switch providerID {
	case "openai", "groq":
		return provideropenai.New(cfg)
	case "fantasy":
		return providerfantasy.New(cfg)
	case "opencode":
		return opencode.New(cfg)
	case "gemini":
		return gemini.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
}
