package types

import (
	"strings"

	"zeta/pkg/message"
)

// ChatResult is the normalized provider response payload.
type ChatResult struct {
	Text     string
	Metadata PromptMetadata
}

// PromptMetadata carries provider/model identity and optional usage accounting.
type PromptMetadata struct {
	Provider string
	Model    string
	KeyType  string
	Usage    *TokenUsage
}

// TokenUsage captures token accounting across providers.
type TokenUsage struct {
	InputTokens         int64 `json:"inputTokens"`
	OutputTokens        int64 `json:"outputTokens"`
	TotalTokens         int64 `json:"totalTokens"`
	ReasoningTokens     int64 `json:"reasoningTokens,omitempty"`
	CacheCreationTokens int64 `json:"cacheCreationTokens,omitempty"`
	CacheReadTokens     int64 `json:"cacheReadTokens,omitempty"`
}

// IsZero reports whether all token counters are unset/zero.
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 &&
		u.OutputTokens == 0 &&
		u.TotalTokens == 0 &&
		u.ReasoningTokens == 0 &&
		u.CacheCreationTokens == 0 &&
		u.CacheReadTokens == 0
}

// ModelInfo describes the model a provider would answer with right now.
type ModelInfo struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	KeyType   string `json:"keyType,omitempty"`
	Available bool   `json:"available"`
}

// Key types reported by ModelInfo.
const (
	KeyPrimary  = "primary"
	KeyFallback = "fallback"
)

// ChatRole maps a history role onto the two roles chat providers replay: user or assistant.
func ChatRole(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), message.RoleUser) {
		return message.RoleUser
	}
	return message.RoleAssistant
}
