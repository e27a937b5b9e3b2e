// Package message defines the conversation turn shared by every pipeline stage.
package message

import (
	"strings"
	"time"
)

// Role values accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// New returns a message stamped with the current UTC time.
func New(role string, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// NormalizeRole maps unknown roles to user so providers never receive an unsupported role.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAssistant:
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}
