package bus

// InboundMessage is one user message entering the pipeline from a channel.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	Media      []string          `json:"media,omitempty"`
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is the reply routed back to the originating channel.
type OutboundMessage struct {
	Channel    string            `json:"channel"`
	ChatID     string            `json:"chat_id"`
	SessionKey string            `json:"session_key,omitempty"`
	Content    string            `json:"content"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Metadata keys shared by producers and consumers of bus messages.
const (
	MetadataRequestID = "request_id"
	MetadataToolUsed  = "tool_used"
	MetadataOutcome   = "outcome"
	MetadataReason    = "reason"
	MetadataDegraded  = "degraded"
)

// Identity is the rate-limit identity for msg: the sender when known, else the session.
func (msg InboundMessage) Identity() string {
	if msg.SenderID != "" {
		return msg.Channel + ":" + msg.SenderID
	}
	return msg.SessionKey
}
