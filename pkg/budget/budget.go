// Package budget trims conversation history to what fits in the model context window.
package budget

import (
	"log/slog"
	"unicode/utf8"

	"zeta/pkg/message"
)

const (
	DefaultMaxTokens     = 16000
	DefaultSystemReserve = 500
	DefaultReplyReserve  = 1500

	charsPerToken = 4
)

// Budgeter selects the newest contiguous run of messages that fits the token budget.
type Budgeter struct {
	maxTokens     int
	systemReserve int
	replyReserve  int
	log           *slog.Logger
}

// Options configures a Budgeter. Zero values use the defaults.
type Options struct {
	MaxTokens     int
	SystemReserve int
	ReplyReserve  int
	Logger        *slog.Logger
}

// New creates a Budgeter.
func New(opts Options) *Budgeter {
	b := &Budgeter{
		maxTokens:     opts.MaxTokens,
		systemReserve: opts.SystemReserve,
		replyReserve:  opts.ReplyReserve,
		log:           opts.Logger,
	}
	if b.maxTokens <= 0 {
		b.maxTokens = DefaultMaxTokens
	}
	if b.systemReserve <= 0 {
		b.systemReserve = DefaultSystemReserve
	}
	if b.replyReserve <= 0 {
		b.replyReserve = DefaultReplyReserve
	}
	if b.log == nil {
		b.log = slog.Default().With("component", "budget")
	}
	return b
}

// Available is the token budget left for history.
func (b *Budgeter) Available() int {
	return b.maxTokens - b.systemReserve - b.replyReserve
}

// Prepare returns the longest suffix of history whose estimated tokens fit Available,
// in the original chronological order. Selection stops at the first message that
// would overflow, so no gaps are ever introduced.
func (b *Budgeter) Prepare(history []message.Message) []message.Message {
	if len(history) == 0 {
		return []message.Message{}
	}

	available := b.Available()
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := EstimateTokens(history[i].Content)
		if used+cost > available {
			break
		}
		used += cost
		start = i
	}

	out := make([]message.Message, len(history)-start)
	copy(out, history[start:])

	b.log.Debug("Context prepared", "messages", len(out), "dropped", start, "estimated_tokens", used)
	return out
}

// EstimateTokens approximates tokens as ceil(characters / 4).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimateTotal sums EstimateTokens over messages.
func EstimateTotal(messages []message.Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}
