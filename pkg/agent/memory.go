package agent

import (
	"strings"
	"sync"
	"time"

	"zeta/pkg/message"
)

// DefaultMemoryLimit caps how many turns a session keeps. The context budgeter trims further.
const DefaultMemoryLimit = 40

// Memory is one conversation's history, oldest first.
type Memory struct {
	mu      sync.RWMutex
	limit   int
	entries []message.Message
}

// NewMemory returns a Memory keeping at most limit turns; limit <= 0 uses DefaultMemoryLimit.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{limit: limit}
}

func (m *Memory) Append(role string, content string) {
	role = strings.TrimSpace(role)
	content = strings.TrimSpace(content)
	if role == "" || content == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, message.Message{
		Role:      message.NormalizeRole(role),
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
}

func (m *Memory) List() []message.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil
	}

	out := make([]message.Message, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
}
