package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"zeta/pkg/agent"
	agentruntime "zeta/pkg/agent/runtime"
	"zeta/pkg/bus"
	"zeta/pkg/orchestrator"
)

// runtimeManager owns one agent instance per session key for gateway-driven prompts.
type runtimeManager struct {
	processor   agent.Processor
	memoryLimit int
	log         *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionRuntime
}

// sessionRuntime is the state tracked for one session key.
type sessionRuntime struct {
	instance *agent.Instance
	lastUsed time.Time
}

func newRuntimeManager(processor agent.Processor, memoryLimit int, log *slog.Logger) *runtimeManager {
	if log == nil {
		log = slog.Default()
	}

	return &runtimeManager{
		processor:   processor,
		memoryLimit: memoryLimit,
		log:         log.With("component", "gateway.runtime_manager"),
		now:         time.Now,
		sessions:    make(map[string]*sessionRuntime),
	}
}

// Prompt routes inbound to its session instance. The instance serializes prompts per session,
// so different chats run concurrently while one chat sees its turns in order.
func (m *runtimeManager) Prompt(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, orchestrator.Outcome, error) {
	instance := m.instanceForSession(inbound)
	return agentruntime.HandleInbound(ctx, instance, inbound)
}

// Reset drops the history of sessionKey. It reports whether the session existed.
func (m *runtimeManager) Reset(sessionKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[sessionKey]
	delete(m.sessions, sessionKey)
	return ok
}

// Prune drops sessions idle for longer than idle and returns how many were removed.
func (m *runtimeManager) Prune(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, session := range m.sessions {
		if session.lastUsed.Before(cutoff) {
			delete(m.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("Pruned idle sessions", "removed", removed, "remaining", len(m.sessions))
	}
	return removed
}

// Len returns the number of tracked sessions.
func (m *runtimeManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// instanceForSession returns an existing instance or lazily creates one.
func (m *runtimeManager) instanceForSession(inbound bus.InboundMessage) *agent.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[inbound.SessionKey]
	if !ok {
		session = &sessionRuntime{instance: agent.New(m.processor, agent.Session{
			Channel:    inbound.Channel,
			ChatID:     inbound.ChatID,
			SessionKey: inbound.SessionKey,
		}, m.memoryLimit)}
		m.sessions[inbound.SessionKey] = session
		m.log.Debug("Session created", "session_key", inbound.SessionKey)
	}
	session.lastUsed = m.now()
	return session.instance
}

// Close drops all tracked sessions.
func (m *runtimeManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.sessions)
}
