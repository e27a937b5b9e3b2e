// Package agent keeps per-conversation state for channel sessions and runs each prompt
// through the orchestrator with that state as history.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"

	"zeta/pkg/message"
	"zeta/pkg/orchestrator"
)

// Processor runs one message through the pipeline. *orchestrator.Orchestrator implements it.
type Processor interface {
	Process(ctx context.Context, req orchestrator.Request) orchestrator.Outcome
}

// Session addresses one conversation on one channel.
type Session struct {
	Channel    string
	ChatID     string
	SessionKey string
	// Identity is the rate-limit identity used when a prompt carries none.
	Identity string
}

type Instance struct {
	processor Processor
	session   Session
	memory    *Memory

	// mu serializes prompts so each one sees the previous turn in its history.
	mu sync.Mutex
}

func New(processor Processor, session Session, memoryLimit int) *Instance {
	if session.Identity == "" {
		session.Identity = session.SessionKey
	}
	return &Instance{
		processor: processor,
		session:   session,
		memory:    NewMemory(memoryLimit),
	}
}

// Prompt processes text for identity (empty uses the session identity). Only successful
// turns are added to memory, so blocked or failed messages never leak into later context.
func (i *Instance) Prompt(ctx context.Context, text string, identity string, requestID string) (orchestrator.Outcome, error) {
	if i == nil || i.processor == nil {
		return orchestrator.Outcome{}, errors.New("agent instance is not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return orchestrator.Outcome{}, errors.New("prompt cannot be empty")
	}
	if identity == "" {
		identity = i.session.Identity
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return orchestrator.Outcome{}, err
	}

	out := i.processor.Process(ctx, orchestrator.Request{
		Message:    text,
		History:    i.memory.List(),
		Identity:   identity,
		RequestID:  requestID,
		Channel:    i.session.Channel,
		ChatID:     i.session.ChatID,
		SessionKey: i.session.SessionKey,
	})

	if out.Kind == orchestrator.KindSuccess {
		i.memory.Append(message.RoleUser, text)
		i.memory.Append(message.RoleAssistant, out.Message)
	}
	return out, nil
}

func (i *Instance) Session() Session {
	return i.session
}

func (i *Instance) MemorySnapshot() []message.Message {
	return i.memory.List()
}

// Reset forgets the conversation history.
func (i *Instance) Reset() {
	i.memory.Clear()
}
