// Package runtime drives one local conversation over the in-process message bus.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"zeta/pkg/agent"
	"zeta/pkg/bus"
	"zeta/pkg/orchestrator"
	providertypes "zeta/pkg/provider/types"
	"zeta/pkg/tools"
)

const (
	cliChannelName = "cli"
	cliChatID      = "local"
	cliSessionKey  = "local"
)

// Options configures a LocalSession. Processor is required. Bus should be the same bus
// the orchestrator publishes events to, so ObserveEvents sees the whole lifecycle.
type Options struct {
	Processor     agent.Processor
	Bus           *bus.MessageBus
	Logger        *slog.Logger
	ObserveEvents bool
	MemoryLimit   int
}

// LocalSession coordinates a single local CLI conversation.
//
// It owns one agent instance and one bus worker goroutine. Prompts travel through the
// bus so UI code and gateway channels share the same transport semantics.
type LocalSession struct {
	instance   *agent.Instance
	messageBus *bus.MessageBus
	log        *slog.Logger

	cancelWorker context.CancelFunc
	workerDone   chan struct{}
	closeOnce    sync.Once

	requestCounter atomic.Uint64

	usageMu sync.Mutex
	usage   providertypes.TokenUsage
}

func StartLocalSession(ctx context.Context, opts Options) (*LocalSession, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	messageBus := opts.Bus
	if messageBus == nil {
		messageBus = bus.NewMessageBus()
	}

	session := &LocalSession{
		instance: agent.New(opts.Processor, agent.Session{
			Channel:    cliChannelName,
			ChatID:     cliChatID,
			SessionKey: cliSessionKey,
			Identity:   cliChannelName + ":" + cliChatID,
		}, opts.MemoryLimit),
		messageBus: messageBus,
		log:        log.With("component", "runtime.local"),
		workerDone: make(chan struct{}),
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	session.cancelWorker = cancelWorker
	go func() {
		defer close(session.workerDone)
		session.runBusWorker(workerCtx)
	}()

	if opts.ObserveEvents {
		go bus.Observe(workerCtx, messageBus, log)
	}

	return session, nil
}

// Prompt sends text through the bus and waits for the reply.
func (s *LocalSession) Prompt(ctx context.Context, prompt string) (PromptResult, error) {
	if s == nil {
		return PromptResult{}, errors.New("local session is nil")
	}

	return executePromptViaBus(ctx, &s.requestCounter, s.messageBus, prompt)
}

// Usage returns the token usage accumulated over the session.
func (s *LocalSession) Usage() providertypes.TokenUsage {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	return s.usage
}

// Reset forgets the conversation history.
func (s *LocalSession) Reset() {
	s.instance.Reset()
}

// Close stops the worker and closes the bus. It is safe to call more than once.
func (s *LocalSession) Close() {
	if s == nil {
		return
	}

	s.closeOnce.Do(func() {
		s.cancelWorker()
		s.messageBus.Close()
		<-s.workerDone
	})
}

func (s *LocalSession) runBusWorker(ctx context.Context) {
	for {
		inbound, ok := s.messageBus.ConsumeInbound(ctx)
		if !ok {
			return
		}

		outbound := s.handle(ctx, inbound)
		if ok := s.messageBus.PublishOutbound(ctx, outbound); !ok {
			return
		}
	}
}

func (s *LocalSession) handle(ctx context.Context, inbound bus.InboundMessage) bus.OutboundMessage {
	outbound, out, err := HandleInbound(ctx, s.instance, inbound)
	if err != nil || out.Usage == nil {
		return outbound
	}

	s.usageMu.Lock()
	s.usage.InputTokens += out.Usage.InputTokens
	s.usage.OutputTokens += out.Usage.OutputTokens
	s.usage.TotalTokens += out.Usage.TotalTokens
	s.usageMu.Unlock()
	return outbound
}

// HandleInbound runs inbound through inst and builds the reply, collecting the capability
// events emitted on the way into outbound metadata.
func HandleInbound(ctx context.Context, inst *agent.Instance, inbound bus.InboundMessage) (bus.OutboundMessage, orchestrator.Outcome, error) {
	var (
		eventsMu sync.Mutex
		events   []tools.Event
	)
	promptCtx := tools.WithEventHandler(ctx, func(event tools.Event) {
		eventsMu.Lock()
		events = append(events, event)
		eventsMu.Unlock()
	})

	out, err := inst.Prompt(promptCtx, inbound.Content, inbound.Identity(), inbound.Metadata[bus.MetadataRequestID])

	outbound := bus.OutboundMessage{
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
	}
	if err != nil {
		outbound.Error = err.Error()
		return outbound, out, err
	}

	eventsMu.Lock()
	collected := append([]tools.Event(nil), events...)
	eventsMu.Unlock()

	outbound.Content = out.Message
	outbound.Metadata = OutcomeMetadata(out, collected)
	return outbound, out, nil
}

func executePromptViaBus(ctx context.Context, counter *atomic.Uint64, messageBus *bus.MessageBus, prompt string) (PromptResult, error) {
	requestID := strconv.FormatUint(counter.Add(1), 10)
	inbound := bus.InboundMessage{
		Channel:    cliChannelName,
		SenderID:   cliChatID,
		ChatID:     cliChatID,
		SessionKey: cliSessionKey,
		Content:    prompt,
		Metadata: map[string]string{
			bus.MetadataRequestID: requestID,
		},
	}

	if ok := messageBus.PublishInbound(ctx, inbound); !ok {
		if err := ctx.Err(); err != nil {
			return PromptResult{}, err
		}
		return PromptResult{}, errors.New("unable to enqueue prompt")
	}

	outbound, ok := messageBus.ConsumeOutbound(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return PromptResult{}, err
		}
		return PromptResult{}, errors.New("unable to receive prompt result")
	}

	if outbound.Error != "" {
		return PromptResult{}, errors.New(outbound.Error)
	}

	return OutcomeFromOutbound(outbound), nil
}
