// Package orchestrator runs one user message through the decision-and-dispatch pipeline:
// safety gate, context budget, manifest check, intent routing, capability call and synthesis.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"zeta/pkg/bus"
	"zeta/pkg/intent"
	"zeta/pkg/message"
	providertypes "zeta/pkg/provider/types"
	"zeta/pkg/safety"
	"zeta/pkg/tools"
)

// GenericErrorMessage is the only text a user sees when processing fails unexpectedly.
const GenericErrorMessage = "❌ Bir hata oluştu. Lütfen tekrar deneyin."

const tracerName = "zeta/orchestrator"

// Kind tags an Outcome.
type Kind string

const (
	KindSuccess     Kind = "success"
	KindSafetyBlock Kind = "safety_block"
	KindError       Kind = "error"
)

// Request is one message to process together with the caller's history and identity.
type Request struct {
	Message   string
	History   []message.Message
	Identity  string
	RequestID string

	Channel    string
	ChatID     string
	SessionKey string
}

// Outcome is the tagged result of Process. Fields beyond Kind and Message are set per kind:
// ToolUsed/ToolData/Degraded/Usage for success, Reason/RetryAfter for safety_block,
// Detail/Code for error. Detail is internal and never shown to users.
type Outcome struct {
	Kind       Kind                      `json:"type"`
	Message    string                    `json:"message"`
	ToolUsed   string                    `json:"toolUsed,omitempty"`
	ToolData   any                       `json:"toolData,omitempty"`
	Degraded   bool                      `json:"degraded,omitempty"`
	Usage      *providertypes.TokenUsage `json:"usage,omitempty"`
	Reason     safety.Reason             `json:"reason,omitempty"`
	RetryAfter time.Duration             `json:"-"`
	Detail     string                    `json:"-"`
	Code       providertypes.Code        `json:"code,omitempty"`
}

// HTTPStatus maps the outcome kind to its transport status.
func (o Outcome) HTTPStatus() int {
	switch o.Kind {
	case KindSuccess:
		return http.StatusOK
	case KindSafetyBlock:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Gate screens a message for an identity.
type Gate interface {
	Check(msg string, identity string) safety.Verdict
}

// Budgeter trims history to the model context window.
type Budgeter interface {
	Prepare(history []message.Message) []message.Message
}

// Router decides whether a capability should answer a message.
type Router interface {
	Decide(text string) intent.Decision
}

// Executor runs capabilities by name. *tools.Registry implements it.
type Executor interface {
	Execute(ctx context.Context, name string, params tools.Params) tools.Result
	Has(name string) bool
}

// Generator produces the assistant reply. provider.Client implements it.
type Generator interface {
	Chat(ctx context.Context, history []message.Message, userMessage string, systemPrompt string) (providertypes.ChatResult, error)
}

// Options wires an Orchestrator. Gate, Budgeter, Router, Tools and Provider are required.
type Options struct {
	Gate         Gate
	Budgeter     Budgeter
	Router       Router
	Tools        Executor
	Provider     Generator
	SystemPrompt string
	Events       bus.Publisher
	Logger       *slog.Logger
	Tracer       trace.Tracer
}

// Orchestrator holds the pipeline stages. It keeps no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	gate         Gate
	budget       Budgeter
	router       Router
	tools        Executor
	provider     Generator
	systemPrompt string
	events       bus.Publisher
	log          *slog.Logger
	tracer       trace.Tracer
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Gate == nil:
		return nil, errors.New("safety gate is required")
	case opts.Budgeter == nil:
		return nil, errors.New("context budgeter is required")
	case opts.Router == nil:
		return nil, errors.New("intent router is required")
	case opts.Tools == nil:
		return nil, errors.New("tool executor is required")
	case opts.Provider == nil:
		return nil, errors.New("provider is required")
	}

	o := &Orchestrator{
		gate:         opts.Gate,
		budget:       opts.Budgeter,
		router:       opts.Router,
		tools:        opts.Tools,
		provider:     opts.Provider,
		systemPrompt: opts.SystemPrompt,
		events:       opts.Events,
		log:          opts.Logger,
		tracer:       opts.Tracer,
	}
	if o.log == nil {
		o.log = slog.Default().With("component", "orchestrator")
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o, nil
}

// Process runs req through the pipeline and always returns an Outcome; panics and
// unexpected failures become a KindError outcome.
func (o *Orchestrator) Process(ctx context.Context, req Request) (out Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.process", trace.WithAttributes(
		attribute.String("zeta.request_id", req.RequestID),
		attribute.String("zeta.channel", req.Channel),
		attribute.Int("zeta.message_length", len([]rune(req.Message))),
		attribute.Int("zeta.history_length", len(req.History)),
	))
	startedAt := time.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			o.log.ErrorContext(ctx, "Pipeline panicked", "request_id", req.RequestID, "panic", recovered, "stack", string(debug.Stack()))
			out = errorOutcome(fmt.Errorf("panic: %v", recovered))
		}

		span.SetAttributes(
			attribute.String("zeta.outcome", string(out.Kind)),
			attribute.String("zeta.tool", out.ToolUsed),
			attribute.Bool("zeta.degraded", out.Degraded),
		)
		if out.Kind == KindError {
			span.SetStatus(codes.Error, out.Detail)
		}
		span.End()

		o.publishOutcome(ctx, req, out)
		o.log.InfoContext(ctx, "Message processed",
			"request_id", req.RequestID,
			"outcome", out.Kind,
			"tool", out.ToolUsed,
			"degraded", out.Degraded,
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	}()

	o.publish(ctx, req, bus.Event{
		Type:    bus.EventPromptReceived,
		Payload: map[string]string{"prompt_length": strconv.Itoa(len(req.Message))},
	})

	return o.process(ctx, req)
}

func (o *Orchestrator) process(ctx context.Context, req Request) Outcome {
	verdict := o.gate.Check(req.Message, req.Identity)
	if !verdict.Safe {
		return Outcome{
			Kind:       KindSafetyBlock,
			Message:    verdict.Message,
			Reason:     verdict.Reason,
			RetryAfter: verdict.RetryAfter,
		}
	}

	history := o.budget.Prepare(req.History)

	if o.tools.Has(manifestTool) {
		if manifest, ok := ExtractManifest(req.Message); ok {
			o.log.InfoContext(ctx, "package.json detected", "request_id", req.RequestID, "bytes", len(manifest))
			return o.analyzeManifest(ctx, req, manifest)
		}
	}

	decision := o.router.Decide(req.Message)
	if !decision.UseTool {
		return o.generate(ctx, history, req.Message)
	}

	o.log.DebugContext(ctx, "Tool selected", "request_id", req.RequestID, "tool", decision.ToolName, "rule", decision.Rule)
	result := o.tools.Execute(ctx, decision.ToolName, decision.Params)
	if !result.Success {
		o.log.WarnContext(ctx, "Tool failed, answering without it", "request_id", req.RequestID, "tool", decision.ToolName, "error", result.Error)
		o.publish(ctx, req, bus.Event{
			Type:    bus.EventToolFailed,
			Payload: map[string]string{"tool": decision.ToolName},
			Error:   result.Error,
		})

		out := o.generate(ctx, history, req.Message)
		if out.Kind == KindSuccess {
			out.Degraded = true
		}
		return out
	}

	o.publish(ctx, req, bus.Event{
		Type:    bus.EventToolCompleted,
		Payload: map[string]string{"tool": decision.ToolName},
	})

	prompt, err := ToolPrompt(req.Message, decision.ToolName, result)
	if err != nil {
		return errorOutcome(fmt.Errorf("build tool prompt: %w", err))
	}

	out := o.generate(ctx, history, prompt)
	if out.Kind == KindSuccess {
		out.ToolUsed = decision.ToolName
		out.ToolData = result.Data
	}
	return out
}

func (o *Orchestrator) generate(ctx context.Context, history []message.Message, prompt string) Outcome {
	ctx, span := o.tracer.Start(ctx, "orchestrator.generate")
	defer span.End()

	reply, err := o.provider.Chat(ctx, history, prompt, o.systemPrompt)
	if err != nil {
		span.RecordError(err)
		return errorOutcome(fmt.Errorf("generate reply: %w", err))
	}

	if usage := reply.Metadata.Usage; usage != nil {
		span.SetAttributes(attribute.Int64("zeta.usage.total_tokens", usage.TotalTokens))
	}
	return Outcome{Kind: KindSuccess, Message: reply.Text, Usage: reply.Metadata.Usage}
}

func errorOutcome(err error) Outcome {
	return Outcome{
		Kind:    KindError,
		Message: GenericErrorMessage,
		Detail:  err.Error(),
		Code:    providertypes.CodeFromError(err),
	}
}

func (o *Orchestrator) publishOutcome(ctx context.Context, req Request, out Outcome) {
	switch out.Kind {
	case KindSuccess:
		payload := map[string]string{"response_length": strconv.Itoa(len(out.Message))}
		if out.ToolUsed != "" {
			payload["tool"] = out.ToolUsed
		}
		if out.Degraded {
			payload["degraded"] = "true"
		}
		if out.Usage != nil {
			payload["usage_total_tokens"] = strconv.FormatInt(out.Usage.TotalTokens, 10)
		}
		o.publish(ctx, req, bus.Event{Type: bus.EventPromptCompleted, Payload: payload})
	case KindSafetyBlock:
		o.publish(ctx, req, bus.Event{
			Type:    bus.EventPromptBlocked,
			Payload: map[string]string{"reason": string(out.Reason)},
			Error:   out.Message,
		})
	default:
		o.publish(ctx, req, bus.Event{
			Type:    bus.EventPromptFailed,
			Payload: map[string]string{"code": string(out.Code)},
			Error:   out.Detail,
		})
	}
}

func (o *Orchestrator) publish(ctx context.Context, req Request, event bus.Event) {
	if o.events == nil {
		return
	}
	event.Channel = req.Channel
	event.ChatID = req.ChatID
	event.SessionKey = req.SessionKey
	event.RequestID = req.RequestID
	_ = o.events.PublishEvent(context.WithoutCancel(ctx), event)
}
