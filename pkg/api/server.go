// Package api exposes the assistant pipeline and conversation store over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"zeta/pkg/message"
	"zeta/pkg/orchestrator"
	providertypes "zeta/pkg/provider/types"
	"zeta/pkg/safety"
	"zeta/pkg/store"
	"zeta/pkg/tools"
)

const serviceName = "Zeta AI Chat"

// Processor runs one chat message through the pipeline.
type Processor interface {
	Process(ctx context.Context, req orchestrator.Request) orchestrator.Outcome
}

// ToolLister reports registered capabilities.
type ToolLister interface {
	List() []tools.Info
}

// ConversationStore is the persistence the conversation routes need. *store.Store implements it.
type ConversationStore interface {
	List(ctx context.Context) ([]store.Summary, error)
	Get(ctx context.Context, id string) (store.Conversation, error)
	Create(ctx context.Context, title string, messages []message.Message) (store.Conversation, error)
	Update(ctx context.Context, id string, upd store.Update) (store.Conversation, error)
	Append(ctx context.Context, id string, messages ...message.Message) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// ModelReporter describes the active provider model.
type ModelReporter interface {
	ModelInfo() providertypes.ModelInfo
}

// SafetyReporter exposes gate counters.
type SafetyReporter interface {
	Stats() safety.Stats
}

// Options configures the HTTP surface. Processor and Tools are required; the rest is optional.
type Options struct {
	Processor   Processor
	Tools       ToolLister
	Store       ConversationStore
	Model       ModelReporter
	Safety      SafetyReporter
	CORSOrigins []string
	// TrustProxy honors X-Forwarded-For and X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool
	Logger     *slog.Logger
	Now        func() time.Time
}

// Server holds the handlers' dependencies.
type Server struct {
	processor Processor
	tools     ToolLister
	store     ConversationStore
	model     ModelReporter
	safety    SafetyReporter
	log       *slog.Logger
	now       func() time.Time
	startedAt time.Time
	handler   http.Handler
}

// New builds a Server and its router.
func New(opts Options) (*Server, error) {
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if opts.Tools == nil {
		return nil, errors.New("tool lister is required")
	}

	s := &Server{
		processor: opts.Processor,
		tools:     opts.Tools,
		store:     opts.Store,
		model:     opts.Model,
		safety:    opts.Safety,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "api")
	if s.now == nil {
		s.now = time.Now
	}
	s.startedAt = s.now()
	s.handler = s.routes(opts.CORSOrigins, opts.TrustProxy)

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(origins []string, trustProxy bool) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(tracing)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))
	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", s.handleChat)
		r.Get("/tools", s.handleTools)
		r.Get("/status", s.handleStatus)
	})

	r.Route("/api/conversations", func(r chi.Router) {
		r.Use(s.requireStore)
		r.Get("/", s.handleListConversations)
		r.Post("/", s.handleCreateConversation)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetConversation)
			r.Put("/", s.handleUpdateConversation)
			r.Delete("/", s.handleDeleteConversation)
			r.Post("/messages", s.handleAppendMessage)
		})
	})

	return r
}

// Run serves addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("HTTP API started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start http api: %w", err)
	}
	return nil
}
