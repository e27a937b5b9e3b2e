// Package gateway runs channel adapters and routes their messages to per-session agents.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zeta/pkg/agent"
	"zeta/pkg/bus"
	"zeta/pkg/channel"
)

const (
	healthInterval     = 30 * time.Second
	defaultIdleTimeout = time.Hour

	welcomeMessage = "👋 Merhaba, ben Zeta! Hava durumu, hesaplama, Wikipedia, web araması, futbol, Instagram ve package.json analizi konusunda yardımcı olabilirim. Sohbeti sıfırlamak için /reset yazabilirsin."
	resetMessage   = "🧹 Sohbet geçmişi temizlendi."
)

// HealthChecker reports provider reachability. provider.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options configures a Service. Processor and at least one adapter are required.
type Options struct {
	Processor agent.Processor
	Health    HealthChecker
	Adapters  []channel.Adapter
	// StatusAddr is the listen address for /healthz and /readyz; empty disables the server.
	StatusAddr  string
	MemoryLimit int
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

type Service struct {
	log         *slog.Logger
	health      HealthChecker
	manager     *runtimeManager
	channels    []channel.Adapter
	statusAddr  string
	idleTimeout time.Duration

	mu               sync.RWMutex
	startedAt        time.Time
	providerLastOKAt time.Time
	providerLastErr  string
	channelStates    map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status           string                  `json:"status"`
	UptimeSeconds    int64                   `json:"uptime_seconds"`
	ProviderLastOKAt string                  `json:"provider_last_ok_at,omitempty"`
	ProviderLastErr  string                  `json:"provider_last_error,omitempty"`
	Sessions         int                     `json:"sessions"`
	Channels         map[string]channelState `json:"channels"`
}

func NewService(opts Options) (*Service, error) {
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}

	channelStates := make(map[string]channelState, len(opts.Adapters))
	for _, adapter := range opts.Adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		log:           log.With("component", "gateway.service"),
		health:        opts.Health,
		manager:       newRuntimeManager(opts.Processor, opts.MemoryLimit, log),
		channels:      opts.Adapters,
		statusAddr:    strings.TrimSpace(opts.StatusAddr),
		idleTimeout:   idle,
		channelStates: channelStates,
	}, nil
}

// Run starts every adapter and blocks until ctx ends or an adapter or the status server fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	// A provider outage is reported through readiness; tool and manifest answers still work.
	if err := s.checkProviderHealth(ctx); err != nil {
		s.log.Warn("Provider health check failed", "error", err)
	}

	serverErrors := make(chan error, 1)
	if s.statusAddr != "" {
		go s.runStatusServer(ctx, serverErrors)
	}

	go s.maintain(ctx)

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	defer s.manager.Close()
	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// maintain refreshes provider health and prunes idle sessions until ctx ends.
func (s *Service) maintain(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.checkProviderHealth(ctx)
			s.manager.Prune(s.idleTimeout)
		}
	}
}

func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	reply := bus.OutboundMessage{
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
	}

	switch inbound.Metadata[channel.MetadataCommand] {
	case channel.CommandStart:
		reply.Content = welcomeMessage
		return reply, nil
	case channel.CommandReset:
		s.manager.Reset(inbound.SessionKey)
		reply.Content = resetMessage
		return reply, nil
	}

	if inbound.Metadata == nil {
		inbound.Metadata = map[string]string{}
	}
	if inbound.Metadata[bus.MetadataRequestID] == "" {
		inbound.Metadata[bus.MetadataRequestID] = uuid.NewString()
	}

	outbound, _, err := s.manager.Prompt(ctx, inbound)
	return outbound, err
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              s.statusAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", s.statusAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	sessions := s.manager.Len()

	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	providerLastOK := ""
	if !s.providerLastOKAt.IsZero() {
		providerLastOK = s.providerLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:           status,
		UptimeSeconds:    uptime,
		ProviderLastOKAt: providerLastOK,
		ProviderLastErr:  s.providerLastErr,
		Sessions:         sessions,
		Channels:         channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}
	if !anyRunning {
		return false
	}

	if s.health == nil {
		return true
	}
	return !s.providerLastOKAt.IsZero() && s.providerLastErr == ""
}

func (s *Service) checkProviderHealth(ctx context.Context) error {
	if s.health == nil {
		return nil
	}

	if err := s.health.Health(ctx); err != nil {
		s.mu.Lock()
		s.providerLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("provider health check failed: %w", err)
	}

	s.mu.Lock()
	s.providerLastErr = ""
	s.providerLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
