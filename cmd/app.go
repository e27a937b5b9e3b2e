package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zeta/pkg/agent/profile"
	"zeta/pkg/budget"
	"zeta/pkg/bus"
	"zeta/pkg/config"
	"zeta/pkg/intent"
	"zeta/pkg/orchestrator"
	"zeta/pkg/provider"
	"zeta/pkg/safety"
	"zeta/pkg/tools"
	"zeta/pkg/tools/calculator"
	"zeta/pkg/tools/football"
	"zeta/pkg/tools/instagram"
	"zeta/pkg/tools/npm"
	"zeta/pkg/tools/weather"
	"zeta/pkg/tools/websearch"
	"zeta/pkg/tools/wikipedia"
)

// app is the wired pipeline shared by every command.
type app struct {
	cfg          *config.Config
	log          *slog.Logger
	gate         *safety.Gate
	policy       *safety.PolicyWatcher
	registry     *tools.Registry
	client       provider.Client
	bus          *bus.MessageBus
	orchestrator *orchestrator.Orchestrator
}

func buildApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	gate, policy, err := newGate(cfg.Safety)
	if err != nil {
		return nil, err
	}

	client, err := provider.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}

	systemPrompt, err := profile.ResolveSystemProfile(cfg.Agents.Defaults.Provider, cfg.Agents.Defaults.SystemPromptFile)
	if err != nil {
		return nil, fmt.Errorf("resolve system profile: %w", err)
	}

	registry := newRegistry(cfg.Tools)
	messageBus := bus.NewMessageBus()

	orch, err := orchestrator.New(orchestrator.Options{
		Gate: gate,
		Budgeter: budget.New(budget.Options{
			MaxTokens:     cfg.Context.MaxTokens,
			SystemReserve: cfg.Context.SystemReserve,
			ReplyReserve:  cfg.Context.ReplyReserve,
		}),
		Router:       intent.NewRouter(intent.DefaultRules()...),
		Tools:        registry,
		Provider:     client,
		SystemPrompt: systemPrompt,
		Events:       messageBus,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize orchestrator: %w", err)
	}

	return &app{
		cfg:          cfg,
		log:          log,
		gate:         gate,
		policy:       policy,
		registry:     registry,
		client:       client,
		bus:          messageBus,
		orchestrator: orch,
	}, nil
}

// startBackground runs the policy watcher, and optionally the event logger, until ctx ends.
func (a *app) startBackground(ctx context.Context, observeEvents bool) {
	if observeEvents {
		go bus.Observe(ctx, a.bus, a.log)
	}
	if a.policy == nil {
		return
	}
	go func() {
		if err := a.policy.Run(ctx); err != nil {
			a.log.Warn("Safety policy watcher stopped", "error", err)
		}
	}()
}

// newGate builds the safety gate. A banned_terms_file takes precedence over inline terms
// and is watched for edits.
func newGate(cfg config.SafetyConfig) (*safety.Gate, *safety.PolicyWatcher, error) {
	terms := cfg.BannedTerms
	policyFile := strings.TrimSpace(cfg.BannedTermsFile)
	if policyFile != "" {
		policy, err := safety.LoadPolicy(policyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load safety policy: %w", err)
		}
		terms = policy.BannedTerms
	}

	gate := safety.New(safety.Options{
		MaxLength:   cfg.MaxLength,
		MinLength:   cfg.MinLength,
		BannedTerms: terms,
		RateWindow:  time.Duration(cfg.RateWindowMS) * time.Millisecond,
		RateLimit:   cfg.RateMaxRequests,
		Store:       safety.NewMemoryRateStore(cfg.MaxIdentities),
	})
	if policyFile == "" {
		return gate, nil, nil
	}

	watcher, err := safety.NewPolicyWatcher(policyFile, gate)
	if err != nil {
		// The file may not exist yet; the gate keeps the built-in terms.
		slog.Default().With("component", "cmd.app").Warn("Safety policy not watched", "path", policyFile, "error", err)
		return gate, nil, nil
	}
	return gate, watcher, nil
}

// newRegistry registers every built-in capability in routing order.
func newRegistry(cfg config.ToolsConfig) *tools.Registry {
	registry := tools.NewRegistry(time.Duration(cfg.TimeoutSeconds) * time.Second)
	registry.MustRegister(calculator.New())
	registry.MustRegister(weather.New(cfg.Weather))
	registry.MustRegister(wikipedia.New(cfg.Wikipedia))
	registry.MustRegister(websearch.New(cfg.WebSearch))
	registry.MustRegister(football.New(cfg.Football))
	registry.MustRegister(instagram.New(cfg.Instagram))
	registry.MustRegister(npm.New(cfg.NPM))
	return registry
}
