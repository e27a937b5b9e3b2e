package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const reloadDebounce = 500 * time.Millisecond

// Policy is the on-disk denylist document.
type Policy struct {
	BannedTerms []string `yaml:"banned_terms"`
}

// LoadPolicy reads a YAML policy file. A missing file yields the built-in terms.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Policy{BannedTerms: DefaultBannedTerms}, nil
		}
		return Policy{}, fmt.Errorf("read safety policy: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse safety policy: %w", err)
	}

	return policy, nil
}

// PolicyWatcher reloads a policy file into a Gate whenever the file changes.
type PolicyWatcher struct {
	path    string
	gate    *Gate
	watcher *fsnotify.Watcher
	log     *slog.Logger

	mu       sync.Mutex
	reloaded chan struct{}
}

// NewPolicyWatcher watches path and applies its terms to gate.
func NewPolicyWatcher(path string, gate *Gate) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create policy watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}

	return &PolicyWatcher{
		path:     path,
		gate:     gate,
		watcher:  watcher,
		log:      slog.Default().With("component", "safety.policy"),
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Reloaded signals after each successful reload. Used by tests and the status surface.
func (w *PolicyWatcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

// Run blocks until ctx is cancelled, debouncing bursts of writes into one reload.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer
	defer func() {
		w.mu.Lock()
		if debounce != nil {
			debounce.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() { w.reload(ctx) })
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Policy watcher error", "error", err)
		}
	}
}

func (w *PolicyWatcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	policy, err := LoadPolicy(w.path)
	if err != nil {
		w.log.Error("Policy reload failed", "path", w.path, "error", err)
		return
	}

	w.gate.SetBannedTerms(policy.BannedTerms)
	w.log.Info("Policy reloaded", "path", w.path, "terms", len(policy.BannedTerms))

	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}
