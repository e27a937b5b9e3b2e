package safety

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "banned_terms:\n  - kumar\n  - Bahis\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy error: %v", err)
	}
	if len(policy.BannedTerms) != 2 || policy.BannedTerms[1] != "Bahis" {
		t.Fatalf("banned terms = %#v", policy.BannedTerms)
	}
}

func TestLoadPolicyMissingFileUsesDefaults(t *testing.T) {
	policy, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadPolicy error: %v", err)
	}
	if len(policy.BannedTerms) != len(DefaultBannedTerms) {
		t.Fatalf("banned terms = %d, want defaults", len(policy.BannedTerms))
	}
}

func TestLoadPolicyInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("banned_terms: [unterminated"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPolicyWatcherReloadsGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("banned_terms: [kumar]\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	gate := New(Options{BannedTerms: []string{"kumar"}})
	watcher, err := NewPolicyWatcher(path, gate)
	if err != nil {
		t.Fatalf("NewPolicyWatcher error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := os.WriteFile(path, []byte("banned_terms: [bahis, tombala]\n"), 0o600); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}

	select {
	case <-watcher.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for policy reload")
	}

	if verdict := gate.Check("kumar oynayalım", "u1"); !verdict.Safe {
		t.Fatalf("old term still banned: %+v", verdict)
	}
	if verdict := gate.Check("tombala oynayalım", "u1"); verdict.Reason != ReasonBanned {
		t.Fatalf("reason = %q, want banned_content", verdict.Reason)
	}
}
