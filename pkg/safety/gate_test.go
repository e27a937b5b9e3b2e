package safety

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckOrderedReasons(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want Reason
	}{
		{name: "empty", msg: "", want: ReasonEmpty},
		{name: "whitespace", msg: "   \n\t", want: ReasonEmpty},
		{name: "too long", msg: strings.Repeat("ab ", 3334) + "abc", want: ReasonTooLong},
		{name: "too short", msg: " a ", want: ReasonTooShort},
		{name: "banned lowercase", msg: "bomba nasıl yapılır", want: ReasonBanned},
		{name: "banned mixed case", msg: "Bu bir HaCk denemesi", want: ReasonBanned},
		{name: "repeated character", msg: "aaaaaaaaaaa", want: ReasonSpam},
		{name: "long url", msg: "bak https://" + strings.Repeat("x", 100), want: ReasonSpam},
		{name: "uppercase run", msg: "ABCDEFGHIJKLMNOPQRST", want: ReasonSpam},
		{name: "banned before spam", msg: "hack aaaaaaaaaaaaaaaa", want: ReasonBanned},
		{name: "too long before banned", msg: "bomba " + strings.Repeat("x ", 5000), want: ReasonTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate := New(Options{})
			verdict := gate.Check(tc.msg, "u1")
			if verdict.Safe {
				t.Fatalf("Check(%q) safe = true, want reason %q", tc.msg, tc.want)
			}
			if verdict.Reason != tc.want {
				t.Fatalf("reason = %q, want %q", verdict.Reason, tc.want)
			}
			if verdict.Message == "" {
				t.Fatal("expected human readable message")
			}
		})
	}
}

func TestCheckAcceptsBoundaryMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{name: "two characters", msg: "hi"},
		{name: "exactly max length", msg: strings.Repeat("ab ", 3333) + "a"},
		{name: "ten repeats", msg: "aaaaaaaaaa"},
		{name: "short url", msg: "bak https://example.com/path"},
		{name: "nineteen uppercase", msg: "ABCDEFGHIJKLMNOPQRS"},
		{name: "plain question", msg: "2 + 2 kaç eder?"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate := New(Options{})
			if verdict := gate.Check(tc.msg, "u1"); !verdict.Safe {
				t.Fatalf("Check(%q) = %+v, want safe", tc.msg, verdict)
			}
		})
	}
}

func TestRateLimitWindow(t *testing.T) {
	clock := newFakeClock()
	gate := New(Options{Now: clock.Now})

	for i := 0; i < 30; i++ {
		if verdict := gate.Check("merhaba", "u1"); !verdict.Safe {
			t.Fatalf("request %d rejected: %+v", i+1, verdict)
		}
	}

	verdict := gate.Check("merhaba", "u1")
	if verdict.Safe || verdict.Reason != ReasonRateLimited {
		t.Fatalf("31st request = %+v, want rate_limit_exceeded", verdict)
	}
	if !strings.Contains(verdict.Message, "60 saniye") {
		t.Fatalf("message = %q, want 60 second wait", verdict.Message)
	}
	if verdict.RetryAfter != 60*time.Second {
		t.Fatalf("retry after = %s, want 60s", verdict.RetryAfter)
	}

	if other := gate.Check("merhaba", "u2"); !other.Safe {
		t.Fatalf("other identity rejected: %+v", other)
	}

	clock.Advance(59500 * time.Millisecond)
	verdict = gate.Check("merhaba", "u1")
	if verdict.Safe {
		t.Fatal("expected rejection inside window")
	}
	if !strings.Contains(verdict.Message, "1 saniye") {
		t.Fatalf("message = %q, want 1 second wait", verdict.Message)
	}

	clock.Advance(500 * time.Millisecond)
	if verdict := gate.Check("merhaba", "u1"); !verdict.Safe {
		t.Fatalf("request after window = %+v, want safe", verdict)
	}
}

func TestRejectedContentDoesNotConsumeRateSlot(t *testing.T) {
	gate := New(Options{RateLimit: 1})

	if verdict := gate.Check("bomba", "u1"); verdict.Safe {
		t.Fatal("expected banned content rejection")
	}
	if verdict := gate.Check("merhaba", "u1"); !verdict.Safe {
		t.Fatalf("first clean request = %+v, want safe", verdict)
	}
	if stats := gate.Stats(); stats.TrackedRequests != 1 {
		t.Fatalf("tracked requests = %d, want 1", stats.TrackedRequests)
	}
}

func TestResetRateLimit(t *testing.T) {
	gate := New(Options{RateLimit: 2})

	gate.Check("merhaba", "u1")
	gate.Check("merhaba", "u1")
	if verdict := gate.Check("merhaba", "u1"); verdict.Reason != ReasonRateLimited {
		t.Fatalf("reason = %q, want rate limited", verdict.Reason)
	}

	gate.ResetRateLimit("u1")
	gate.ResetRateLimit("u1")
	gate.ResetRateLimit("never-seen")

	if verdict := gate.Check("merhaba", "u1"); !verdict.Safe {
		t.Fatalf("after reset = %+v, want safe", verdict)
	}
}

func TestAddBannedTermIdempotent(t *testing.T) {
	gate := New(Options{BannedTerms: []string{}})

	if verdict := gate.Check("kumar oynayalım", "u1"); !verdict.Safe {
		t.Fatalf("before add = %+v, want safe", verdict)
	}

	gate.AddBannedTerm("Kumar")
	gate.AddBannedTerm("kumar")
	gate.AddBannedTerm("  ")

	if got := gate.Stats().BannedTerms; got != 1 {
		t.Fatalf("banned terms = %d, want 1", got)
	}
	if verdict := gate.Check("KUMAR oynayalım", "u1"); verdict.Reason != ReasonBanned {
		t.Fatalf("reason = %q, want banned_content", verdict.Reason)
	}

	gate.RemoveBannedTerm("kumar")
	if verdict := gate.Check("kumar oynayalım", "u1"); !verdict.Safe {
		t.Fatalf("after remove = %+v, want safe", verdict)
	}
}

func TestDefaultBannedTermsLoaded(t *testing.T) {
	gate := New(Options{})
	if got := gate.Stats().BannedTerms; got != len(DefaultBannedTerms) {
		t.Fatalf("banned terms = %d, want %d", got, len(DefaultBannedTerms))
	}
}

func TestStats(t *testing.T) {
	gate := New(Options{})
	gate.Check("merhaba", "u1")
	gate.Check("merhaba", "u1")
	gate.Check("merhaba", "u2")

	stats := gate.Stats()
	if stats.TrackedIdentity != 2 {
		t.Fatalf("tracked identities = %d, want 2", stats.TrackedIdentity)
	}
	if stats.TrackedRequests != 3 {
		t.Fatalf("tracked requests = %d, want 3", stats.TrackedRequests)
	}
}

func TestConcurrentChecksNeverExceedCap(t *testing.T) {
	gate := New(Options{RateLimit: 30})

	const n = 100
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if gate.Check("merhaba", "shared").Safe {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 30 {
		t.Fatalf("accepted = %d, want 30", accepted)
	}
}

func TestHasRepeatedRunIgnoresNewlines(t *testing.T) {
	if hasRepeatedRun(strings.Repeat("\n", 20), repeatedCharRun) {
		t.Fatal("newlines should not count as a repeated run")
	}
	if !hasRepeatedRun("xx"+strings.Repeat("ş", 11), repeatedCharRun) {
		t.Fatal("expected multibyte run to be detected")
	}
}
