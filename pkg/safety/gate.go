// Package safety screens inbound messages before any other pipeline work happens.
package safety

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Reason identifies why a message was rejected.
type Reason string

const (
	ReasonEmpty       Reason = "empty_message"
	ReasonTooLong     Reason = "message_too_long"
	ReasonTooShort    Reason = "message_too_short"
	ReasonBanned      Reason = "banned_content"
	ReasonSpam        Reason = "spam_detected"
	ReasonRateLimited Reason = "rate_limit_exceeded"
)

const (
	defaultMaxLength  = 10000
	defaultMinLength  = 2
	defaultRateWindow = time.Minute
	defaultRateLimit  = 30

	// DefaultIdentity is used when a caller cannot name the sender.
	DefaultIdentity = "default"

	repeatedCharRun = 11
)

// DefaultBannedTerms is the built-in denylist.
var DefaultBannedTerms = []string{
	"bomba", "patlayıcı", "cinayet", "uyuşturucu",
	"hack", "exploit", "malware", "virus",
	"porn", "illegal", "kaçak",
}

var (
	longURLPattern  = regexp.MustCompile(`https?://.{100,}`)
	upperRunPattern = regexp.MustCompile(`[A-Z]{20,}`)
)

// Verdict is the result of screening one message. Message and Reason are set only when Safe is false.
type Verdict struct {
	Safe       bool
	Reason     Reason
	Message    string
	RetryAfter time.Duration
}

// Stats summarizes gate state for status endpoints.
type Stats struct {
	BannedTerms     int `json:"bannedWordsCount"`
	TrackedIdentity int `json:"trackedUsers"`
	TrackedRequests int `json:"totalRequests"`
}

// Options configures a Gate. Zero values fall back to the documented defaults.
type Options struct {
	MaxLength   int
	MinLength   int
	BannedTerms []string
	RateWindow  time.Duration
	RateLimit   int
	Store       RateStore
	Now         func() time.Time
	Logger      *slog.Logger
}

// Gate applies the ordered safety checks and owns the per-identity rate state.
type Gate struct {
	maxLength  int
	minLength  int
	rateWindow time.Duration
	rateLimit  int
	store      RateStore
	now        func() time.Time
	log        *slog.Logger

	mu     sync.RWMutex
	banned []string
}

// New creates a Gate from opts.
func New(opts Options) *Gate {
	g := &Gate{
		maxLength:  opts.MaxLength,
		minLength:  opts.MinLength,
		rateWindow: opts.RateWindow,
		rateLimit:  opts.RateLimit,
		store:      opts.Store,
		now:        opts.Now,
		log:        opts.Logger,
	}
	if g.maxLength <= 0 {
		g.maxLength = defaultMaxLength
	}
	if g.minLength <= 0 {
		g.minLength = defaultMinLength
	}
	if g.rateWindow <= 0 {
		g.rateWindow = defaultRateWindow
	}
	if g.rateLimit <= 0 {
		g.rateLimit = defaultRateLimit
	}
	if g.store == nil {
		g.store = NewMemoryRateStore(0)
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.log == nil {
		g.log = slog.Default().With("component", "safety.gate")
	}

	terms := opts.BannedTerms
	if terms == nil {
		terms = DefaultBannedTerms
	}
	g.banned = normalizeTerms(terms)

	return g
}

// Check screens msg on behalf of identity. The first failing check decides the verdict.
// Only a message that passes every content check consumes a rate-limit slot.
func (g *Gate) Check(msg string, identity string) Verdict {
	if identity == "" {
		identity = DefaultIdentity
	}

	trimmed := strings.TrimSpace(msg)
	if trimmed == "" {
		return reject(ReasonEmpty, "⚠️ Mesaj boş olamaz.")
	}

	if utf8.RuneCountInString(msg) > g.maxLength {
		return reject(ReasonTooLong, fmt.Sprintf("⚠️ Mesaj çok uzun. Lütfen %d karakterin altında tutun.", g.maxLength))
	}

	if utf8.RuneCountInString(trimmed) < g.minLength {
		return reject(ReasonTooShort, "⚠️ Mesaj çok kısa.")
	}

	if term, ok := g.bannedTerm(msg); ok {
		g.log.Warn("Banned term detected", "term", term, "identity", identity)
		return reject(ReasonBanned, "⚠️ Bu içerik güvenlik nedeniyle engellendi.")
	}

	if isSpam(msg) {
		g.log.Warn("Spam pattern detected", "identity", identity)
		return reject(ReasonSpam, "⚠️ Spam içerik tespit edildi.")
	}

	allowed, remaining := g.store.Admit(identity, g.now(), g.rateWindow, g.rateLimit)
	if !allowed {
		wait := waitSeconds(remaining)
		g.log.Warn("Rate limit exceeded", "identity", identity, "wait_seconds", wait)
		verdict := reject(ReasonRateLimited, fmt.Sprintf("⏳ **Çok fazla istek gönderdiniz!**\n\nLütfen %d saniye bekleyin.", wait))
		verdict.RetryAfter = time.Duration(wait) * time.Second
		return verdict
	}

	return Verdict{Safe: true}
}

// AddBannedTerm adds a lowercase term to the denylist. Adding an existing term is a no-op.
func (g *Gate) AddBannedTerm(term string) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if slices.Contains(g.banned, term) {
		return
	}
	g.banned = append(g.banned, term)
	g.log.Info("Banned term added", "term", term)
}

// RemoveBannedTerm deletes term from the denylist when present.
func (g *Gate) RemoveBannedTerm(term string) {
	term = strings.ToLower(strings.TrimSpace(term))

	g.mu.Lock()
	defer g.mu.Unlock()

	g.banned = slices.DeleteFunc(g.banned, func(existing string) bool { return existing == term })
}

// SetBannedTerms replaces the denylist, used by policy reloads.
func (g *Gate) SetBannedTerms(terms []string) {
	normalized := normalizeTerms(terms)

	g.mu.Lock()
	g.banned = normalized
	g.mu.Unlock()

	g.log.Info("Banned terms replaced", "count", len(normalized))
}

// BannedTerms returns a copy of the current denylist.
func (g *Gate) BannedTerms() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Clone(g.banned)
}

// ResetRateLimit clears identity's request history. Unknown identities are a no-op.
func (g *Gate) ResetRateLimit(identity string) {
	if identity == "" {
		identity = DefaultIdentity
	}
	g.store.Reset(identity)
	g.log.Info("Rate limit reset", "identity", identity)
}

// Stats reports denylist size and rate-limit occupancy.
func (g *Gate) Stats() Stats {
	g.mu.RLock()
	terms := len(g.banned)
	g.mu.RUnlock()

	rate := g.store.Stats()
	return Stats{
		BannedTerms:     terms,
		TrackedIdentity: rate.Identities,
		TrackedRequests: rate.Requests,
	}
}

func (g *Gate) bannedTerm(msg string) (string, bool) {
	lower := strings.ToLower(msg)

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, term := range g.banned {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

func reject(reason Reason, message string) Verdict {
	return Verdict{Safe: false, Reason: reason, Message: message}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || slices.Contains(out, term) {
			continue
		}
		out = append(out, term)
	}
	return out
}

// isSpam reports a long single-character run, an overlong URL, or a long uppercase run.
func isSpam(msg string) bool {
	return hasRepeatedRun(msg, repeatedCharRun) ||
		longURLPattern.MatchString(msg) ||
		upperRunPattern.MatchString(msg)
}

// hasRepeatedRun reports whether any non-newline character appears n or more times in a row.
func hasRepeatedRun(msg string, n int) bool {
	var (
		prev rune
		run  int
	)
	for _, r := range msg {
		if r == '\n' {
			run = 0
			continue
		}
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// waitSeconds rounds up to whole seconds.
func waitSeconds(remaining time.Duration) int64 {
	if remaining <= 0 {
		return 0
	}
	return int64((remaining + time.Second - 1) / time.Second)
}
