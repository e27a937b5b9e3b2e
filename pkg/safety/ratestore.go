package safety

import (
	"sync"
	"time"
)

// RateStore tracks recent accepted requests per identity.
//
// Admit must prune, decide and record as one atomic step for a given identity so
// concurrent requests from the same sender can never both take the last slot.
type RateStore interface {
	// Admit drops timestamps older than window, then either records now and
	// returns (true, 0) or refuses and returns the time until the oldest
	// recorded request leaves the window.
	Admit(identity string, now time.Time, window time.Duration, limit int) (bool, time.Duration)
	// Reset forgets every timestamp for identity.
	Reset(identity string)
	// Stats reports tracked identities and total retained timestamps.
	Stats() RateStats
}

// RateStats summarizes RateStore occupancy.
type RateStats struct {
	Identities int
	Requests   int
}

// MemoryRateStore keeps a bounded ring of timestamps per identity in process memory.
type MemoryRateStore struct {
	mu            sync.Mutex
	windows       map[string]*rateWindow
	maxIdentities int
}

type rateWindow struct {
	mu       sync.Mutex
	stamps   []time.Time
	head     int
	size     int
	lastSeen time.Time
}

// NewMemoryRateStore creates a store that tracks at most maxIdentities senders.
// Zero or negative means unbounded.
func NewMemoryRateStore(maxIdentities int) *MemoryRateStore {
	return &MemoryRateStore{
		windows:       make(map[string]*rateWindow),
		maxIdentities: maxIdentities,
	}
}

func (s *MemoryRateStore) Admit(identity string, now time.Time, window time.Duration, limit int) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return true, 0
	}

	w := s.lockedWindow(identity, now, window, limit)
	defer w.mu.Unlock()

	w.resize(limit)
	w.prune(now, window)
	w.lastSeen = now

	if w.size >= limit {
		oldest := w.stamps[w.head]
		return false, window - now.Sub(oldest)
	}

	w.push(now)
	return true, 0
}

func (s *MemoryRateStore) Reset(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, identity)
}

func (s *MemoryRateStore) Stats() RateStats {
	s.mu.Lock()
	windows := make([]*rateWindow, 0, len(s.windows))
	for _, w := range s.windows {
		windows = append(windows, w)
	}
	s.mu.Unlock()

	stats := RateStats{Identities: len(windows)}
	for _, w := range windows {
		w.mu.Lock()
		stats.Requests += w.size
		w.mu.Unlock()
	}
	return stats
}

// lockedWindow returns the identity's ring with its lock held, creating it and
// evicting idle identities as needed. The ring is locked before s.mu is released
// so Reset and eviction cannot detach it while a timestamp is being recorded.
func (s *MemoryRateStore) lockedWindow(identity string, now time.Time, window time.Duration, limit int) *rateWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[identity]; ok {
		w.mu.Lock()
		return w
	}

	if s.maxIdentities > 0 && len(s.windows) >= s.maxIdentities {
		s.evictLocked(now, window)
	}

	w := &rateWindow{stamps: make([]time.Time, limit), lastSeen: now}
	w.mu.Lock()
	s.windows[identity] = w
	return w
}

// evictLocked removes identities with no live timestamps, or the least recently
// seen identity when every tracked identity is still active.
func (s *MemoryRateStore) evictLocked(now time.Time, window time.Duration) {
	var (
		lruKey  string
		lruSeen time.Time
	)
	for key, w := range s.windows {
		if !w.mu.TryLock() {
			continue
		}
		idle := now.Sub(w.lastSeen) >= window
		seen := w.lastSeen
		w.mu.Unlock()

		if idle {
			delete(s.windows, key)
			continue
		}
		if lruKey == "" || seen.Before(lruSeen) {
			lruKey, lruSeen = key, seen
		}
	}

	if len(s.windows) >= s.maxIdentities && lruKey != "" {
		delete(s.windows, lruKey)
	}
}

func (w *rateWindow) prune(now time.Time, window time.Duration) {
	for w.size > 0 && now.Sub(w.stamps[w.head]) >= window {
		w.stamps[w.head] = time.Time{}
		w.head = (w.head + 1) % len(w.stamps)
		w.size--
	}
}

func (w *rateWindow) push(at time.Time) {
	tail := (w.head + w.size) % len(w.stamps)
	w.stamps[tail] = at
	w.size++
}

// resize keeps the newest entries when the configured limit changes.
func (w *rateWindow) resize(limit int) {
	if len(w.stamps) == limit {
		return
	}

	keep := min(w.size, limit)
	next := make([]time.Time, limit)
	for i := 0; i < keep; i++ {
		next[i] = w.stamps[(w.head+w.size-keep+i)%len(w.stamps)]
	}
	w.stamps = next
	w.head = 0
	w.size = keep
}
