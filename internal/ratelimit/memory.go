package ratelimit

import (
	"context"
	"sync"
	"time"
)

// keyState is the virtual schedule for one rate-limit key: the point in
// time at which its next conforming request is due.
type keyState struct {
	allowAt time.Time
	seen    time.Time
}

// MemoryLimiter implements Limiter with per-key virtual scheduling
// (GCRA). Each request advances the key's schedule by one emission
// interval per unit of cost; a request is denied when the schedule has
// run further ahead of real time than the burst tolerance allows.
//
// Compared to a token bucket this needs no refill arithmetic and prices
// multi-event ingest batches naturally through AllowN.
type MemoryLimiter struct {
	interval  time.Duration // schedule advance per unit of cost
	tolerance time.Duration // how far ahead of real time a key may run

	mu      sync.Mutex
	keys    map[string]*keyState
	sweepAt time.Time
}

// Keys idle past this are dropped from the schedule map. Sweeping is
// piggybacked on Allow calls rather than a background goroutine.
const (
	staleThreshold = 10 * time.Minute
	sweepInterval  = time.Minute
)

// NewMemoryLimiter creates a limiter sustaining rate requests per
// second per key, with bursts of up to burst requests served
// back-to-back. A non-positive rate disables limiting entirely.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	var interval time.Duration
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	}
	return &MemoryLimiter{
		interval:  interval,
		tolerance: time.Duration(burst-1) * interval,
		keys:      make(map[string]*keyState),
	}
}

// Allow charges one unit against key. Returns true if the request
// should proceed.
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return m.AllowN(ctx, key, 1)
}

// AllowN charges n units against key in one decision, so a batch of n
// events costs the same as n single-event requests. Denied requests do
// not advance the schedule.
func (m *MemoryLimiter) AllowN(_ context.Context, key string, n int) (bool, error) {
	if n <= 0 || m.interval == 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.After(m.sweepAt) {
		m.sweep(now)
		m.sweepAt = now.Add(sweepInterval)
	}

	st, ok := m.keys[key]
	if !ok {
		st = &keyState{allowAt: now}
		m.keys[key] = st
	}
	st.seen = now

	if st.allowAt.Before(now) {
		st.allowAt = now
	}
	// Conforming when the schedule, advanced by the full cost, stays
	// within one burst window of real time.
	cost := time.Duration(n) * m.interval
	if st.allowAt.Sub(now)+cost > m.tolerance+m.interval {
		return false, nil
	}
	st.allowAt = st.allowAt.Add(cost)
	return true, nil
}

// Close satisfies Limiter. The in-memory limiter holds nothing that
// outlives its owner.
func (m *MemoryLimiter) Close() error { return nil }

// sweep drops keys idle past the stale threshold. Callers hold mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	cutoff := now.Add(-staleThreshold)
	for key, st := range m.keys {
		if st.seen.Before(cutoff) {
			delete(m.keys, key)
		}
	}
}
