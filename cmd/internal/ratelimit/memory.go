package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

// MemoryLimiter is a per-key sliding-window limiter for single-instance deployments.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

type window struct {
	events []time.Time
	span   time.Duration
}

// NewMemoryLimiter returns a MemoryLimiter with a background sweeper; call Close to stop it.
func NewMemoryLimiter() *MemoryLimiter {
	l := newMemoryLimiter(time.Now)
	go l.sweepLoop()
	return l
}

func newMemoryLimiter(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*window),
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Allow records an event for key unless limit events already fall inside window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, span time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if span <= 0 {
		span = time.Minute
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.entries[key]
	if w == nil {
		w = &window{events: make([]time.Time, 0, limit)}
		l.entries[key] = w
	}
	w.span = span
	w.prune(now)

	if len(w.events) >= limit {
		return Decision{Allowed: false, Count: len(w.events), RetryAfter: w.events[0].Add(span).Sub(now)}
	}
	w.events = append(w.events, now)
	return Decision{Allowed: true, Count: len(w.events)}
}

func (w *window) prune(now time.Time) {
	cut := now.Add(-w.span)
	dst := w.events[:0]
	for _, t := range w.events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	w.events = dst
}

func (l *MemoryLimiter) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *MemoryLimiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.entries {
		w.prune(now)
		if len(w.events) == 0 {
			delete(l.entries, k)
		}
	}
}

// Close stops the sweeper.
func (l *MemoryLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}
