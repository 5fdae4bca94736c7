// Package dedupe suppresses repeated work items inside a time window.
package dedupe

import (
	"sync"
	"time"
)

type entry[K comparable] struct {
	key K
	ts  time.Time
}

// Window remembers recently completed keys, bounded by capacity and ttl.
type Window[K comparable] struct {
	mu       sync.Mutex
	items    map[K]time.Time
	order    []entry[K]
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewWindow creates a window with the provided capacity and ttl.
func NewWindow[K comparable](capacity int, ttl time.Duration) *Window[K] {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Window[K]{
		items:    make(map[K]time.Time, capacity),
		order:    make([]entry[K], 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (w *Window[K]) WithClock(now func() time.Time) *Window[K] {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
	return w
}

// Seen reports whether key was marked within the ttl.
func (w *Window[K]) Seen(key K) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts, ok := w.items[key]
	return ok && w.now().Sub(ts) <= w.ttl
}

// Mark records key as done now.
func (w *Window[K]) Mark(key K) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.items[key] = now
	w.order = append(w.order, entry[K]{key: key, ts: now})
	w.compact(now)
}

// Len returns the number of keys currently remembered.
func (w *Window[K]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

func (w *Window[K]) compact(now time.Time) {
	cutoff := now.Add(-w.ttl)
	for len(w.order) > 0 && (len(w.items) > w.capacity || w.order[0].ts.Before(cutoff)) {
		oldest := w.order[0]
		w.order = w.order[1:]
		if ts, ok := w.items[oldest.key]; ok && ts.Equal(oldest.ts) {
			delete(w.items, oldest.key)
		}
	}
}
