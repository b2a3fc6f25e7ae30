// Package cache holds short-lived coordination state shared between API
// replicas. Today that is the presence-touch throttle.
package cache

import (
	"context"
	"sync"
	"time"
)

// Throttle admits at most one action per key within a window.
type Throttle interface {
	// Allow reports whether the caller may act on key now. A true result
	// reserves the key for window.
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
	// Release drops a reservation so the next Allow on key succeeds.
	Release(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// MemoryThrottle is a process-local Throttle.
type MemoryThrottle struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

var _ Throttle = (*MemoryThrottle)(nil)

// NewMemoryThrottle creates an empty in-process throttle.
func NewMemoryThrottle() *MemoryThrottle {
	return &MemoryThrottle{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *MemoryThrottle) WithClock(now func() time.Time) *MemoryThrottle {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

func (m *MemoryThrottle) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	m.expires[key] = now.Add(window)

	// keep the map bounded by dropping expired reservations
	if len(m.expires) > 1024 {
		for k, until := range m.expires {
			if !now.Before(until) {
				delete(m.expires, k)
			}
		}
	}
	return true, nil
}

func (m *MemoryThrottle) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.expires, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryThrottle) Ping(context.Context) error { return nil }

func (m *MemoryThrottle) Close() error { return nil }
