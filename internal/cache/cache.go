// Package cache keeps the latest fix per source so a session can answer
// from a recent position instead of waiting for a live one.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shaunagostinho/geofix/internal/location"
)

// Store holds at most one sample per source. Get returns nil when nothing
// fresh is stored.
type Store interface {
	Get(ctx context.Context, src location.Source) (*location.Sample, error)
	Put(ctx context.Context, s location.Sample) error
	Close() error
}

type entry struct {
	sample  location.Sample
	expires time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[location.Source]entry
}

// NewMemory keeps samples for ttl. A zero ttl never expires.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[location.Source]entry)}
}

func (m *Memory) Get(_ context.Context, src location.Source) (*location.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[src]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, src)
		return nil, nil
	}
	s := e.sample
	return &s, nil
}

func (m *Memory) Put(_ context.Context, s location.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{sample: s}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[s.Source] = e
	return nil
}

func (m *Memory) Close() error { return nil }
