// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many increments pass between sweeps of expired
// counters.
const sweepEvery = 1024

type memoryEntry struct {
	count   int64
	expires time.Time
}

// MemoryCounter keeps window counters in process memory. Expired counters
// are dropped lazily on access and by a periodic sweep during Incr; no
// background goroutine is started.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	incrs   int
	now     func() time.Time
}

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]*memoryEntry), now: time.Now}
}

// Incr implements Counter.
func (m *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.incrs++
	if m.incrs%sweepEvery == 0 {
		m.sweep(now)
	}

	e, ok := m.entries[key]
	if !ok || !now.Before(e.expires) {
		e = &memoryEntry{expires: now.Add(ttl)}
		m.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Len returns the number of live and not yet swept counters.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryCounter) sweep(now time.Time) {
	for key, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, key)
		}
	}
}
