// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metacache resolves category metadata for many ids at once with a
// bounded number of backing-store round trips. Entries live in an LRU with
// a per-entry TTL and are evicted immediately when a write touches them.
package metacache

import (
	"container/list"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"showcase/internal/metrics"
	"showcase/internal/models"
)

// Defaults used when New is given zero values.
const (
	DefaultCapacity = 1000
	DefaultTTL      = 30 * time.Second
)

// fetchTimeout bounds a shared fetch. It runs detached from the caller that
// started it, so it needs its own deadline.
const fetchTimeout = 10 * time.Second

// Fetcher loads metadata for a batch of ids in one call. Ids absent from
// the returned map are treated as having no metadata.
type Fetcher interface {
	FetchMeta(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Metadata, error)
}

type entry struct {
	id      uuid.UUID
	meta    models.Metadata
	expires time.Time
}

// Cache is a read-through metadata cache. It is safe for concurrent use.
// Returned Metadata values share their Extra map with the cache and must
// not be modified.
type Cache struct {
	fetcher  Fetcher
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	ll    *list.List
	items map[uuid.UUID]*list.Element
	// epoch is bumped by every invalidation. A fetch only populates the
	// cache if no invalidation happened while it was in flight.
	epoch uint64

	flight singleflight.Group
}

// New creates a Cache in front of f.
func New(f Fetcher, capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetcher:  f,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		ll:       list.New(),
		items:    make(map[uuid.UUID]*list.Element),
	}
}

// Resolve returns metadata for every id. Cached entries are served
// directly; all misses are loaded with a single Fetcher call. Concurrent
// callers missing the same set of ids share that call. The shared fetch is
// not cancelled when the caller that started it goes away; each caller
// stops waiting when its own ctx is done.
func (c *Cache) Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Metadata, error) {
	out := make(map[uuid.UUID]models.Metadata, len(ids))
	misses, epoch := c.lookup(ids, out)
	if len(misses) == 0 {
		return out, nil
	}

	slices.SortFunc(misses, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	ch := c.flight.DoChan(flightKey(epoch, misses), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		fetched, err := c.fetcher.FetchMeta(fctx, misses)
		metrics.CacheFetch(err)
		if err != nil {
			return nil, err
		}
		c.fill(epoch, misses, fetched)
		return fetched, nil
	})

	var v any
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch metadata: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("fetch metadata: %w", res.Err)
		}
		v = res.Val
	}

	fetched := v.(map[uuid.UUID]models.Metadata)
	for _, id := range misses {
		out[id] = fetched[id]
	}
	return out, nil
}

// lookup copies live entries into out and returns the distinct ids that
// must be fetched, along with the epoch observed.
func (c *Cache) lookup(ids []uuid.UUID, out map[uuid.UUID]models.Metadata) ([]uuid.UUID, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var misses []uuid.UUID
	missed := make(map[uuid.UUID]bool)
	expired := 0
	for _, id := range ids {
		if _, done := out[id]; done || missed[id] {
			continue
		}
		el, ok := c.items[id]
		if ok && now.After(el.Value.(*entry).expires) {
			c.remove(el)
			expired++
			ok = false
		}
		if !ok {
			missed[id] = true
			misses = append(misses, id)
			continue
		}
		c.ll.MoveToFront(el)
		out[id] = el.Value.(*entry).meta
	}

	metrics.CacheHits(len(out))
	metrics.CacheMisses(len(misses))
	metrics.CacheEvicted("expired", expired)
	return misses, c.epoch
}

// fill stores fetched results unless an invalidation happened after epoch
// was read.
func (c *Cache) fill(epoch uint64, ids []uuid.UUID, fetched map[uuid.UUID]models.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return
	}
	expires := c.now().Add(c.ttl)
	evicted := 0
	for _, id := range ids {
		if el, ok := c.items[id]; ok {
			e := el.Value.(*entry)
			e.meta, e.expires = fetched[id], expires
			c.ll.MoveToFront(el)
			continue
		}
		c.items[id] = c.ll.PushFront(&entry{id: id, meta: fetched[id], expires: expires})
		for c.ll.Len() > c.capacity {
			c.remove(c.ll.Back())
			evicted++
		}
	}
	metrics.CacheEvicted("capacity", evicted)
}

// Invalidate evicts the given ids and discards any fetch already in
// flight, so a write is never followed by a stale read.
func (c *Cache) Invalidate(ids ...uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	n := 0
	for _, id := range ids {
		if el, ok := c.items[id]; ok {
			c.remove(el)
			n++
		}
	}
	metrics.CacheEvicted("invalidated", n)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	metrics.CacheEvicted("invalidated", c.ll.Len())
	c.ll.Init()
	c.items = make(map[uuid.UUID]*list.Element)
}

// Len returns the number of cached entries, including expired ones not yet
// reclaimed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).id)
}

func flightKey(epoch uint64, ids []uuid.UUID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", epoch)
	for _, id := range ids {
		b.WriteByte(':')
		b.WriteString(id.String())
	}
	return b.String()
}
