// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// counter.go provides Valkey-backed fixed-window counters for the rate
// limiter. Every API instance sharing a Valkey server sees the same counts.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterKeyPrefix is the Valkey key prefix for rate-limit windows.
const counterKeyPrefix = "ratelimit:"

// WindowCounter increments per-window counters in Valkey.
type WindowCounter struct {
	client redis.UniversalClient
}

// NewWindowCounter creates a counter backed by the given Valkey client.
func NewWindowCounter(client redis.UniversalClient) *WindowCounter {
	return &WindowCounter{client: client}
}

// Incr atomically increments key and sets its expiry in one MULTI/EXEC
// round trip, returning the new count.
func (wc *WindowCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := wc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, counterKeyPrefix+key)
		pipe.Expire(ctx, counterKeyPrefix+key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("valkey incr: %w", err)
	}
	return incr.Val(), nil
}

// Reset removes all window counters by scanning for the prefix.
func (wc *WindowCounter) Reset(ctx context.Context) error {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := wc.client.Scan(ctx, cursor, counterKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("valkey scan: %w", err)
		}
		if len(keys) > 0 {
			if err := wc.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("valkey delete: %w", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("rate limit counters cleared", "deleted", deleted)
	}
	return nil
}
