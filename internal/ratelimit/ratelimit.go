// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ratelimit implements fixed-window request budgets per client and
// operation class. Window counters live behind the Counter interface so
// they can be kept in process memory or in Valkey.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"showcase/internal/apperr"
	"showcase/internal/metrics"
)

// Class is an operation class with its own budget.
type Class string

const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
)

// Budget is the number of requests allowed per window.
type Budget struct {
	Limit  int
	Window time.Duration
}

// Counter increments the counter stored under key and returns the new
// value. The key is unique to one window; ttl is how long the counter must
// survive.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Degraded is set when the counter was unreachable and the decision
	// came from the class's failure policy.
	Degraded bool
}

// Err returns a rate-limit error for a denied decision and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.RateLimited(d.Limit, d.RetryAfter, d.ResetAt)
}

// Limiter applies per-class budgets to client keys.
type Limiter struct {
	counter Counter
	budgets map[Class]Budget
	now     func() time.Time
}

// New creates a Limiter with the given read and write budgets.
func New(counter Counter, read, write Budget) *Limiter {
	return &Limiter{
		counter: counter,
		budgets: map[Class]Budget{ClassRead: read, ClassWrite: write},
		now:     time.Now,
	}
}

// Check counts one request for key against budget requests per window.
// Windows are aligned with time.Truncate, so every instance sharing a
// counter agrees on the boundaries.
func (l *Limiter) Check(ctx context.Context, key string, budget int, window time.Duration) (Decision, error) {
	now := l.now()
	start := now.Truncate(window)
	reset := start.Add(window)

	count, err := l.counter.Incr(ctx, fmt.Sprintf("%s:%d", key, start.Unix()), window)
	if err != nil {
		return Decision{Limit: budget, ResetAt: reset}, fmt.Errorf("increment %s: %w", key, err)
	}

	d := Decision{
		Allowed:   count <= int64(budget),
		Limit:     budget,
		Remaining: max(budget-int(count), 0),
		ResetAt:   reset,
	}
	if !d.Allowed {
		d.RetryAfter = retryAfter(reset.Sub(now))
	}
	return d, nil
}

// Allow counts one request by client in class. If the counter fails, reads
// are allowed and writes are denied.
func (l *Limiter) Allow(ctx context.Context, class Class, client string) Decision {
	b := l.budgets[class]
	d, err := l.Check(ctx, "rl:"+string(class)+":"+client, b.Limit, b.Window)
	if err != nil {
		d.Degraded = true
		if class == ClassWrite {
			slog.Error("rate limiter unavailable, rejecting write", "client", client, "error", err)
			d.Allowed = false
			d.RetryAfter = time.Second
			metrics.RateLimitDecision(string(class), "fail_closed")
			return d
		}
		slog.Warn("rate limiter unavailable, allowing read", "client", client, "error", err)
		d.Allowed = true
		d.Remaining = b.Limit
		metrics.RateLimitDecision(string(class), "fail_open")
		return d
	}

	if d.Allowed {
		metrics.RateLimitDecision(string(class), "allowed")
	} else {
		slog.Info("rate limit exceeded", "class", string(class), "client", client, "retry_after", d.RetryAfter)
		metrics.RateLimitDecision(string(class), "denied")
	}
	return d
}

// Budget returns the configured budget for class.
func (l *Limiter) Budget(class Class) Budget {
	return l.budgets[class]
}

// retryAfter rounds up to whole seconds, never below one.
func retryAfter(d time.Duration) time.Duration {
	secs := (d + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
