// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "showcase"

var (
	// mutations counts structural mutations by operation and outcome.
	// Labels: op (create, update, move, delete), result (ok or an error code)
	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tree",
		Name:      "mutations_total",
		Help:      "Category tree mutations by operation and result",
	}, []string{"op", "result"})

	// mutationLatency measures time spent inside the tree transaction.
	mutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tree",
		Name:      "mutation_duration_seconds",
		Help:      "Category tree mutation latency in seconds",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"op"})

	// cacheLookups counts metadata cache lookups per id.
	// Labels: result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metacache",
		Name:      "lookups_total",
		Help:      "Metadata cache lookups by result",
	}, []string{"result"})

	// cacheFetches counts batched backing-store fetches.
	cacheFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metacache",
		Name:      "fetches_total",
		Help:      "Batched metadata fetches by result",
	}, []string{"result"})

	// cacheEvictions counts entries dropped by invalidation or capacity.
	// Labels: reason (invalidated, capacity, expired)
	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metacache",
		Name:      "evictions_total",
		Help:      "Metadata cache evictions by reason",
	}, []string{"reason"})

	// rateLimitDecisions counts limiter outcomes.
	// Labels: class (read, write), decision (allowed, denied, fail_open, fail_closed)
	rateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limiter decisions by operation class",
	}, []string{"class", "decision"})

	// httpRequests counts served HTTP requests.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status class",
	}, []string{"method", "status"})
)

// ObserveMutation records one tree mutation.
func ObserveMutation(op, result string, elapsed time.Duration) {
	mutations.WithLabelValues(op, result).Inc()
	mutationLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// CacheHits adds n cache hits.
func CacheHits(n int) {
	if n > 0 {
		cacheLookups.WithLabelValues("hit").Add(float64(n))
	}
}

// CacheMisses adds n cache misses.
func CacheMisses(n int) {
	if n > 0 {
		cacheLookups.WithLabelValues("miss").Add(float64(n))
	}
}

// CacheFetch records one batched fetch.
func CacheFetch(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheFetches.WithLabelValues(result).Inc()
}

// CacheEvicted adds n evictions for reason.
func CacheEvicted(reason string, n int) {
	if n > 0 {
		cacheEvictions.WithLabelValues(reason).Add(float64(n))
	}
}

// RateLimitDecision records one limiter outcome.
func RateLimitDecision(class, decision string) {
	rateLimitDecisions.WithLabelValues(class, decision).Inc()
}

// HTTPRequest records one served request; status is bucketed to its class.
func HTTPRequest(method string, status int) {
	httpRequests.WithLabelValues(method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
