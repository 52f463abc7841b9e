// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"showcase/internal/cache"
	"showcase/internal/gateway"
	"showcase/internal/handlers"
	"showcase/internal/metacache"
	"showcase/internal/nestedset"
	"showcase/internal/nonce"
	"showcase/internal/ratelimit"
	"showcase/internal/router"
)

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	// Rate-limit counters live in Valkey when several instances share
	// budgets, in process memory otherwise.
	var counter ratelimit.Counter
	switch cfg.RateLimitBackend {
	case "valkey":
		client, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
		if err != nil {
			return fmt.Errorf("connect to valkey: %w", err)
		}
		defer client.Close()
		counter = cache.NewWindowCounter(client)
	default:
		counter = ratelimit.NewMemoryCounter()
	}
	limiter := ratelimit.New(counter,
		ratelimit.Budget{Limit: cfg.RateLimitRead, Window: cfg.RateLimitWindow},
		ratelimit.Budget{Limit: cfg.RateLimitWrite, Window: cfg.RateLimitWindow},
	)

	nonces, err := nonce.New(cfg.NonceSecret, cfg.NonceLifetime)
	if err != nil {
		return fmt.Errorf("nonce issuer: %w", err)
	}

	tree := nestedset.New(a.store, cfg.MutationTimeout)
	meta := metacache.New(a.store, cfg.MetaCacheSize, cfg.MetaCacheTTL)
	gw := gateway.New(a.store, tree, meta, limiter, nonces, cfg.DeletePolicy)

	r := router.New(handlers.NewCategories(gw), router.Options{
		SecureCookies: !cfg.IsDev(),
		SessionMaxAge: cfg.NonceLifetime,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.MutationTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
