// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// category API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"showcase/internal/handlers"
	"showcase/internal/middleware"
)

// Options tunes the middleware stack.
type Options struct {
	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool
	// SessionMaxAge is the session cookie lifetime; nonces are bound to it.
	SessionMaxAge time.Duration
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(categories *handlers.Categories, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	// Operational endpoints: no session, no rate limit.
	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewSession(opts.SecureCookies, opts.SessionMaxAge))
		r.NotFound(notFoundHandler)
		r.MethodNotAllowed(methodNotAllowedHandler)

		r.Get("/nonce", categories.Nonce)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categories.List)
			r.Post("/", categories.Create)
			r.Get("/tree", categories.Tree)
			r.Get("/slug/{slug}", categories.GetBySlug)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", categories.Get)
				r.Patch("/", categories.Update)
				r.Delete("/", categories.Delete)
				r.Get("/ancestors", categories.Ancestors)
				r.Post("/move", categories.Move)
			})
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":{"code":"not_found","message":"No such endpoint."}}`))
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	w.Write([]byte(`{"error":{"code":"method_not_allowed","message":"Method not allowed."}}`))
}
