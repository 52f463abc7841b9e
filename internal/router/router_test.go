// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the operational endpoints.
package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"showcase/internal/gateway"
	"showcase/internal/handlers"
	"showcase/internal/metacache"
	"showcase/internal/middleware"
	"showcase/internal/nestedset"
	"showcase/internal/nonce"
	"showcase/internal/ratelimit"
	"showcase/internal/store/storetest"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	s, _ := storetest.SQLite(t)
	issuer, err := nonce.New("router-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	limiter := ratelimit.New(ratelimit.NewMemoryCounter(),
		ratelimit.Budget{Limit: 100, Window: time.Minute},
		ratelimit.Budget{Limit: 100, Window: time.Minute})
	gw := gateway.New(s, nestedset.New(s, 0), metacache.New(s, 10, time.Minute), limiter, issuer, "")
	return New(handlers.NewCategories(gw), Options{SessionMaxAge: time.Hour})
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	healthHandler(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("content-type: got %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

func TestRoutes(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/api/nonce", http.StatusOK},
		{"GET", "/api/categories", http.StatusOK},
		{"GET", "/api/categories/tree", http.StatusOK},
		{"GET", "/api/categories/7b0f4c1e-93a2-4d55-8f0a-2c6b1d9e4f10", http.StatusNotFound},
		{"GET", "/api/categories/7b0f4c1e-93a2-4d55-8f0a-2c6b1d9e4f10/ancestors", http.StatusNotFound},
		{"GET", "/api/categories/slug/missing", http.StatusNotFound},
		{"POST", "/api/categories", http.StatusForbidden},
		{"PATCH", "/api/categories/7b0f4c1e-93a2-4d55-8f0a-2c6b1d9e4f10", http.StatusForbidden},
		{"DELETE", "/api/categories/7b0f4c1e-93a2-4d55-8f0a-2c6b1d9e4f10", http.StatusForbidden},
		{"PUT", "/api/categories", http.StatusMethodNotAllowed},
		{"GET", "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body *strings.Reader
			if tt.method != "GET" {
				body = strings.NewReader(`{"name":"X"}`)
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestMiddlewareStack(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/categories", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("secure headers not applied")
	}
	if rr.Header().Get("X-RateLimit-Limit") != "100" {
		t.Errorf("X-RateLimit-Limit: got %q", rr.Header().Get("X-RateLimit-Limit"))
	}

	var found bool
	for _, c := range rr.Result().Cookies() {
		found = found || c.Name == middleware.SessionCookieName
	}
	if !found {
		t.Error("API responses should carry a session cookie")
	}

	req = httptest.NewRequest("GET", "/health", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if len(rr.Result().Cookies()) != 0 {
		t.Error("health check should not start a session")
	}
}
