// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookieName is the cookie that carries the session id nonces
	// are bound to.
	SessionCookieName = "showcase_session"

	// NonceHeader is the header writes send their nonce in.
	NonceHeader = "X-WP-Nonce"

	// CSRFHeaderName is accepted as an alternative nonce header.
	CSRFHeaderName = "X-CSRF-Token"
)

type contextKey string

const sessionKey contextKey = "session"

// NewSession returns middleware that makes sure every request has a session
// id. A missing or malformed cookie gets a fresh random id, which is set on
// the response and stored in the request context. secure controls the
// cookie's Secure flag and should be true behind TLS.
func NewSession(secure bool, maxAge time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the session id set by NewSession, or "".
func SessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionKey).(string)
	return id
}

// Nonce returns the anti-forgery token sent with the request.
func Nonce(r *http.Request) string {
	if v := r.Header.Get(NonceHeader); v != "" {
		return v
	}
	return r.Header.Get(CSRFHeaderName)
}
