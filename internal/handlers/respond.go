// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"showcase/internal/apperr"
	"showcase/internal/gateway"
	"showcase/internal/ratelimit"
)

// envelope is the body of every successful API response.
type envelope struct {
	Data any               `json:"data"`
	Meta *gateway.PageInfo `json:"meta,omitempty"`
}

// errorBody is the body of every failed API response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any, page *gateway.PageInfo) {
	writeJSON(w, status, envelope{Data: data, Meta: page})
}

// writeError writes the error envelope for err. Rate-limit errors also get
// a Retry-After header.
func writeError(w http.ResponseWriter, err error) {
	e := apperr.From(err)
	body := errorBody{Error: errorDetail{Code: e.Code, Message: e.Message, Field: e.Field}}
	if e.Kind == apperr.KindRateLimit {
		secs := e.RetryAfterSeconds()
		body.Error.RetryAfter = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeJSON(w, e.Status(), body)
}

// setQuota advertises the caller's remaining budget. It writes nothing when
// the limiter was never consulted.
func setQuota(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}
