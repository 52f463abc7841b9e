// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"showcase/internal/apperr"
	"showcase/internal/gateway"
	"showcase/internal/middleware"
	"showcase/internal/models"
)

// maxBodyBytes caps a JSON request body.
const maxBodyBytes = 1 << 20

// callerFrom identifies the requester for the gateway.
func callerFrom(r *http.Request) gateway.Caller {
	return gateway.Caller{
		Client:  middleware.ClientKey(r),
		Session: middleware.SessionID(r),
		Nonce:   middleware.Nonce(r),
	}
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id", "Invalid category id.")
	}
	return id, nil
}

// decodeJSON reads a single JSON object from the body into dst, rejecting
// unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation("", "Request body is required.")
		case errors.As(err, &maxErr):
			return apperr.Validation("", "Request body is too large.")
		case errors.As(err, &typeErr):
			return apperr.Validation(typeErr.Field, fmt.Sprintf("%s has the wrong type.", typeErr.Field))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return apperr.Validation(field, fmt.Sprintf("Unknown field %q.", field))
		default:
			return apperr.Validation("", "Request body is not valid JSON.")
		}
	}
	if dec.More() {
		return apperr.Validation("", "Request body must hold a single JSON object.")
	}
	return nil
}

// parentField decodes an optional parent_id: absent leaves set false, null
// means the root, anything else must be a category id.
func parentField(raw json.RawMessage) (set bool, id *uuid.UUID, err error) {
	if len(raw) == 0 {
		return false, nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return true, nil, nil
	}
	var parsed uuid.UUID
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return false, nil, apperr.Validation("parent_id", "Parent id must be a category id or null.")
	}
	return true, &parsed, nil
}

// listQuery reads List filters from the query string. parent_id=0 or
// parent_id=root selects root categories.
func listQuery(r *http.Request) (gateway.ListQuery, error) {
	q := r.URL.Query()
	var out gateway.ListQuery

	switch p := q.Get("parent_id"); p {
	case "":
	case "0", "root":
		out.RootsOnly = true
	default:
		id, err := uuid.Parse(p)
		if err != nil {
			return out, apperr.Validation("parent_id", "Parent id must be a category id.")
		}
		out.ParentID = &id
	}

	out.Status = models.CategoryStatus(q.Get("status"))
	out.Search = q.Get("search")

	var err error
	if out.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return out, err
	}
	if out.PerPage, err = intParam(q.Get("per_page"), "per_page"); err != nil {
		return out, err
	}
	return out, nil
}

func intParam(v, field string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, apperr.Validation(field, fmt.Sprintf("%s must be a positive integer.", strings.ReplaceAll(field, "_", " ")))
	}
	return n, nil
}
