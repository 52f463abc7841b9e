// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers exposes the category gateway as a JSON REST API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"showcase/internal/apperr"
	"showcase/internal/gateway"
	"showcase/internal/middleware"
)

// Categories groups the category API handlers.
type Categories struct {
	gw *gateway.Gateway
}

// NewCategories creates the category handler group.
func NewCategories(gw *gateway.Gateway) *Categories {
	return &Categories{gw: gw}
}

// updateRequest is the PATCH body. parent_id is decoded separately so an
// explicit null (move to root) differs from an absent key.
type updateRequest struct {
	gateway.UpdateInput
	ParentID json.RawMessage `json:"parent_id"`
}

// moveRequest is the body of POST /{id}/move. parent_id is required; null
// moves the category to the root.
type moveRequest struct {
	ParentID json.RawMessage `json:"parent_id"`
}

// Nonce issues a write nonce bound to the caller's session.
func (c *Categories) Nonce(w http.ResponseWriter, r *http.Request) {
	token := c.gw.IssueNonce(middleware.SessionID(r))
	w.Header().Set(middleware.NonceHeader, token)
	writeData(w, http.StatusOK, map[string]string{"nonce": token}, nil)
}

// List returns one page of categories.
func (c *Categories) List(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := c.gw.List(r.Context(), callerFrom(r), q)
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, res.Page)
}

// Tree returns the category forest with nested children. Only published
// categories are included unless ?status=draft or ?status=all is given.
func (c *Categories) Tree(w http.ResponseWriter, r *http.Request) {
	q := gateway.TreeQuery{Status: r.URL.Query().Get("status")}
	res, err := c.gw.Tree(r.Context(), callerFrom(r), q)
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, nil)
}

// Get returns one category.
func (c *Categories) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := c.gw.Get(r.Context(), callerFrom(r), id)
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, nil)
}

// GetBySlug returns one category looked up by slug.
func (c *Categories) GetBySlug(w http.ResponseWriter, r *http.Request) {
	res, err := c.gw.GetBySlug(r.Context(), callerFrom(r), chi.URLParam(r, "slug"))
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, nil)
}

// Ancestors returns the path from the root to the category's parent.
func (c *Categories) Ancestors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := c.gw.Ancestors(r.Context(), callerFrom(r), id)
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, nil)
}

// Create adds a category and answers 201 with its location.
func (c *Categories) Create(w http.ResponseWriter, r *http.Request) {
	var in gateway.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := c.gw.Create(r.Context(), callerFrom(r), in)
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/categories/"+res.Data.ID.String())
	writeData(w, http.StatusCreated, res.Data, nil)
}

// Update applies a partial update. A parent_id in the body moves the
// category with its subtree.
func (c *Categories) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := req.UpdateInput
	if in.ParentSet, in.ParentID, err = parentField(req.ParentID); err != nil {
		writeError(w, err)
		return
	}

	res, err := c.gw.Update(r.Context(), callerFrom(r), id, in)
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, nil)
}

// Move reparents a category with its subtree.
func (c *Categories) Move(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	set, parent, err := parentField(req.ParentID)
	if err == nil && !set {
		err = apperr.Validation("parent_id", "Parent id is required; use null to move to the root.")
	}
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := c.gw.Move(r.Context(), callerFrom(r), id, parent)
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, nil)
}

// Delete removes a category. The policy query parameter selects
// promote_children or cascade.
func (c *Categories) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := c.gw.Delete(r.Context(), callerFrom(r), id, r.URL.Query().Get("policy"))
	setQuota(w, res.Quota)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res.Data, nil)
}
