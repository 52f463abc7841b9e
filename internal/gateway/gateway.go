// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package gateway is the single entry point for reading and changing the
// category tree. Writes run nonce verification, the write budget, payload
// validation, the nested-set maintainer and cache invalidation, in that
// order. Reads run the read budget, the store and metadata hydration.
// Every failure comes back as an *apperr.Error; storage failures are
// logged here and reported without detail.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"showcase/internal/apperr"
	"showcase/internal/metacache"
	"showcase/internal/metrics"
	"showcase/internal/models"
	"showcase/internal/nestedset"
	"showcase/internal/nonce"
	"showcase/internal/ratelimit"
	"showcase/internal/slug"
	"showcase/internal/store"
)

// NonceAction is the action every write nonce is bound to.
const NonceAction = "wp_rest"

// Caller identifies who is making a request.
type Caller struct {
	// Client is the rate-limit key (session or address).
	Client string
	// Session is the session id the nonce is bound to.
	Session string
	// Nonce is the anti-forgery token sent with a write.
	Nonce string
}

// PageInfo describes one page of a listing.
type PageInfo struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// Result carries the data of an operation and the caller's rate-limit
// quota. Quota is filled in even when the operation fails, once the
// limiter has been consulted.
type Result[T any] struct {
	Data  T
	Page  *PageInfo
	Quota ratelimit.Decision
}

// Deleted describes a completed delete.
type Deleted struct {
	ID       uuid.UUID           `json:"id"`
	Policy   models.DeletePolicy `json:"policy"`
	Removed  []uuid.UUID         `json:"removed"`
	Promoted []uuid.UUID         `json:"promoted,omitempty"`
}

// Gateway coordinates the store, maintainer, cache, limiter and nonces.
type Gateway struct {
	store         *store.CategoryStore
	tree          *nestedset.Maintainer
	meta          *metacache.Cache
	limiter       *ratelimit.Limiter
	nonces        *nonce.Issuer
	validate      *validator.Validate
	defaultPolicy models.DeletePolicy
}

// New creates a Gateway. An empty defaultPolicy means promote_children.
func New(s *store.CategoryStore, tree *nestedset.Maintainer, meta *metacache.Cache,
	limiter *ratelimit.Limiter, nonces *nonce.Issuer, defaultPolicy models.DeletePolicy) *Gateway {
	if defaultPolicy == "" {
		defaultPolicy = models.DeletePromoteChildren
	}
	return &Gateway{
		store:         s,
		tree:          tree,
		meta:          meta,
		limiter:       limiter,
		nonces:        nonces,
		validate:      newValidator(),
		defaultPolicy: defaultPolicy,
	}
}

// IssueNonce returns a write token for session.
func (g *Gateway) IssueNonce(session string) string {
	return g.nonces.Create(NonceAction, session)
}

// List returns one page of categories in tree order with metadata.
func (g *Gateway) List(ctx context.Context, c Caller, q ListQuery) (Result[[]models.Category], error) {
	var res Result[[]models.Category]
	if err := g.admit(ctx, ratelimit.ClassRead, c, &res.Quota); err != nil {
		return res, err
	}
	if err := g.validate.Struct(q); err != nil {
		return res, validationError(err)
	}

	page := max(q.Page, 1)
	perPage := q.PerPage
	if perPage == 0 {
		perPage = DefaultPerPage
	}

	items, total, err := g.store.List(ctx, store.ListFilter{
		ParentID:  q.ParentID,
		RootsOnly: q.RootsOnly,
		Status:    q.Status,
		Search:    strings.TrimSpace(q.Search),
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
	})
	if err != nil {
		return res, g.fail("list", err)
	}
	if items == nil {
		items = []models.Category{}
	}
	if err := g.hydrate(ctx, pointers(items)...); err != nil {
		return res, g.fail("list", err)
	}

	res.Data = items
	res.Page = &PageInfo{
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return res, nil
}

// Get returns one category with metadata.
func (g *Gateway) Get(ctx context.Context, c Caller, id uuid.UUID) (Result[*models.Category], error) {
	var res Result[*models.Category]
	if err := g.admit(ctx, ratelimit.ClassRead, c, &res.Quota); err != nil {
		return res, err
	}
	node, err := g.find(ctx, id)
	if err != nil {
		return res, g.fail("get", err)
	}
	res.Data = node
	return res, nil
}

// GetBySlug returns one category by slug with metadata.
func (g *Gateway) GetBySlug(ctx context.Context, c Caller, s string) (Result[*models.Category], error) {
	var res Result[*models.Category]
	if err := g.admit(ctx, ratelimit.ClassRead, c, &res.Quota); err != nil {
		return res, err
	}
	node, err := g.store.FindBySlug(ctx, s)
	if err == nil && node == nil {
		err = apperr.NotFound("Category not found.")
	}
	if err == nil {
		err = g.hydrate(ctx, node)
	}
	if err != nil {
		return res, g.fail("get", err)
	}
	res.Data = node
	return res, nil
}

// Tree returns the forest of categories matching q with nested children
// and metadata. A node whose parent is filtered out hangs under its nearest
// matching ancestor, or becomes a root when it has none.
func (g *Gateway) Tree(ctx context.Context, c Caller, q TreeQuery) (Result[[]*models.Category], error) {
	var res Result[[]*models.Category]
	if err := g.admit(ctx, ratelimit.ClassRead, c, &res.Quota); err != nil {
		return res, err
	}
	if err := g.validate.Struct(q); err != nil {
		return res, validationError(err)
	}

	all, err := g.store.All(ctx)
	if err != nil {
		return res, g.fail("tree", err)
	}
	if q.Status != TreeStatusAll {
		want := models.CategoryStatus(q.Status)
		if want == "" {
			want = models.CategoryStatusPublished
		}
		all = slices.DeleteFunc(all, func(n models.Category) bool { return n.Status != want })
	}
	if err := g.hydrate(ctx, pointers(all)...); err != nil {
		return res, g.fail("tree", err)
	}
	res.Data = nestedset.BuildTree(all)
	if res.Data == nil {
		res.Data = []*models.Category{}
	}
	return res, nil
}

// Ancestors returns the path from the root down to id's parent.
func (g *Gateway) Ancestors(ctx context.Context, c Caller, id uuid.UUID) (Result[[]models.Category], error) {
	var res Result[[]models.Category]
	if err := g.admit(ctx, ratelimit.ClassRead, c, &res.Quota); err != nil {
		return res, err
	}
	node, err := g.store.FindByID(ctx, id)
	if err == nil && node == nil {
		err = apperr.NotFound("Category not found.")
	}
	var items []models.Category
	if err == nil {
		items, err = g.store.Ancestors(ctx, node)
	}
	if err == nil {
		err = g.hydrate(ctx, pointers(items)...)
	}
	if err != nil {
		return res, g.fail("ancestors", err)
	}
	if items == nil {
		items = []models.Category{}
	}
	res.Data = items
	return res, nil
}

// Create inserts a category as the last child of its parent or as a new
// root.
func (g *Gateway) Create(ctx context.Context, c Caller, in CreateInput) (Result[*models.Category], error) {
	var res Result[*models.Category]
	if err := g.admitWrite(ctx, c, &res.Quota); err != nil {
		return res, err
	}

	in.Name = strings.TrimSpace(in.Name)
	if err := g.validate.Struct(in); err != nil {
		return res, validationError(err)
	}
	s, ok := slug.Normalize(in.Slug, in.Name)
	if !ok {
		return res, apperr.Validation("slug", "Slug may only contain lowercase letters, digits, hyphens and underscores.")
	}

	start := time.Now()
	out, err := g.tree.Insert(ctx, nestedset.NewNode{
		Name:     in.Name,
		Slug:     s,
		Status:   in.Status,
		ParentID: in.ParentID,
		Meta:     in.metaValues(),
	})
	if err != nil {
		return res, g.failMutation("create", start, err)
	}
	return g.finish(ctx, "create", start, out, res)
}

// Update applies a partial update. Setting a new parent moves the whole
// subtree.
func (g *Gateway) Update(ctx context.Context, c Caller, id uuid.UUID, in UpdateInput) (Result[*models.Category], error) {
	var res Result[*models.Category]
	if err := g.admitWrite(ctx, c, &res.Quota); err != nil {
		return res, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return res, apperr.Validation("name", "Name is required.")
		}
		in.Name = &name
	}
	if err := g.validate.Struct(in); err != nil {
		return res, validationError(err)
	}
	if in.ImageURL != nil && *in.ImageURL != "" {
		if err := g.validate.Var(*in.ImageURL, "url"); err != nil {
			return res, apperr.Validation("image_url", "Image url must be a valid URL.")
		}
	}
	if in.Slug != nil {
		s := strings.TrimSpace(*in.Slug)
		if !slug.Valid(s) {
			return res, apperr.Validation("slug", "Slug may only contain lowercase letters, digits, hyphens and underscores.")
		}
		in.Slug = &s
	}

	ch := nestedset.Changes{
		Fields: store.FieldPatch{Name: in.Name, Slug: in.Slug, Status: in.Status},
		Meta:   in.metaValues(),
	}
	if in.ParentSet {
		ch.Parent = &nestedset.ParentChange{ID: in.ParentID}
	}

	start := time.Now()
	out, err := g.tree.Update(ctx, id, ch)
	if err != nil {
		return res, g.failMutation("update", start, err)
	}
	return g.finish(ctx, "update", start, out, res)
}

// Move reparents id under parentID, or to the root when parentID is nil.
func (g *Gateway) Move(ctx context.Context, c Caller, id uuid.UUID, parentID *uuid.UUID) (Result[*models.Category], error) {
	var res Result[*models.Category]
	if err := g.admitWrite(ctx, c, &res.Quota); err != nil {
		return res, err
	}

	start := time.Now()
	out, err := g.tree.Move(ctx, id, parentID)
	if err != nil {
		return res, g.failMutation("move", start, err)
	}
	return g.finish(ctx, "move", start, out, res)
}

// Delete removes id under policy. An empty policy uses the configured
// default.
func (g *Gateway) Delete(ctx context.Context, c Caller, id uuid.UUID, policy string) (Result[*Deleted], error) {
	var res Result[*Deleted]
	if err := g.admitWrite(ctx, c, &res.Quota); err != nil {
		return res, err
	}

	p := g.defaultPolicy
	if policy != "" {
		parsed, err := models.ParseDeletePolicy(policy)
		if err != nil {
			return res, apperr.Validation("policy", "Policy must be one of: promote_children, cascade.")
		}
		p = parsed
	}

	start := time.Now()
	out, err := g.tree.Delete(ctx, id, p)
	if err != nil {
		return res, g.failMutation("delete", start, err)
	}
	g.meta.Invalidate(out.Affected...)
	metrics.ObserveMutation("delete", "ok", time.Since(start))

	res.Data = &Deleted{ID: id, Policy: p, Removed: out.Removed, Promoted: out.Promoted}
	return res, nil
}

// admit consults the limiter for class and records the quota.
func (g *Gateway) admit(ctx context.Context, class ratelimit.Class, c Caller, quota *ratelimit.Decision) error {
	*quota = g.limiter.Allow(ctx, class, c.Client)
	return quota.Err()
}

// admitWrite verifies the nonce before spending write budget, so forged
// requests cannot exhaust a client's quota.
func (g *Gateway) admitWrite(ctx context.Context, c Caller, quota *ratelimit.Decision) error {
	if err := g.nonces.Verify(c.Nonce, NonceAction, c.Session); err != nil {
		slog.Warn("rejected write with invalid nonce", "client", c.Client)
		return apperr.Auth()
	}
	return g.admit(ctx, ratelimit.ClassWrite, c, quota)
}

// finish invalidates every id the mutation touched and returns the
// hydrated node.
func (g *Gateway) finish(ctx context.Context, op string, start time.Time, out *nestedset.Result, res Result[*models.Category]) (Result[*models.Category], error) {
	g.meta.Invalidate(out.Affected...)
	metrics.ObserveMutation(op, "ok", time.Since(start))

	// The mutation is committed; a metadata read failure only degrades the
	// response.
	if err := g.hydrate(ctx, out.Node); err != nil {
		slog.Warn("metadata hydration failed after mutation", "op", op, "id", out.Node.ID, "error", err)
	}
	res.Data = out.Node
	return res, nil
}

func (g *Gateway) find(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	node, err := g.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, apperr.NotFound("Category not found.")
	}
	if err := g.hydrate(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// hydrate attaches metadata to nodes with at most one batched fetch.
func (g *Gateway) hydrate(ctx context.Context, nodes ...*models.Category) error {
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	meta, err := g.meta.Resolve(ctx, ids)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		m := meta[n.ID]
		n.Meta = &m
	}
	return nil
}

func (g *Gateway) failMutation(op string, start time.Time, err error) error {
	e := g.fail(op, err)
	metrics.ObserveMutation(op, e.Code, time.Since(start))
	return e
}

// fail converts err to an *apperr.Error, logging storage failures with
// their full cause.
func (g *Gateway) fail(op string, err error) *apperr.Error {
	e := apperr.From(err)
	if e.Kind == apperr.KindStorage {
		attrs := []any{"op", op, "error", err}
		if errors.Is(err, context.DeadlineExceeded) {
			attrs = append(attrs, "timeout", true)
		}
		slog.Error("category operation failed", attrs...)
	}
	return e
}

func pointers(items []models.Category) []*models.Category {
	out := make([]*models.Category, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
