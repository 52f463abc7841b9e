// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package nestedset maintains the category tree's nested-set encoding.
// The Maintainer is the only component that changes lft, rgt, depth or
// parent_id. Every operation runs in one store transaction under the tree
// lock, so readers never observe a half-shifted tree and concurrent
// mutations are serialized.
package nestedset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"showcase/internal/apperr"
	"showcase/internal/models"
	"showcase/internal/store"
)

// DefaultTimeout bounds a single structural mutation.
const DefaultTimeout = 5 * time.Second

// Maintainer applies insert, move, update and delete to the tree.
type Maintainer struct {
	store   *store.CategoryStore
	timeout time.Duration

	// mu keeps at most one structural mutation in flight per process; the
	// store's transaction lock extends that across processes.
	mu sync.Mutex
}

// New creates a Maintainer. A zero timeout uses DefaultTimeout.
func New(s *store.CategoryStore, timeout time.Duration) *Maintainer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Maintainer{store: s, timeout: timeout}
}

// NewNode describes a category to insert.
type NewNode struct {
	Name     string
	Slug     string
	Status   models.CategoryStatus
	ParentID *uuid.UUID
	Meta     map[string]string
}

// Changes describes an update. Parent is nil when the parent is not being
// changed; a non-nil Parent whose ID is nil moves the node to the root.
type Changes struct {
	Fields store.FieldPatch
	Meta   map[string]string
	Parent *ParentChange
}

// ParentChange requests a reparent.
type ParentChange struct {
	ID *uuid.UUID
}

// Result is the outcome of a mutation: the node it was applied to and every
// id whose row was rewritten or removed. Promoted lists the direct children
// a promote_children delete moved up a level.
type Result struct {
	Node     *models.Category
	Affected []uuid.UUID
	Removed  []uuid.UUID
	Promoted []uuid.UUID
}

// run executes fn in a locked transaction bounded by the mutation timeout.
func (m *Maintainer) run(ctx context.Context, fn func(ctx context.Context, tx *store.CategoryStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	return m.store.InTx(ctx, func(tx *store.CategoryStore) error {
		return fn(ctx, tx)
	})
}

// Insert adds a category as the last child of its parent, or as the
// rightmost root when ParentID is nil.
func (m *Maintainer) Insert(ctx context.Context, n NewNode) (*Result, error) {
	var res Result
	err := m.run(ctx, func(ctx context.Context, tx *store.CategoryStore) error {
		if err := ensureSlugFree(ctx, tx, n.Slug, uuid.Nil); err != nil {
			return err
		}

		var at, depth int
		if n.ParentID != nil {
			parent, err := tx.FindByID(ctx, *n.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return apperr.ParentNotFound()
			}
			at, depth = parent.Right, parent.Depth+1
		} else {
			maxRight, err := tx.MaxRight(ctx)
			if err != nil {
				return err
			}
			at = maxRight + 1
		}

		if err := tx.ShiftIntervals(ctx, at, 2); err != nil {
			return err
		}

		status := n.Status
		if status == "" {
			status = models.CategoryStatusPublished
		}
		created, err := tx.Insert(ctx, &models.Category{
			Name:     n.Name,
			Slug:     n.Slug,
			Status:   status,
			ParentID: n.ParentID,
			Left:     at,
			Right:    at + 1,
			Depth:    depth,
		})
		if err != nil {
			return err
		}
		if err := tx.UpsertMeta(ctx, created.ID, n.Meta); err != nil {
			return err
		}

		res.Node = created
		res.Affected = []uuid.UUID{created.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("category inserted", "id", res.Node.ID, "slug", res.Node.Slug, "left", res.Node.Left, "depth", res.Node.Depth)
	return &res, nil
}

// Move reparents the subtree rooted at id so it becomes the last child of
// newParent, or the rightmost root when newParent is nil. Moving a node to
// its current parent is a no-op.
func (m *Maintainer) Move(ctx context.Context, id uuid.UUID, newParent *uuid.UUID) (*Result, error) {
	var res Result
	err := m.run(ctx, func(ctx context.Context, tx *store.CategoryStore) error {
		node, err := mustFind(ctx, tx, id)
		if err != nil {
			return err
		}
		affected, err := move(ctx, tx, node, newParent)
		if err != nil {
			return err
		}
		if res.Node, err = mustFind(ctx, tx, id); err != nil {
			return err
		}
		res.Affected = affected
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res.Affected) > 0 {
		slog.Info("category moved", "id", id, "parent_id", newParent, "subtree", len(res.Affected))
	}
	return &res, nil
}

// Update applies field, metadata and parent changes in one transaction.
func (m *Maintainer) Update(ctx context.Context, id uuid.UUID, ch Changes) (*Result, error) {
	var res Result
	err := m.run(ctx, func(ctx context.Context, tx *store.CategoryStore) error {
		node, err := mustFind(ctx, tx, id)
		if err != nil {
			return err
		}

		if ch.Fields.Slug != nil && *ch.Fields.Slug != node.Slug {
			if err := ensureSlugFree(ctx, tx, *ch.Fields.Slug, node.ID); err != nil {
				return err
			}
		}
		if !ch.Fields.Empty() || len(ch.Meta) > 0 {
			if err := tx.UpdateFields(ctx, id, ch.Fields); err != nil {
				return err
			}
		}
		if err := tx.UpsertMeta(ctx, id, ch.Meta); err != nil {
			return err
		}

		affected := []uuid.UUID{id}
		if ch.Parent != nil {
			moved, err := move(ctx, tx, node, ch.Parent.ID)
			if err != nil {
				return err
			}
			affected = mergeIDs(affected, moved)
		}

		if res.Node, err = mustFind(ctx, tx, id); err != nil {
			return err
		}
		res.Affected = affected
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("category updated", "id", id, "affected", len(res.Affected))
	return &res, nil
}

// Delete removes a category. With DeletePromoteChildren its children take
// its place under its parent; with DeleteCascade the whole subtree goes.
// Either way the freed interval space is closed in the same transaction.
// A category that still has items assigned cannot be removed.
func (m *Maintainer) Delete(ctx context.Context, id uuid.UUID, policy models.DeletePolicy) (*Result, error) {
	var res Result
	err := m.run(ctx, func(ctx context.Context, tx *store.CategoryStore) error {
		node, err := mustFind(ctx, tx, id)
		if err != nil {
			return err
		}
		res.Node = node
		if node.Count > 0 {
			return apperr.InUse(node.Name, node.Count)
		}

		subtree, err := tx.Subtree(ctx, node)
		if err != nil {
			return err
		}

		switch policy {
		case models.DeleteCascade:
			for _, d := range subtree {
				if d.Count > 0 {
					return apperr.InUse(d.Name, d.Count)
				}
			}
			removed, err := tx.DeleteSpan(ctx, node.Span())
			if err != nil {
				return err
			}
			if err := tx.ShiftIntervals(ctx, node.Right+1, -node.Span().Width()); err != nil {
				return err
			}
			res.Removed = removed
			res.Affected = removed
		case models.DeletePromoteChildren:
			if err := tx.PromoteChildren(ctx, node); err != nil {
				return err
			}
			res.Removed = []uuid.UUID{node.ID}
			// Every descendant's bounds and depth shift.
			res.Affected = []uuid.UUID{node.ID}
			for _, d := range subtree {
				res.Affected = append(res.Affected, d.ID)
				if d.Depth == node.Depth+1 {
					res.Promoted = append(res.Promoted, d.ID)
				}
			}
		default:
			return apperr.Validation("policy", fmt.Sprintf("Unknown delete policy %q.", policy))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("category deleted", "id", id, "policy", string(policy), "removed", len(res.Removed))
	return &res, nil
}

// move performs the structural part of a reparent inside tx and returns
// the ids of the moved subtree. It returns nil ids for a no-op.
func move(ctx context.Context, tx *store.CategoryStore, node *models.Category, newParent *uuid.UUID) ([]uuid.UUID, error) {
	if sameParent(node.ParentID, newParent) {
		return nil, nil
	}

	span := node.Span()

	var dest, depthDelta int
	if newParent != nil {
		parent, err := tx.FindByID(ctx, *newParent)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, apperr.ParentNotFound()
		}
		if span.Contains(parent.Left) {
			return nil, apperr.Cycle()
		}
		dest = closedPosition(parent.Right, span)
		depthDelta = parent.Depth + 1 - node.Depth
	} else {
		maxRight, err := tx.MaxRightOutside(ctx, span)
		if err != nil {
			return nil, err
		}
		dest = closedPosition(maxRight, span) + 1
		depthDelta = -node.Depth
	}

	subtree, err := tx.Subtree(ctx, node)
	if err != nil {
		return nil, err
	}

	if dest != span.Left || depthDelta != 0 {
		if err := tx.RelocateSpan(ctx, span, dest, depthDelta); err != nil {
			return nil, err
		}
	}
	if err := tx.SetParent(ctx, node.ID, newParent); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(subtree)+1)
	ids = append(ids, node.ID)
	for _, c := range subtree {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// closedPosition maps a bound outside span to its value once span has
// been cut out of the tree.
func closedPosition(pos int, span models.Span) int {
	if pos > span.Right {
		return pos - span.Width()
	}
	return pos
}

func mustFind(ctx context.Context, tx *store.CategoryStore, id uuid.UUID) (*models.Category, error) {
	node, err := tx.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, apperr.NotFound("Category not found.")
	}
	return node, nil
}

// ensureSlugFree returns a conflict error if slug belongs to a category
// other than self.
func ensureSlugFree(ctx context.Context, tx *store.CategoryStore, slug string, self uuid.UUID) error {
	existing, err := tx.FindBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return apperr.SlugConflict(slug)
	}
	return nil
}

// sameParent compares two optional parent ids.
func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func mergeIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, list := range [][]uuid.UUID{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
