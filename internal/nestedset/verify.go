// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package nestedset

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"showcase/internal/models"
	"showcase/internal/store"
)

// Violation describes one broken tree invariant.
type Violation struct {
	ID     uuid.UUID
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.ID, v.Reason)
}

// Verify checks a full set of nodes against the nested-set invariants:
// left < right, intervals either disjoint or properly nested, parent_id and
// depth agreeing with interval containment, and bounds numbered 1..2n with
// no gaps or duplicates. It returns nil for a valid tree.
func Verify(nodes []models.Category) []Violation {
	var out []Violation

	sorted := make([]models.Category, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Left < sorted[j].Left })

	bounds := make([]int, 0, 2*len(sorted))
	var stack []*models.Category
	for i := range sorted {
		n := &sorted[i]
		bounds = append(bounds, n.Left, n.Right)

		if n.Left >= n.Right {
			out = append(out, Violation{n.ID, fmt.Sprintf("left %d is not below right %d", n.Left, n.Right)})
			continue
		}

		for len(stack) > 0 && stack[len(stack)-1].Right < n.Left {
			stack = stack[:len(stack)-1]
		}

		var parent *models.Category
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
			if n.Right > parent.Right {
				out = append(out, Violation{n.ID, fmt.Sprintf("interval [%d,%d] overlaps [%d,%d] of %s",
					n.Left, n.Right, parent.Left, parent.Right, parent.ID)})
				continue
			}
		}

		switch {
		case parent == nil && n.ParentID != nil:
			out = append(out, Violation{n.ID, "root-level interval has a parent_id"})
		case parent != nil && (n.ParentID == nil || *n.ParentID != parent.ID):
			out = append(out, Violation{n.ID, fmt.Sprintf("parent_id does not match enclosing node %s", parent.ID)})
		}
		if n.Depth != len(stack) {
			out = append(out, Violation{n.ID, fmt.Sprintf("depth %d, want %d", n.Depth, len(stack))})
		}

		stack = append(stack, n)
	}

	sort.Ints(bounds)
	for i, b := range bounds {
		if b != i+1 {
			out = append(out, Violation{Reason: fmt.Sprintf("bounds are not contiguous: position %d holds %d", i+1, b)})
			break
		}
	}
	return out
}

// BuildTree nests a pre-ordered (lft ascending) list of nodes into trees
// using a stack of open ancestors. Nodes whose ancestors are missing from
// the list become roots of the returned forest.
func BuildTree(nodes []models.Category) []*models.Category {
	var roots []*models.Category
	var stack []*models.Category

	for i := range nodes {
		n := nodes[i]
		n.Children = nil
		node := &n

		for len(stack) > 0 && stack[len(stack)-1].Right < node.Left {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, node)
		}
		stack = append(stack, node)
	}
	return roots
}

// Rebuild recomputes every node's bounds and depth from parent_id links,
// keeping the current sibling order. Nodes whose parent no longer exists
// become roots. It returns the number of rows it rewrote.
func (m *Maintainer) Rebuild(ctx context.Context) (int, error) {
	var fixed int
	err := m.run(ctx, func(ctx context.Context, tx *store.CategoryStore) error {
		nodes, err := tx.All(ctx)
		if err != nil {
			return err
		}

		byID := make(map[uuid.UUID]*models.Category, len(nodes))
		for i := range nodes {
			byID[nodes[i].ID] = &nodes[i]
		}

		children := make(map[uuid.UUID][]*models.Category)
		var roots []*models.Category
		for i := range nodes {
			n := &nodes[i]
			if n.ParentID != nil {
				if _, ok := byID[*n.ParentID]; ok && *n.ParentID != n.ID {
					children[*n.ParentID] = append(children[*n.ParentID], n)
					continue
				}
				if err := tx.SetParent(ctx, n.ID, nil); err != nil {
					return err
				}
				n.ParentID = nil
				fixed++
			}
			roots = append(roots, n)
		}

		counter := 0
		visited := make(map[uuid.UUID]bool, len(nodes))
		var walk func(n *models.Category, depth int) error
		walk = func(n *models.Category, depth int) error {
			visited[n.ID] = true
			counter++
			left := counter
			for _, c := range children[n.ID] {
				if err := walk(c, depth+1); err != nil {
					return err
				}
			}
			counter++
			if n.Left != left || n.Right != counter || n.Depth != depth {
				fixed++
				return tx.SetBounds(ctx, n.ID, left, counter, depth)
			}
			return nil
		}
		for _, r := range roots {
			if err := walk(r, 0); err != nil {
				return err
			}
		}

		// Nodes unreachable from a root sit on a parent cycle; cut them
		// loose as new roots.
		for i := range nodes {
			n := &nodes[i]
			if visited[n.ID] {
				continue
			}
			if err := tx.SetParent(ctx, n.ID, nil); err != nil {
				return err
			}
			children[*n.ParentID] = removeChild(children[*n.ParentID], n.ID)
			n.ParentID = nil
			fixed++
			if err := walk(n, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("category tree rebuilt", "rows_fixed", fixed)
	return fixed, nil
}

func removeChild(list []*models.Category, id uuid.UUID) []*models.Category {
	out := list[:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
