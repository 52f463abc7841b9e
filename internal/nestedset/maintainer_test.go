package nestedset_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showcase/internal/apperr"
	"showcase/internal/models"
	"showcase/internal/nestedset"
	"showcase/internal/store"
	"showcase/internal/store/storetest"
)

type bounds struct {
	Left, Right, Depth int
	Parent             string
}

func newMaintainer(t *testing.T) (*nestedset.Maintainer, *store.CategoryStore) {
	t.Helper()
	s, _ := storetest.SQLite(t)
	return nestedset.New(s, 0), s
}

func insert(t *testing.T, m *nestedset.Maintainer, slug string, parent *models.Category) *models.Category {
	t.Helper()
	n := nestedset.NewNode{Name: slug, Slug: slug}
	if parent != nil {
		n.ParentID = &parent.ID
	}
	res, err := m.Insert(context.Background(), n)
	require.NoError(t, err, "insert %s", slug)
	return res.Node
}

// snapshot maps slug to structural columns for the whole tree.
func snapshot(t *testing.T, s *store.CategoryStore) map[string]bounds {
	t.Helper()
	all, err := s.All(context.Background())
	require.NoError(t, err)

	slugs := make(map[uuid.UUID]string, len(all))
	for _, c := range all {
		slugs[c.ID] = c.Slug
	}
	out := make(map[string]bounds, len(all))
	for _, c := range all {
		b := bounds{Left: c.Left, Right: c.Right, Depth: c.Depth}
		if c.ParentID != nil {
			b.Parent = slugs[*c.ParentID]
		}
		out[c.Slug] = b
	}
	return out
}

func requireValid(t *testing.T, s *store.CategoryStore) []models.Category {
	t.Helper()
	all, err := s.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, nestedset.Verify(all))
	return all
}

// electronics builds Electronics > {Computers, Audio}.
func electronics(t *testing.T, m *nestedset.Maintainer) (root, computers, audio *models.Category) {
	t.Helper()
	root = insert(t, m, "electronics", nil)
	computers = insert(t, m, "computers", root)
	audio = insert(t, m, "audio", root)
	return root, computers, audio
}

func TestInsertBuildsNestedBounds(t *testing.T) {
	m, s := newMaintainer(t)

	root := insert(t, m, "electronics", nil)
	assert.Equal(t, bounds{Left: 1, Right: 2}, snapshot(t, s)["electronics"])
	assert.Equal(t, 0, root.Depth)

	insert(t, m, "computers", root)
	snap := snapshot(t, s)
	assert.Equal(t, bounds{Left: 1, Right: 4}, snap["electronics"])
	assert.Equal(t, bounds{Left: 2, Right: 3, Depth: 1, Parent: "electronics"}, snap["computers"])

	insert(t, m, "audio", root)
	snap = snapshot(t, s)
	assert.Equal(t, bounds{Left: 1, Right: 6}, snap["electronics"])
	assert.Equal(t, bounds{Left: 4, Right: 5, Depth: 1, Parent: "electronics"}, snap["audio"])

	insert(t, m, "garden", nil)
	assert.Equal(t, bounds{Left: 7, Right: 8}, snapshot(t, s)["garden"])

	requireValid(t, s)
}

func TestInsertRejectsDuplicateSlugAndMissingParent(t *testing.T) {
	m, s := newMaintainer(t)
	insert(t, m, "electronics", nil)

	_, err := m.Insert(context.Background(), nestedset.NewNode{Name: "Again", Slug: "electronics"})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	missing := uuid.New()
	_, err = m.Insert(context.Background(), nestedset.NewNode{Name: "Orphan", Slug: "orphan", ParentID: &missing})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	all := requireValid(t, s)
	assert.Len(t, all, 1)
}

func TestMoveSubtreeUnderSibling(t *testing.T) {
	m, s := newMaintainer(t)
	_, computers, audio := electronics(t, m)

	res, err := m.Move(context.Background(), computers.ID, &audio.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{computers.ID}, res.Affected)

	snap := snapshot(t, s)
	assert.Equal(t, bounds{Left: 1, Right: 6}, snap["electronics"])
	assert.Equal(t, bounds{Left: 2, Right: 5, Depth: 1, Parent: "electronics"}, snap["audio"])
	assert.Equal(t, bounds{Left: 3, Right: 4, Depth: 2, Parent: "audio"}, snap["computers"])
	assert.Equal(t, 2, res.Node.Depth)
	requireValid(t, s)
}

func TestMoveSubtreeRightAndLeft(t *testing.T) {
	m, s := newMaintainer(t)
	a := insert(t, m, "a", nil)
	a1 := insert(t, m, "a1", a)
	insert(t, m, "a1x", a1)
	insert(t, m, "a1y", a1)
	b := insert(t, m, "b", nil)
	b1 := insert(t, m, "b1", b)

	// Move a1 (with two children) to the right, under b1.
	res, err := m.Move(context.Background(), a1.ID, &b1.ID)
	require.NoError(t, err)
	assert.Len(t, res.Affected, 3)

	snap := snapshot(t, s)
	assert.Equal(t, bounds{Left: 1, Right: 2}, snap["a"])
	assert.Equal(t, bounds{Left: 3, Right: 12}, snap["b"])
	assert.Equal(t, bounds{Left: 4, Right: 11, Depth: 1, Parent: "b"}, snap["b1"])
	assert.Equal(t, bounds{Left: 5, Right: 10, Depth: 2, Parent: "b1"}, snap["a1"])
	assert.Equal(t, bounds{Left: 6, Right: 7, Depth: 3, Parent: "a1"}, snap["a1x"])
	requireValid(t, s)

	// And back to the left, under a.
	_, err = m.Move(context.Background(), a1.ID, &a.ID)
	require.NoError(t, err)

	snap = snapshot(t, s)
	assert.Equal(t, bounds{Left: 1, Right: 8}, snap["a"])
	assert.Equal(t, bounds{Left: 2, Right: 7, Depth: 1, Parent: "a"}, snap["a1"])
	assert.Equal(t, bounds{Left: 9, Right: 12}, snap["b"])
	requireValid(t, s)
}

func TestMoveToRoot(t *testing.T) {
	m, s := newMaintainer(t)
	_, computers, _ := electronics(t, m)
	insert(t, m, "laptops", computers)

	_, err := m.Move(context.Background(), computers.ID, nil)
	require.NoError(t, err)

	snap := snapshot(t, s)
	assert.Equal(t, bounds{Left: 1, Right: 4}, snap["electronics"])
	assert.Equal(t, bounds{Left: 5, Right: 8}, snap["computers"])
	assert.Equal(t, bounds{Left: 6, Right: 7, Depth: 1, Parent: "computers"}, snap["laptops"])
	requireValid(t, s)
}

func TestMoveToCurrentParentIsNoop(t *testing.T) {
	m, s := newMaintainer(t)
	root, computers, _ := electronics(t, m)
	garden := insert(t, m, "garden", nil)

	before := snapshot(t, s)

	res, err := m.Move(context.Background(), computers.ID, &root.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Affected)

	_, err = m.Move(context.Background(), garden.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, before, snapshot(t, s))
}

func TestMoveRejectsCycles(t *testing.T) {
	m, s := newMaintainer(t)
	root, computers, _ := electronics(t, m)
	laptops := insert(t, m, "laptops", computers)

	before := snapshot(t, s)

	tests := []struct {
		name   string
		node   uuid.UUID
		target uuid.UUID
	}{
		{"self", computers.ID, computers.ID},
		{"direct child", computers.ID, laptops.ID},
		{"deep descendant", root.ID, laptops.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target
			_, err := m.Move(context.Background(), tt.node, &target)
			assert.True(t, apperr.Is(err, apperr.KindCycle), "got %v", err)
			assert.Equal(t, before, snapshot(t, s))
		})
	}
}

func TestMoveMissingNodes(t *testing.T) {
	m, _ := newMaintainer(t)
	root, _, _ := electronics(t, m)

	missing := uuid.New()
	_, err := m.Move(context.Background(), missing, &root.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = m.Move(context.Background(), root.ID, &missing)
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.CodeParentMissed, e.Code)
}

func TestDeleteCascadeClosesGap(t *testing.T) {
	m, s := newMaintainer(t)
	root, _, _ := electronics(t, m)

	res, err := m.Delete(context.Background(), root.ID, models.DeleteCascade)
	require.NoError(t, err)
	assert.Len(t, res.Removed, 3)
	assert.Empty(t, snapshot(t, s))

	// The next root starts at 1 again: no gap left behind.
	insert(t, m, "garden", nil)
	assert.Equal(t, bounds{Left: 1, Right: 2}, snapshot(t, s)["garden"])
}

func TestDeleteCascadeKeepsFollowingSiblingsContiguous(t *testing.T) {
	m, s := newMaintainer(t)
	_, computers, _ := electronics(t, m)
	insert(t, m, "laptops", computers)
	insert(t, m, "garden", nil)

	_, err := m.Delete(context.Background(), computers.ID, models.DeleteCascade)
	require.NoError(t, err)

	snap := snapshot(t, s)
	assert.Equal(t, bounds{Left: 1, Right: 4}, snap["electronics"])
	assert.Equal(t, bounds{Left: 2, Right: 3, Depth: 1, Parent: "electronics"}, snap["audio"])
	assert.Equal(t, bounds{Left: 5, Right: 6}, snap["garden"])
	requireValid(t, s)
}

func TestDeletePromoteChildren(t *testing.T) {
	m, s := newMaintainer(t)
	root, computers, audio := electronics(t, m)
	laptops := insert(t, m, "laptops", computers)

	res, err := m.Delete(context.Background(), root.ID, models.DeletePromoteChildren)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{root.ID}, res.Removed)
	assert.ElementsMatch(t, []uuid.UUID{root.ID, computers.ID, laptops.ID, audio.ID}, res.Affected,
		"grandchildren shift too")
	assert.ElementsMatch(t, []uuid.UUID{computers.ID, audio.ID}, res.Promoted)

	snap := snapshot(t, s)
	assert.NotContains(t, snap, "electronics")
	assert.Equal(t, bounds{Left: 1, Right: 4}, snap["computers"])
	assert.Equal(t, bounds{Left: 2, Right: 3, Depth: 1, Parent: "computers"}, snap["laptops"])
	assert.Equal(t, bounds{Left: 5, Right: 6}, snap["audio"])
	requireValid(t, s)

	// Promoting under a non-root parent keeps the grandparent link.
	_, err = m.Delete(context.Background(), laptops.ID, models.DeletePromoteChildren)
	require.NoError(t, err)
	assert.Equal(t, bounds{Left: 1, Right: 2}, snapshot(t, s)["computers"])
	requireValid(t, s)
}

func TestDeleteRefusesCategoriesInUse(t *testing.T) {
	s, db := storetest.SQLite(t)
	m := nestedset.New(s, 0)
	ctx := context.Background()
	root, computers, _ := electronics(t, m)
	laptops := insert(t, m, "laptops", computers)
	_, err := db.ExecContext(ctx, `UPDATE categories SET count = 3 WHERE id = ?`, laptops.ID.String())
	require.NoError(t, err)
	before := snapshot(t, s)

	tests := []struct {
		name   string
		id     uuid.UUID
		policy models.DeletePolicy
	}{
		{"cascade over a used descendant", root.ID, models.DeleteCascade},
		{"cascade of the parent", computers.ID, models.DeleteCascade},
		{"promote the used node", laptops.ID, models.DeletePromoteChildren},
		{"cascade the used node", laptops.ID, models.DeleteCascade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Delete(ctx, tt.id, tt.policy)
			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, apperr.CodeInUse, e.Code)
			assert.Equal(t, 409, e.Status())
			assert.Equal(t, before, snapshot(t, s))
		})
	}

	// Promoting an unused parent leaves the used child in place.
	res, err := m.Delete(ctx, computers.ID, models.DeletePromoteChildren)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{laptops.ID}, res.Promoted)
	assert.Equal(t, "electronics", snapshot(t, s)["laptops"].Parent)
	requireValid(t, s)
}

func TestDeleteUnknownPolicyChangesNothing(t *testing.T) {
	m, s := newMaintainer(t)
	root, _, _ := electronics(t, m)
	before := snapshot(t, s)

	_, err := m.Delete(context.Background(), root.ID, models.DeletePolicy("trash"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, before, snapshot(t, s))
}

func TestUpdateFieldsMetaAndParent(t *testing.T) {
	m, s := newMaintainer(t)
	root, computers, audio := electronics(t, m)

	name := "Computing"
	slug := "computing"
	draft := models.CategoryStatusDraft
	res, err := m.Update(context.Background(), computers.ID, nestedset.Changes{
		Fields: store.FieldPatch{Name: &name, Slug: &slug, Status: &draft},
		Meta:   map[string]string{models.MetaDescription: "PCs and laptops"},
		Parent: &nestedset.ParentChange{ID: &audio.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Computing", res.Node.Name)
	assert.Equal(t, models.CategoryStatusDraft, res.Node.Status)
	assert.Equal(t, audio.ID, *res.Node.ParentID)
	assert.Equal(t, 2, res.Node.Depth)

	meta, err := s.FetchMeta(context.Background(), []uuid.UUID{computers.ID})
	require.NoError(t, err)
	assert.Equal(t, "PCs and laptops", meta[computers.ID].Description)
	requireValid(t, s)

	// Taking another node's slug fails and leaves the name untouched.
	taken := "audio"
	other := "Renamed"
	_, err = m.Update(context.Background(), root.ID, nestedset.Changes{
		Fields: store.FieldPatch{Name: &other, Slug: &taken},
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := s.FindByID(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, "electronics", got.Name)
}

func TestUpdateCycleRollsBackFieldChanges(t *testing.T) {
	m, s := newMaintainer(t)
	root, computers, _ := electronics(t, m)

	name := "Everything"
	_, err := m.Update(context.Background(), root.ID, nestedset.Changes{
		Fields: store.FieldPatch{Name: &name},
		Parent: &nestedset.ParentChange{ID: &computers.ID},
	})
	assert.True(t, apperr.Is(err, apperr.KindCycle))

	got, err := s.FindByID(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, "electronics", got.Name, "field update must roll back with the failed move")
}

func TestCancelledContextAppliesNothing(t *testing.T) {
	m, s := newMaintainer(t)
	root, _, _ := electronics(t, m)
	before := snapshot(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Insert(ctx, nestedset.NewNode{Name: "x", Slug: "x", ParentID: &root.ID})
	assert.Error(t, err)
	assert.Equal(t, before, snapshot(t, s))
}

func TestConcurrentMutationsKeepTreeValid(t *testing.T) {
	m, s := newMaintainer(t)
	root, computers, audio := electronics(t, m)
	parents := []*models.Category{root, computers, audio}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				p := parents[(w+i)%len(parents)]
				slug := fmt.Sprintf("w%d-n%d", w, i)
				if _, err := m.Insert(context.Background(), nestedset.NewNode{Name: slug, Slug: slug, ParentID: &p.ID}); err != nil {
					t.Errorf("insert %s: %v", slug, err)
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			target := &audio.ID
			if i%2 == 1 {
				target = &root.ID
			}
			if _, err := m.Move(context.Background(), computers.ID, target); err != nil {
				t.Errorf("move: %v", err)
			}
		}
	}()
	wg.Wait()

	all := requireValid(t, s)
	assert.Len(t, all, 43)
}

// TestRandomOperationsPreserveInvariants applies random insert, move and
// delete sequences and checks every invariant after each step.
func TestRandomOperationsPreserveInvariants(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			m, s := newMaintainer(t)
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			ctx := context.Background()

			pick := func(nodes []models.Category) *models.Category {
				if len(nodes) == 0 || rng.IntN(5) == 0 {
					return nil
				}
				n := nodes[rng.IntN(len(nodes))]
				return &n
			}

			for step := 0; step < 120; step++ {
				nodes, err := s.All(ctx)
				require.NoError(t, err)

				switch op := rng.IntN(10); {
				case op < 5 || len(nodes) < 2:
					slug := fmt.Sprintf("n-%d", step)
					n := nestedset.NewNode{Name: slug, Slug: slug}
					if p := pick(nodes); p != nil {
						n.ParentID = &p.ID
					}
					_, err = m.Insert(ctx, n)
					require.NoError(t, err, "step %d insert", step)

				case op < 8:
					node := nodes[rng.IntN(len(nodes))]
					target := pick(nodes)
					var targetID *uuid.UUID
					if target != nil {
						targetID = &target.ID
					}
					_, err = m.Move(ctx, node.ID, targetID)
					if target != nil && node.Span().Contains(target.Left) {
						require.True(t, apperr.Is(err, apperr.KindCycle), "step %d: expected cycle, got %v", step, err)
					} else {
						require.NoError(t, err, "step %d move", step)
					}

				default:
					node := nodes[rng.IntN(len(nodes))]
					policy := models.DeletePromoteChildren
					want := len(nodes) - 1
					if rng.IntN(2) == 0 {
						policy = models.DeleteCascade
						want = len(nodes) - 1 - node.Descendants()
					}
					_, err = m.Delete(ctx, node.ID, policy)
					require.NoError(t, err, "step %d delete", step)

					after, err := s.All(ctx)
					require.NoError(t, err)
					require.Len(t, after, want, "step %d delete %s", step, policy)
				}

				all, err := s.All(ctx)
				require.NoError(t, err)
				require.Empty(t, nestedset.Verify(all), "step %d", step)
			}
		})
	}
}

func TestRebuildRepairsCorruptedBounds(t *testing.T) {
	m, s := newMaintainer(t)
	_, computers, _ := electronics(t, m)
	insert(t, m, "laptops", computers)
	insert(t, m, "garden", nil)
	want := snapshot(t, s)

	// Simulate a partial shift that left the tree corrupted.
	require.NoError(t, s.SetBounds(context.Background(), computers.ID, 9, 40, 5))
	all, err := s.All(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, nestedset.Verify(all))

	fixed, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Positive(t, fixed)

	// Computers now sorts after audio because the corrupted lft is kept as
	// sibling order; structure and parent links are restored.
	all = requireValid(t, s)
	assert.Len(t, all, len(want))
	snap := snapshot(t, s)
	assert.Equal(t, "computers", snap["laptops"].Parent)
	assert.Equal(t, 2, snap["laptops"].Depth)

	// A valid tree needs no changes.
	fixed, err = m.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
