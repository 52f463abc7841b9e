// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"showcase/internal/database"
	"showcase/internal/models"
)

// treeLockKey is the advisory lock id taken by every structural
// transaction on PostgreSQL.
const treeLockKey int64 = 0x63617465676f7279 // "category"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CategoryStore manages categories and their metadata in the database.
// Structural columns (lft, rgt, depth, parent_id) must only be changed by
// the nested-set maintainer through the methods documented as such.
type CategoryStore struct {
	db      *sql.DB
	q       querier
	dialect database.Dialect
	inTx    bool
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB, dialect database.Dialect) *CategoryStore {
	return &CategoryStore{db: db, q: db, dialect: dialect}
}

// Dialect returns the SQL dialect the store speaks.
func (s *CategoryStore) Dialect() database.Dialect {
	return s.dialect
}

const categoryColumns = `id, name, slug, status, parent_id, lft, rgt, depth, count, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Status, &c.ParentID,
		&c.Left, &c.Right, &c.Depth, &c.Count, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *CategoryStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *CategoryStore) queryCategories(ctx context.Context, query string, args ...any) ([]models.Category, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// InTx runs fn inside a single transaction holding the tree write lock.
// fn receives a store bound to the transaction. Any error returned by fn,
// or a cancelled ctx, rolls back every statement issued through it.
func (s *CategoryStore) InTx(ctx context.Context, fn func(tx *CategoryStore) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	txStore := &CategoryStore{db: s.db, q: tx, dialect: s.dialect, inTx: true}

	// SQLite transactions are opened IMMEDIATE through the DSN, which
	// already serializes writers.
	if s.dialect == database.Postgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, treeLockKey); err != nil {
			return fmt.Errorf("lock tree: %w", err)
		}
	}

	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	row := s.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// FindBySlug retrieves a category by slug. Returns nil if not found.
func (s *CategoryStore) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	row := s.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE slug = ?`, slug)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return c, nil
}

// ListFilter narrows a List query. A nil ParentID with RootsOnly false
// lists the whole tree.
type ListFilter struct {
	ParentID  *uuid.UUID
	RootsOnly bool
	Status    models.CategoryStatus
	Search    string
	Limit     int
	Offset    int
}

// List returns categories ordered by lft (a pre-order walk of the tree),
// plus the total number of matches ignoring Limit/Offset.
func (s *CategoryStore) List(ctx context.Context, f ListFilter) ([]models.Category, int, error) {
	var where []string
	var args []any

	switch {
	case f.ParentID != nil:
		where = append(where, "parent_id = ?")
		args = append(args, *f.ParentID)
	case f.RootsOnly:
		where = append(where, "parent_id IS NULL")
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(slug) LIKE ?)")
		pattern := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM categories`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}

	query := `SELECT ` + categoryColumns + ` FROM categories` + clause + ` ORDER BY lft`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	items, err := s.queryCategories(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return items, total, nil
}

// All returns every category in pre-order.
func (s *CategoryStore) All(ctx context.Context) ([]models.Category, error) {
	items, err := s.queryCategories(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY lft`)
	if err != nil {
		return nil, fmt.Errorf("all categories: %w", err)
	}
	return items, nil
}

// Subtree returns every node strictly inside n's interval, in pre-order.
func (s *CategoryStore) Subtree(ctx context.Context, n *models.Category) ([]models.Category, error) {
	items, err := s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE lft > ? AND rgt < ? ORDER BY lft`,
		n.Left, n.Right)
	if err != nil {
		return nil, fmt.Errorf("subtree: %w", err)
	}
	return items, nil
}

// Ancestors returns every node whose interval encloses n's, root first.
func (s *CategoryStore) Ancestors(ctx context.Context, n *models.Category) ([]models.Category, error) {
	items, err := s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE lft < ? AND rgt > ? ORDER BY lft`,
		n.Left, n.Right)
	if err != nil {
		return nil, fmt.Errorf("ancestors: %w", err)
	}
	return items, nil
}

// MaxRight returns the largest rgt in the tree, or 0 when empty.
func (s *CategoryStore) MaxRight(ctx context.Context) (int, error) {
	var max sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(rgt) FROM categories`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max rgt: %w", err)
	}
	return int(max.Int64), nil
}

// MaxRightOutside returns the largest rgt among nodes outside span.
func (s *CategoryStore) MaxRightOutside(ctx context.Context, span models.Span) (int, error) {
	var max sql.NullInt64
	err := s.queryRow(ctx,
		`SELECT MAX(rgt) FROM categories WHERE lft < ? OR lft > ?`,
		span.Left, span.Right).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max rgt outside span: %w", err)
	}
	return int(max.Int64), nil
}

// Insert stores a new category row exactly as given. Bounds must already
// have been computed by the maintainer.
func (s *CategoryStore) Insert(ctx context.Context, c *models.Category) (*models.Category, error) {
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.exec(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.Status, c.ParentID,
		c.Left, c.Right, c.Depth, c.Count, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// FieldPatch holds the non-structural fields of an update. Nil fields are
// left unchanged.
type FieldPatch struct {
	Name   *string
	Slug   *string
	Status *models.CategoryStatus
}

// Empty reports whether the patch changes nothing.
func (p FieldPatch) Empty() bool {
	return p.Name == nil && p.Slug == nil && p.Status == nil
}

// UpdateFields applies a partial update of name/slug/status.
func (s *CategoryStore) UpdateFields(ctx context.Context, id uuid.UUID, p FieldPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Slug != nil {
		sets = append(sets, "slug = ?")
		args = append(args, *p.Slug)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	args = append(args, id)

	if _, err := s.exec(ctx, `UPDATE categories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// ShiftIntervals adds delta to every lft and rgt that is >= threshold in a
// single statement. Reserved for the nested-set maintainer.
func (s *CategoryStore) ShiftIntervals(ctx context.Context, threshold, delta int) error {
	_, err := s.exec(ctx, `
		UPDATE categories SET
			lft = CASE WHEN lft >= ? THEN lft + ? ELSE lft END,
			rgt = CASE WHEN rgt >= ? THEN rgt + ? ELSE rgt END
		WHERE rgt >= ?`,
		threshold, delta, threshold, delta, threshold,
	)
	if err != nil {
		return fmt.Errorf("shift intervals: %w", err)
	}
	return nil
}

// RelocateSpan moves the subtree occupying span so that it starts at dest,
// where dest is a position in the tree with the span already removed.
// Closing the old gap and opening the new one happen in one statement:
// every bound's new value is a function of its old value only, so the
// result does not depend on row update order. Depth of the moved rows is
// offset by depthDelta. Reserved for the nested-set maintainer.
func (s *CategoryStore) RelocateSpan(ctx context.Context, span models.Span, dest, depthDelta int) error {
	w := span.Width()
	offset := dest - span.Left

	// For a bound x outside the span: closed(x) = x - w when x > span.Right,
	// then opened(x) = closed(x) + w when closed(x) >= dest.
	bound := func(col string) (string, []any) {
		closed := fmt.Sprintf("(CASE WHEN %[1]s > ? THEN %[1]s - ? ELSE %[1]s END)", col)
		expr := fmt.Sprintf(`CASE
			WHEN lft >= ? AND rgt <= ? THEN %[1]s + ?
			ELSE %[2]s + (CASE WHEN %[2]s >= ? THEN ? ELSE 0 END)
		END`, col, closed)
		return expr, []any{span.Left, span.Right, offset, span.Right, w, span.Right, w, dest, w}
	}
	lftExpr, lftArgs := bound("lft")
	rgtExpr, rgtArgs := bound("rgt")

	args := append([]any{}, lftArgs...)
	args = append(args, rgtArgs...)
	args = append(args, span.Left, span.Right, depthDelta)

	_, err := s.exec(ctx, `
		UPDATE categories SET
			lft = `+lftExpr+`,
			rgt = `+rgtExpr+`,
			depth = CASE WHEN lft >= ? AND rgt <= ? THEN depth + ? ELSE depth END`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("relocate span: %w", err)
	}
	return nil
}

// SetParent rewrites parent_id. Reserved for the nested-set maintainer.
func (s *CategoryStore) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	_, err := s.exec(ctx, `UPDATE categories SET parent_id = ?, updated_at = ? WHERE id = ?`,
		parentID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	return nil
}

// SetBounds overwrites one node's structural columns. Used only when
// rebuilding the tree from parent links.
func (s *CategoryStore) SetBounds(ctx context.Context, id uuid.UUID, left, right, depth int) error {
	_, err := s.exec(ctx, `UPDATE categories SET lft = ?, rgt = ?, depth = ? WHERE id = ?`,
		left, right, depth, id)
	if err != nil {
		return fmt.Errorf("set bounds: %w", err)
	}
	return nil
}

// PromoteChildren removes node n and lifts its descendants one level:
// direct children are reattached to n's parent, everything inside n's
// interval shifts left by one and up one depth, and everything after it
// shifts left by two. Reserved for the nested-set maintainer.
func (s *CategoryStore) PromoteChildren(ctx context.Context, n *models.Category) error {
	if _, err := s.exec(ctx, `UPDATE categories SET parent_id = ?, updated_at = ? WHERE parent_id = ?`,
		n.ParentID, time.Now().UTC(), n.ID); err != nil {
		return fmt.Errorf("promote children: %w", err)
	}
	if err := s.deleteRows(ctx, []uuid.UUID{n.ID}); err != nil {
		return err
	}
	_, err := s.exec(ctx, `
		UPDATE categories SET
			lft = CASE WHEN lft > ? THEN lft - 2 WHEN lft > ? THEN lft - 1 ELSE lft END,
			rgt = CASE WHEN rgt > ? THEN rgt - 2 WHEN rgt > ? THEN rgt - 1 ELSE rgt END,
			depth = CASE WHEN lft > ? AND rgt < ? THEN depth - 1 ELSE depth END
		WHERE rgt > ?`,
		n.Right, n.Left, n.Right, n.Left, n.Left, n.Right, n.Left,
	)
	if err != nil {
		return fmt.Errorf("close promoted interval: %w", err)
	}
	return nil
}

// DeleteSpan removes every node inside [left, right] and returns their ids.
// It does not close the gap; the maintainer follows up with ShiftIntervals.
func (s *CategoryStore) DeleteSpan(ctx context.Context, span models.Span) ([]uuid.UUID, error) {
	rows, err := s.q.QueryContext(ctx,
		s.dialect.Rebind(`SELECT id FROM categories WHERE lft >= ? AND rgt <= ? ORDER BY lft`),
		span.Left, span.Right)
	if err != nil {
		return nil, fmt.Errorf("select span: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan span id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select span: %w", err)
	}

	if err := s.deleteRows(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// deleteRows removes categories and their metadata by id.
func (s *CategoryStore) deleteRows(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	if _, err := s.exec(ctx, `DELETE FROM category_meta WHERE category_id IN (`+in+`)`, args...); err != nil {
		return fmt.Errorf("delete category meta: %w", err)
	}
	if _, err := s.exec(ctx, `DELETE FROM categories WHERE id IN (`+in+`)`, args...); err != nil {
		return fmt.Errorf("delete categories: %w", err)
	}
	return nil
}

// inClause renders "?, ?, ?" for the ids along with their args.
func inClause(ids []uuid.UUID) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
