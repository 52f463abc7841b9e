// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"showcase/internal/models"
)

// UpsertMeta writes key/value metadata for a category. Empty values delete
// the key.
func (s *CategoryStore) UpsertMeta(ctx context.Context, id uuid.UUID, values map[string]string) error {
	for k, v := range values {
		if v == "" {
			if _, err := s.exec(ctx, `DELETE FROM category_meta WHERE category_id = ? AND meta_key = ?`, id, k); err != nil {
				return fmt.Errorf("delete meta %s: %w", k, err)
			}
			continue
		}
		_, err := s.exec(ctx, `
			INSERT INTO category_meta (category_id, meta_key, meta_value)
			VALUES (?, ?, ?)
			ON CONFLICT (category_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
			id, k, v)
		if err != nil {
			return fmt.Errorf("upsert meta %s: %w", k, err)
		}
	}
	return nil
}

// FetchMeta loads metadata for all ids with a single query. Ids without
// any metadata rows are present in the result with zero Metadata.
func (s *CategoryStore) FetchMeta(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Metadata, error) {
	result := make(map[uuid.UUID]models.Metadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	in, args := inClause(ids)
	rows, err := s.q.QueryContext(ctx,
		s.dialect.Rebind(`SELECT category_id, meta_key, meta_value FROM category_meta WHERE category_id IN (`+in+`)`),
		args...)
	if err != nil {
		return nil, fmt.Errorf("fetch meta: %w", err)
	}
	defer rows.Close()

	pairs := make(map[uuid.UUID]map[string]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var key, value string
		if err := rows.Scan(&id, &key, &value); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		if pairs[id] == nil {
			pairs[id] = make(map[string]string)
		}
		pairs[id][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch meta: %w", err)
	}

	for _, id := range ids {
		result[id] = models.MetadataFromPairs(pairs[id])
	}
	return result, nil
}
