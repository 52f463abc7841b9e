// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CategoryStatus is the soft visibility flag of a category.
type CategoryStatus string

const (
	CategoryStatusPublished CategoryStatus = "published"
	CategoryStatusDraft     CategoryStatus = "draft"
)

// Valid reports whether s is a known status.
func (s CategoryStatus) Valid() bool {
	return s == CategoryStatusPublished || s == CategoryStatusDraft
}

// Category is a node of the product category tree. The tree is stored as a
// nested set: every descendant's [Left, Right] interval lies strictly inside
// its ancestor's interval, and Right = Left + 2*descendants + 1.
type Category struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	Status    CategoryStatus `json:"status"`
	ParentID  *uuid.UUID     `json:"parent_id"`
	Left      int            `json:"left"`
	Right     int            `json:"right"`
	Depth     int            `json:"depth"`
	Count     int            `json:"count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Virtual fields populated by the gateway.
	Meta     *Metadata   `json:"meta,omitempty"`
	Children []*Category `json:"children,omitempty"`
}

// Span returns the node's nested-set interval.
func (c *Category) Span() Span {
	return Span{Left: c.Left, Right: c.Right}
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// Descendants returns how many nodes live below this one.
func (c *Category) Descendants() int {
	return (c.Right - c.Left - 1) / 2
}

// Span is a closed nested-set interval [Left, Right].
type Span struct {
	Left  int
	Right int
}

// Width is the number of interval slots the span occupies.
func (s Span) Width() int {
	return s.Right - s.Left + 1
}

// Contains reports whether pos falls inside the span, bounds included.
func (s Span) Contains(pos int) bool {
	return pos >= s.Left && pos <= s.Right
}

// Encloses reports whether o is strictly nested inside s.
func (s Span) Encloses(o Span) bool {
	return o.Left > s.Left && o.Right < s.Right
}

// Metadata holds the descriptive attributes stored alongside a category.
type Metadata struct {
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url,omitempty"`
	Featured    bool              `json:"featured"`
	SortOrder   string            `json:"sort_order,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Well-known metadata keys.
const (
	MetaDescription = "description"
	MetaImageURL    = "image_url"
	MetaFeatured    = "featured"
	MetaSortOrder   = "sort_order"
)

// MetadataFromPairs builds Metadata from raw key/value rows.
func MetadataFromPairs(pairs map[string]string) Metadata {
	var m Metadata
	for k, v := range pairs {
		switch k {
		case MetaDescription:
			m.Description = v
		case MetaImageURL:
			m.ImageURL = v
		case MetaFeatured:
			m.Featured = v == "1" || v == "true"
		case MetaSortOrder:
			m.SortOrder = v
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = v
		}
	}
	return m
}

// DeletePolicy selects what happens to the children of a deleted category.
type DeletePolicy string

const (
	// DeletePromoteChildren reattaches the children to the deleted node's parent.
	DeletePromoteChildren DeletePolicy = "promote_children"
	// DeleteCascade removes the whole subtree.
	DeleteCascade DeletePolicy = "cascade"
)

// ParseDeletePolicy converts a string into a DeletePolicy.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch p := DeletePolicy(s); p {
	case DeletePromoteChildren, DeleteCascade:
		return p, nil
	}
	return "", fmt.Errorf("unknown delete policy %q", s)
}
