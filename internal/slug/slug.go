// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation and validation for
// category slugs.
package slug

import (
	"strings"

	gosimple "github.com/gosimple/slug"
)

// MaxLen is the longest slug accepted or generated.
const MaxLen = 200

// Generate creates a URL-friendly slug from the given string, transliterating
// non-ASCII letters and truncating to MaxLen.
// Example: "Café Résumé 2026" → "cafe-resume-2026"
func Generate(s string) string {
	result := gosimple.Make(strings.TrimSpace(s))
	if len(result) > MaxLen {
		result = strings.TrimRight(result[:MaxLen], "-_")
	}
	return result
}

// Valid reports whether s is already a well-formed slug.
func Valid(s string) bool {
	return s != "" && len(s) <= MaxLen && gosimple.IsSlug(s)
}

// Normalize returns the slug to store for a category: the explicit slug
// when given, otherwise one generated from name. ok is false when the
// explicit slug is malformed or nothing usable could be generated.
func Normalize(explicit, name string) (string, bool) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, Valid(explicit)
	}
	generated := Generate(name)
	return generated, generated != ""
}
