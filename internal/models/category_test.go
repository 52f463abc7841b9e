package models

import "testing"

// TestCategoryStatusValid verifies that only the two known statuses pass.
func TestCategoryStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status CategoryStatus
		want   bool
	}{
		{name: "published", status: CategoryStatusPublished, want: true},
		{name: "draft", status: CategoryStatusDraft, want: true},
		{name: "empty", status: CategoryStatus(""), want: false},
		{name: "trash is not a status", status: CategoryStatus("trash"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("CategoryStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestCategorySpanHelpers(t *testing.T) {
	c := &Category{Left: 2, Right: 9}

	if got := c.Descendants(); got != 3 {
		t.Errorf("Descendants: got %d, want 3", got)
	}
	if got := c.Span().Width(); got != 8 {
		t.Errorf("Width: got %d, want 8", got)
	}
	if !c.Span().Contains(2) || !c.Span().Contains(9) || c.Span().Contains(10) {
		t.Error("Contains should include both bounds only")
	}
	if !c.Span().Encloses(Span{Left: 3, Right: 4}) {
		t.Error("expected [3,4] to be enclosed by [2,9]")
	}
	if c.Span().Encloses(Span{Left: 2, Right: 4}) {
		t.Error("a span sharing a bound is not strictly enclosed")
	}
	if !c.IsRoot() {
		t.Error("category without parent should be a root")
	}
}

func TestMetadataFromPairs(t *testing.T) {
	m := MetadataFromPairs(map[string]string{
		MetaDescription: "Phones and tablets",
		MetaImageURL:    "https://cdn.example.com/a.png",
		MetaFeatured:    "1",
		MetaSortOrder:   "price",
		"color":         "blue",
	})

	if m.Description != "Phones and tablets" {
		t.Errorf("description: got %q", m.Description)
	}
	if !m.Featured {
		t.Error("featured should be true for \"1\"")
	}
	if m.SortOrder != "price" {
		t.Errorf("sort_order: got %q", m.SortOrder)
	}
	if m.Extra["color"] != "blue" {
		t.Errorf("extra color: got %q", m.Extra["color"])
	}
}

func TestParseDeletePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    DeletePolicy
		wantErr bool
	}{
		{in: "promote_children", want: DeletePromoteChildren},
		{in: "cascade", want: DeleteCascade},
		{in: "trash", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeletePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
