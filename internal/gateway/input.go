// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"showcase/internal/apperr"
	"showcase/internal/models"
)

// Pagination bounds for List.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	MaxPage        = 10000
)

// ListQuery filters and pages a category listing.
type ListQuery struct {
	ParentID  *uuid.UUID
	RootsOnly bool
	Status    models.CategoryStatus `json:"status" validate:"omitempty,oneof=published draft"`
	Search    string                `json:"search" validate:"max=200"`
	Page      int                   `json:"page" validate:"omitempty,min=1,max=10000"`
	PerPage   int                   `json:"per_page" validate:"omitempty,min=1,max=100"`
}

// TreeStatusAll selects every category for Tree regardless of status.
const TreeStatusAll = "all"

// TreeQuery selects which categories Tree returns. An empty Status means
// published only; TreeStatusAll includes drafts.
type TreeQuery struct {
	Status string `json:"status" validate:"omitempty,oneof=published draft all"`
}

// CreateInput is the payload for a new category.
type CreateInput struct {
	Name        string                `json:"name" validate:"required,max=200"`
	Slug        string                `json:"slug" validate:"max=200"`
	ParentID    *uuid.UUID            `json:"parent_id"`
	Status      models.CategoryStatus `json:"status" validate:"omitempty,oneof=published draft"`
	Description string                `json:"description" validate:"max=2000"`
	ImageURL    string                `json:"image_url" validate:"omitempty,url,max=2048"`
	Featured    bool                  `json:"featured"`
	SortOrder   string                `json:"sort_order" validate:"max=50"`
	Meta        map[string]string     `json:"meta" validate:"max=50,dive,keys,min=1,max=64,endkeys,max=2000"`
}

// UpdateInput is a partial update. Nil fields are left unchanged. When
// ParentSet is true the category moves under ParentID, or to the root
// when ParentID is nil.
type UpdateInput struct {
	Name        *string                `json:"name" validate:"omitnil,max=200"`
	Slug        *string                `json:"slug" validate:"omitnil,max=200"`
	Status      *models.CategoryStatus `json:"status" validate:"omitnil,oneof=published draft"`
	Description *string                `json:"description" validate:"omitnil,max=2000"`
	ImageURL    *string                `json:"image_url" validate:"omitnil,max=2048"`
	Featured    *bool                  `json:"featured"`
	SortOrder   *string                `json:"sort_order" validate:"omitnil,max=50"`
	Meta        map[string]string      `json:"meta" validate:"max=50,dive,keys,min=1,max=64,endkeys,max=2000"`

	ParentSet bool       `json:"-"`
	ParentID  *uuid.UUID `json:"-"`
}

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts the first validator failure into an apperr.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("", "Invalid request.")
	}
	fe := verrs[0]
	field := fe.Field()
	label := strings.ReplaceAll(field, "_", " ")
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required.", label)
	case "max":
		if fe.Kind() == reflect.Int {
			msg = fmt.Sprintf("%s must be at most %s.", label, fe.Param())
		} else {
			msg = fmt.Sprintf("%s is too long (max %s).", label, fe.Param())
		}
	case "min":
		msg = fmt.Sprintf("%s must be at least %s.", label, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		msg = fmt.Sprintf("%s must be a valid URL.", label)
	default:
		msg = fmt.Sprintf("%s is invalid.", label)
	}
	return apperr.Validation(field, msg)
}

// metaValues flattens the well-known fields and free-form keys of a create
// into stored key/value pairs. Empty values are omitted.
func (in CreateInput) metaValues() map[string]string {
	out := make(map[string]string, len(in.Meta)+4)
	for k, v := range in.Meta {
		if v != "" {
			out[k] = v
		}
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set(models.MetaDescription, strings.TrimSpace(in.Description))
	set(models.MetaImageURL, strings.TrimSpace(in.ImageURL))
	set(models.MetaSortOrder, strings.TrimSpace(in.SortOrder))
	if in.Featured {
		out[models.MetaFeatured] = "1"
	}
	return out
}

// metaValues returns the metadata keys an update touches. An empty value
// deletes the key.
func (in UpdateInput) metaValues() map[string]string {
	out := make(map[string]string, len(in.Meta)+4)
	for k, v := range in.Meta {
		out[k] = v
	}
	set := func(k string, v *string) {
		if v != nil {
			out[k] = strings.TrimSpace(*v)
		}
	}
	set(models.MetaDescription, in.Description)
	set(models.MetaImageURL, in.ImageURL)
	set(models.MetaSortOrder, in.SortOrder)
	if in.Featured != nil {
		out[models.MetaFeatured] = ""
		if *in.Featured {
			out[models.MetaFeatured] = "1"
		}
	}
	return out
}
