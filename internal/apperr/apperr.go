// Package apperr defines the error taxonomy returned by the category
// service. Expected failures (validation, not-found, cycles, auth, rate
// limits, conflicts) carry a stable machine-readable code; anything else is
// treated as a storage failure and reported without internal detail.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindNotFound
	KindCycle
	KindAuth
	KindRateLimit
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCycle:
		return "cycle"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindConflict:
		return "conflict"
	default:
		return "storage"
	}
}

// Stable error codes.
const (
	CodeValidation   = "validation_failed"
	CodeNotFound     = "not_found"
	CodeParentMissed = "parent_not_found"
	CodeCycle        = "cycle_detected"
	CodeInvalidNonce = "invalid_nonce"
	CodeRateLimited  = "rate_limit_exceeded"
	CodeSlugConflict = "slug_conflict"
	CodeInUse        = "category_in_use"
	CodeServer       = "server_error"
)

// Error is the structured error surfaced at the gateway boundary.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string

	// Rate-limit details, set only for KindRateLimit.
	RetryAfter time.Duration
	Limit      int
	ResetAt    time.Time

	// Err is the underlying cause. It is never shown to callers.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindCycle:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1.
func (e *Error) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Validation reports bad input on a field.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Field: field, Message: msg}
}

// NotFound reports a missing category.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: msg}
}

// ParentNotFound reports a parent_id that references nothing.
func ParentNotFound() *Error {
	return &Error{Kind: KindNotFound, Code: CodeParentMissed, Field: "parent_id", Message: "Parent category not found."}
}

// Cycle reports a move that would make a node its own ancestor.
func Cycle() *Error {
	return &Error{Kind: KindCycle, Code: CodeCycle, Field: "parent_id", Message: "A category cannot be moved under itself or one of its descendants."}
}

// Auth reports a missing or invalid anti-forgery token.
func Auth() *Error {
	return &Error{Kind: KindAuth, Code: CodeInvalidNonce, Message: "Invalid nonce. Please refresh the page and try again."}
}

// RateLimited reports an exhausted request budget.
func RateLimited(limit int, retryAfter time.Duration, resetAt time.Time) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Code:       CodeRateLimited,
		Message:    "Too many requests. Please try again later.",
		Limit:      limit,
		RetryAfter: retryAfter,
		ResetAt:    resetAt,
	}
}

// SlugConflict reports a slug already taken by another category.
func SlugConflict(slug string) *Error {
	return &Error{Kind: KindConflict, Code: CodeSlugConflict, Field: "slug", Message: fmt.Sprintf("Category with slug %q already exists.", slug)}
}

// InUse reports a category that still has items assigned to it.
func InUse(name string, count int) *Error {
	return &Error{Kind: KindConflict, Code: CodeInUse, Message: fmt.Sprintf("Category %q still has %d item(s) assigned.", name, count)}
}

// Storage wraps a backing-store failure.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Code: CodeServer, Message: "An unexpected error occurred.", Err: err}
}

// From returns err as an *Error, wrapping unknown errors as storage failures.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage(err)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
