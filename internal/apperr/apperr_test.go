package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", Validation("name", "Name is required."), http.StatusBadRequest},
		{"cycle", Cycle(), http.StatusBadRequest},
		{"not found", NotFound("Category not found."), http.StatusNotFound},
		{"parent not found", ParentNotFound(), http.StatusNotFound},
		{"auth", Auth(), http.StatusForbidden},
		{"rate limit", RateLimited(20, time.Second, time.Now()), http.StatusTooManyRequests},
		{"conflict", SlugConflict("audio"), http.StatusConflict},
		{"storage", Storage(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Status())
		})
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	assert.Nil(t, From(nil))

	cause := errors.New("pq: relation categories does not exist")
	e := From(fmt.Errorf("list categories: %w", cause))
	require.NotNil(t, e)
	assert.Equal(t, KindStorage, e.Kind)
	assert.Equal(t, CodeServer, e.Code)
	assert.NotContains(t, e.Message, "relation")
	assert.ErrorIs(t, e, cause)
}

func TestFromKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("move: %w", Cycle())
	e := From(wrapped)
	assert.Equal(t, KindCycle, e.Kind)
	assert.True(t, Is(wrapped, KindCycle))
	assert.False(t, Is(wrapped, KindNotFound))
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{42 * time.Second, 42},
	}
	for _, tt := range tests {
		e := RateLimited(1, tt.in, time.Time{})
		assert.Equal(t, tt.want, e.RetryAfterSeconds(), "retry after %v", tt.in)
	}
}
