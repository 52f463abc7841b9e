package nonce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T, lifetime time.Duration) (*Issuer, *time.Time) {
	t.Helper()
	i, err := New("test-secret", lifetime)
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	i.now = func() time.Time { return now }
	return i, &now
}

func TestCreateVerify(t *testing.T) {
	i, _ := newIssuer(t, time.Hour)

	tok := i.Create("wp_rest", "session-1")
	assert.Len(t, tok, 2*tokenBytes)
	assert.NoError(t, i.Verify(tok, "wp_rest", "session-1"))

	tests := []struct {
		name, token, action, session string
	}{
		{"empty token", "", "wp_rest", "session-1"},
		{"no session", tok, "wp_rest", ""},
		{"other session", tok, "wp_rest", "session-2"},
		{"other action", tok, "delete", "session-1"},
		{"tampered", "0" + tok[1:], "wp_rest", "session-1"},
		{"truncated", tok[:10], "wp_rest", "session-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "tampered" && tok[0] == '0' {
				tt.token = "1" + tok[1:]
			}
			assert.ErrorIs(t, i.Verify(tt.token, tt.action, tt.session), ErrInvalid)
		})
	}
}

func TestTokensExpireAfterTwoTicks(t *testing.T) {
	i, now := newIssuer(t, time.Hour)
	tok := i.Create("wp_rest", "s")

	*now = now.Add(30 * time.Minute)
	assert.NoError(t, i.Verify(tok, "wp_rest", "s"), "previous tick still valid")

	*now = now.Add(30 * time.Minute)
	assert.ErrorIs(t, i.Verify(tok, "wp_rest", "s"), ErrInvalid)
}

func TestDifferentSecretsDisagree(t *testing.T) {
	a, _ := newIssuer(t, time.Hour)
	b, err := New("another-secret", time.Hour)
	require.NoError(t, err)
	b.now = a.now

	assert.ErrorIs(t, b.Verify(a.Create("x", "s"), "x", "s"), ErrInvalid)
}

func TestNewValidation(t *testing.T) {
	_, err := New("", time.Hour)
	assert.Error(t, err)

	_, err = New("s", time.Second)
	assert.Error(t, err)

	i, err := New("s", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLifetime, i.Lifetime())
}
