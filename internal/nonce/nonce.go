// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package nonce issues and verifies stateless anti-forgery tokens bound to
// an action and a session. A token is a keyed BLAKE2b digest of the
// current tick, the action and the session id, so nothing is stored on
// the server. Ticks are half a lifetime long and tokens from the current
// or previous tick verify, which gives every token a validity between one
// half and one full lifetime.
package nonce

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// tokenBytes is the digest prefix kept in a token.
const tokenBytes = 12

// DefaultLifetime is used when New is given a zero lifetime.
const DefaultLifetime = 24 * time.Hour

// ErrInvalid is returned for a missing, malformed, expired or forged token.
var ErrInvalid = errors.New("invalid nonce")

// Issuer creates and verifies tokens with a server secret.
type Issuer struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

// New returns an Issuer keyed by secret.
func New(secret string, lifetime time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("nonce secret is empty")
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if lifetime < 2*time.Second {
		return nil, fmt.Errorf("nonce lifetime %s is too short", lifetime)
	}
	key := blake2b.Sum256([]byte(secret))
	return &Issuer{key: key[:], lifetime: lifetime, now: time.Now}, nil
}

// Create returns a token for action within session.
func (i *Issuer) Create(action, session string) string {
	return i.token(i.tick(), action, session)
}

// Verify checks token against action and session. Tokens issued in the
// current or the previous tick are accepted.
func (i *Issuer) Verify(token, action, session string) error {
	if token == "" || session == "" {
		return ErrInvalid
	}
	tick := i.tick()
	for _, t := range []int64{tick, tick - 1} {
		want := i.token(t, action, session)
		if subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1 {
			return nil
		}
	}
	return ErrInvalid
}

// Lifetime returns the configured token lifetime.
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

func (i *Issuer) tick() int64 {
	half := int64(i.lifetime / 2)
	return i.now().UnixNano()/half + 1
}

func (i *Issuer) token(tick int64, action, session string) string {
	h, _ := blake2b.New256(i.key)
	fmt.Fprintf(h, "%d|%s|%s", tick, action, session)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:tokenBytes])
}
