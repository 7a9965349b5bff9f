// Package macaroonx mints, serializes and verifies macaroon bearer tokens.
//
// A token is bound to a root key held by a Codec. Caveats can be appended by
// anyone holding a token but never removed, and every caveat must be satisfied
// by a Verifier for the token to be accepted.
package macaroonx

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
	"gopkg.in/macaroon.v2"
)

var (
	ErrMalformedToken     = errors.New("macaroonx: malformed token")
	ErrVerificationFailed = errors.New("macaroonx: verification failed")
	ErrEmptyKey           = errors.New("macaroonx: root key must not be empty")
)

// Token is an immutable macaroon. AddCaveat returns a new Token and leaves
// the receiver untouched.
type Token struct {
	m *macaroon.Macaroon
}

// Caveats returns the first-party caveat predicates in the order they were added.
func (t Token) Caveats() []string {
	if t.m == nil {
		return nil
	}
	cavs := t.m.Caveats()
	out := make([]string, 0, len(cavs))
	for _, c := range cavs {
		out = append(out, string(c.Id))
	}
	return out
}

func (t Token) Location() string {
	if t.m == nil {
		return ""
	}
	return t.m.Location()
}

func (t Token) ID() string {
	if t.m == nil {
		return ""
	}
	return string(t.m.Id())
}

// AddCaveat returns a copy of t with caveat appended.
func (t Token) AddCaveat(caveat string) (Token, error) {
	if t.m == nil {
		return Token{}, ErrMalformedToken
	}
	m := t.m.Clone()
	if err := m.AddFirstPartyCaveat([]byte(caveat)); err != nil {
		return Token{}, fmt.Errorf("add caveat: %w", err)
	}
	return Token{m: m}, nil
}

// Serialize encodes the token as unpadded base64url of its binary form.
func (t Token) Serialize() (string, error) {
	if t.m == nil {
		return "", ErrMalformedToken
	}
	b, err := t.m.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal macaroon: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Deserialize parses a token produced by Serialize. Padded input is accepted.
func Deserialize(s string) (Token, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return Token{}, ErrMalformedToken
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, ErrMalformedToken
	}
	var m macaroon.Macaroon
	if err := m.UnmarshalBinary(b); err != nil {
		return Token{}, ErrMalformedToken
	}
	return Token{m: &m}, nil
}

// Mint creates a token bound to key with the given caveats in order.
func Mint(location, keyID string, key []byte, caveats []string) (Token, error) {
	if len(key) == 0 {
		return Token{}, ErrEmptyKey
	}
	m, err := macaroon.New(key, []byte(keyID), location, macaroon.LatestVersion)
	if err != nil {
		return Token{}, fmt.Errorf("new macaroon: %w", err)
	}
	for _, c := range caveats {
		if err := m.AddFirstPartyCaveat([]byte(c)); err != nil {
			return Token{}, fmt.Errorf("add caveat: %w", err)
		}
	}
	return Token{m: m}, nil
}

// Codec mints and verifies tokens for a single root key. The key lives in a
// memguard enclave and is only decrypted for the duration of a mint or verify.
type Codec struct {
	location string
	keyID    string
	key      *memguard.Enclave
}

// NewCodec seals a copy of secret; the caller's slice is left intact.
func NewCodec(location, keyID string, secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyKey
	}
	buf := make([]byte, len(secret))
	copy(buf, secret)

	return &Codec{
		location: location,
		keyID:    keyID,
		key:      memguard.NewEnclave(buf),
	}, nil
}

func (c *Codec) Location() string { return c.location }

func (c *Codec) Mint(caveats ...string) (Token, error) {
	var tok Token
	err := c.withKey(func(key []byte) error {
		var err error
		tok, err = Mint(c.location, c.keyID, key, caveats)
		return err
	})
	return tok, err
}

// Verify checks tok against the codec's root key. See Verifier.Verify.
func (c *Codec) Verify(ctx context.Context, tok Token, v *Verifier, vctx Context) error {
	var verr error
	if err := c.withKey(func(key []byte) error {
		verr = v.Verify(ctx, tok, key, vctx)
		return nil
	}); err != nil {
		return ErrVerificationFailed
	}
	return verr
}

func (c *Codec) withKey(fn func(key []byte) error) error {
	lb, err := c.key.Open()
	if err != nil {
		return fmt.Errorf("open root key: %w", err)
	}
	defer lb.Destroy()
	return fn(lb.Bytes())
}
