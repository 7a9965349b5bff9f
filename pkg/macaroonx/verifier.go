package macaroonx

import (
	"context"
	"time"
)

// Context is the explicit state a verification runs against. Predicates read
// it instead of capturing request state in closures.
type Context struct {
	Now           time.Time
	UserID        string
	TransactionID string
}

// Predicate reports whether it accepts a caveat. Predicates may have side
// effects (binding a nonce, for example) and are consulted in registration
// order until one accepts.
type Predicate func(ctx context.Context, vctx Context, caveat string) bool

// Verifier holds the caveats a token must satisfy. The zero value accepts
// only caveat-free tokens.
type Verifier struct {
	exact   map[string]struct{}
	general []Predicate
}

func NewVerifier() *Verifier {
	return &Verifier{exact: make(map[string]struct{})}
}

// SatisfyExact accepts caveats equal to caveat.
func (v *Verifier) SatisfyExact(caveat string) *Verifier {
	if v.exact == nil {
		v.exact = make(map[string]struct{})
	}
	v.exact[caveat] = struct{}{}
	return v
}

// SatisfyGeneral registers a predicate for caveats not matched exactly.
func (v *Verifier) SatisfyGeneral(p Predicate) *Verifier {
	v.general = append(v.general, p)
	return v
}

// Verify checks the token signature against key, then walks its caveats in
// order. Every caveat must match exactly or be accepted by a predicate. All
// failures, including a malformed token, collapse to ErrVerificationFailed.
func (v *Verifier) Verify(ctx context.Context, tok Token, key []byte, vctx Context) error {
	if tok.m == nil || len(key) == 0 {
		return ErrVerificationFailed
	}

	conditions, err := tok.m.VerifySignature(key, nil)
	if err != nil {
		return ErrVerificationFailed
	}

	for _, c := range conditions {
		if !v.satisfied(ctx, vctx, c) {
			return ErrVerificationFailed
		}
	}
	return nil
}

func (v *Verifier) satisfied(ctx context.Context, vctx Context, caveat string) bool {
	if _, ok := v.exact[caveat]; ok {
		return true
	}
	for _, p := range v.general {
		if p(ctx, vctx, caveat) {
			return true
		}
	}
	return false
}
