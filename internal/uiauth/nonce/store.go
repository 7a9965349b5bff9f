// Package nonce tracks single-use nonces embedded in short-term login tokens.
package nonce

import (
	"context"
	"errors"
	"time"
)

// PruneGrace is how long a record outlives its expiry before it is swept.
const PruneGrace = 60 * time.Second

var ErrNonceAlreadyUsed = errors.New("nonce: already used")

// Store keeps (user, nonce) records. Implementations serialize every
// read-modify-write on a single record.
type Store interface {
	// Claim creates or replaces an unbound record expiring at expiresAt.
	// It fails with ErrNonceAlreadyUsed when the record is bound to a transaction.
	Claim(ctx context.Context, userID, nonce string, expiresAt time.Time) error

	// MatchOrBind binds an unbound record to txnID. It reports true when the
	// record exists and is now bound to txnID, false when it is absent or
	// bound to another transaction.
	MatchOrBind(ctx context.Context, userID, nonce, txnID string) (bool, error)

	// Prune removes records that expired more than PruneGrace before now and
	// returns how many were removed.
	Prune(ctx context.Context, now time.Time) (int, error)

	Close() error
}
