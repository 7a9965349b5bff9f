package domain

import "time"

// NonceRecord tracks a short-term login nonce. An empty TransactionID means
// the nonce has not been redeemed yet.
type NonceRecord struct {
	TransactionID string
	ExpiresAt     time.Time
}

func (r NonceRecord) Bound() bool { return r.TransactionID != "" }
