package macaroonx

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Caveat keys used by the token service.
const (
	KeyGen    = "gen"
	KeyUserID = "user_id"
	KeyType   = "type"
	KeyTime   = "time"
	KeyNonce  = "nonce"
)

const expiryPrefix = KeyTime + " < "

// ExactCaveat formats a "key = value" caveat.
func ExactCaveat(key, value string) string {
	return key + " = " + value
}

// ExpiryCaveat formats a "time < <unix ms>" caveat.
func ExpiryCaveat(t time.Time) string {
	return expiryPrefix + strconv.FormatInt(t.UnixMilli(), 10)
}

// ValueOf returns the value of a "key = value" caveat when its key matches.
func ValueOf(caveat, key string) (string, bool) {
	prefix := key + " = "
	if !strings.HasPrefix(caveat, prefix) {
		return "", false
	}
	return caveat[len(prefix):], true
}

// Lookup returns the value of the first "key = value" caveat on tok.
func Lookup(tok Token, key string) (string, bool) {
	for _, c := range tok.Caveats() {
		if v, ok := ValueOf(c, key); ok {
			return v, true
		}
	}
	return "", false
}

// ExpiryPredicate accepts "time < N" when vctx.Now in unix ms is strictly
// before N. A non-integer N is rejected.
func ExpiryPredicate(_ context.Context, vctx Context, caveat string) bool {
	if !strings.HasPrefix(caveat, expiryPrefix) {
		return false
	}
	expiry, err := strconv.ParseInt(strings.TrimSpace(caveat[len(expiryPrefix):]), 10, 64)
	if err != nil {
		return false
	}
	return vctx.Now.UnixMilli() < expiry
}
