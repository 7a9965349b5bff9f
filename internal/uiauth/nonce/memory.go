package nonce

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]map[string]domain.NonceRecord // user -> nonce -> record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]domain.NonceRecord)}
}

func (s *MemoryStore) Claim(_ context.Context, userID, nonce string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.records[userID]
	if bucket == nil {
		bucket = make(map[string]domain.NonceRecord)
		s.records[userID] = bucket
	}
	if rec, ok := bucket[nonce]; ok && rec.Bound() {
		return ErrNonceAlreadyUsed
	}
	bucket[nonce] = domain.NonceRecord{ExpiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) MatchOrBind(_ context.Context, userID, nonce, txnID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID][nonce]
	if !ok {
		return false, nil
	}
	if !rec.Bound() {
		rec.TransactionID = txnID
		s.records[userID][nonce] = rec
		return true, nil
	}
	return rec.TransactionID == txnID, nil
}

func (s *MemoryStore) Prune(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-PruneGrace)
	removed := 0
	for user, bucket := range s.records {
		for n, rec := range bucket {
			if rec.ExpiresAt.Before(cutoff) {
				delete(bucket, n)
				removed++
			}
		}
		if len(bucket) == 0 {
			delete(s.records, user)
		}
	}
	return removed, nil
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, bucket := range s.records {
		n += len(bucket)
	}
	return n
}

func (s *MemoryStore) Close() error { return nil }
