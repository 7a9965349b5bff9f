// Package session holds in-progress interactive authentication sessions.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/pkg/cryptox"
	"k8s.io/utils/clock"
)

// IDLength is the length of generated session identifiers.
const IDLength = 24

// Store is a process-local session table. Callers receive snapshots; all
// changes go through Save, Update or Remove.
type Store struct {
	clock clock.PassiveClock
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[string]*domain.AuthSession
}

// NewStore returns an empty store. Sessions idle for longer than ttl are
// treated as unknown; a ttl of zero disables expiry.
func NewStore(clk clock.PassiveClock, ttl time.Duration) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		clock:    clk,
		ttl:      ttl,
		sessions: make(map[string]*domain.AuthSession),
	}
}

// GetOrCreate returns the session named by id, or a new session with a fresh
// identifier when id is empty, unknown or expired.
func (s *Store) GetOrCreate(id string) (domain.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if sess, ok := s.sessions[id]; ok && id != "" {
		if !s.expired(sess, now) {
			return sess.Clone(), nil
		}
		delete(s.sessions, id)
	}

	newID, err := s.newID()
	if err != nil {
		return domain.AuthSession{}, err
	}
	sess := &domain.AuthSession{
		ID:          newID,
		Credentials: make(map[domain.StageType]any),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.sessions[newID] = sess
	return sess.Clone(), nil
}

func (s *Store) newID() (string, error) {
	for range 8 {
		id, err := cryptox.RandomString(IDLength)
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		if _, taken := s.sessions[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate session id: exhausted attempts")
}

func (s *Store) expired(sess *domain.AuthSession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}

// Save replaces the stored session with a copy of sess.
func (s *Store) Save(sess domain.AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := sess.Clone()
	c.UpdatedAt = s.clock.Now()
	s.sessions[c.ID] = &c
}

// Update applies fn to the stored session under the store lock and returns
// the result. It reports false, without calling fn, when id is not stored.
func (s *Store) Update(id string, fn func(*domain.AuthSession)) (domain.AuthSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.AuthSession{}, false
	}
	if sess.Credentials == nil {
		sess.Credentials = make(map[domain.StageType]any)
	}
	fn(sess)
	sess.UpdatedAt = s.clock.Now()
	return sess.Clone(), true
}

// Remove deletes the session. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes sessions last updated before idleBefore and returns the count.
func (s *Store) Sweep(idleBefore time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(idleBefore) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// TTL returns the idle lifetime configured for sessions.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every session.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
	return nil
}
