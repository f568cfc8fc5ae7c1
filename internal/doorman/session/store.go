// Package session holds the process-wide session keyspace: an explicit
// token -> claims mapping with create and invalidate operations. Sessions are
// immutable capability snapshots; nothing here mutates one in place.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/pkg/cryptox"
)

// ErrNotFound is returned for unknown or expired tokens. The two cases are
// indistinguishable to callers on purpose.
var ErrNotFound = errors.New("session: not found")

// Store maps opaque tokens to immutable session snapshots. Safe for
// concurrent use; reads take the read lock only.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session

	ttl time.Duration
	now func() time.Time
}

// NewStore creates a session store issuing sessions with the given TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue mints a fresh token bound to a snapshot of the user's current
// identity and returns the stored session.
func (s *Store) Issue(u domain.User) (domain.Session, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	sess := domain.Session{
		Token:     token,
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Scope:     copyScope(u.Scope),
		IsAdmin:   u.IsAdmin(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()

	return sess, nil
}

// Get returns the session for token if it exists and has not expired.
// Expired sessions are dropped lazily here and in sweeps.
func (s *Store) Get(token string) (domain.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return domain.Session{}, ErrNotFound
	}
	if sess.Expired(s.now()) {
		s.Invalidate(token)
		return domain.Session{}, ErrNotFound
	}
	return sess, nil
}

// Invalidate destroys the session for token. Invalidating an unknown token
// is a no-op.
func (s *Store) Invalidate(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// InvalidateUser destroys every session belonging to the given principal and
// returns how many were dropped.
func (s *Store) InvalidateUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped int
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
			dropped++
		}
	}
	return dropped
}

// PurgeExpired removes every expired session and returns how many were
// dropped. Driven by the housekeeping worker.
func (s *Store) PurgeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped int
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of live (possibly expired but not yet purged)
// sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copyScope(scope *string) *string {
	if scope == nil {
		return nil
	}
	val := *scope
	return &val
}
