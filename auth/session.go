/*
Package auth provides operator login and bearer-token sessions.

PURPOSE:
  A single configured operator account guards the mutating API surface.
  Successful login issues an opaque token; every token lives in a
  SessionStore behind an interface, so the in-memory implementation can
  be swapped for a shared store without touching the handlers.

TOKENS:
  Tokens are random UUIDs. They carry no claims; the session record in
  the store is the only source of truth, and expiry is checked on every
  validation.
*/
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned by Login on a bad username/password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionStore manages issued bearer tokens.
type SessionStore interface {
	// Issue creates a session for the user and returns its token.
	Issue(username string) string

	// Validate resolves a token to its username. Expired or unknown
	// tokens report ok=false.
	Validate(token string) (username string, ok bool)

	// Revoke removes a session. Revoking an unknown token is a no-op.
	Revoke(token string)
}

type session struct {
	username  string
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory with a fixed TTL.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]session
	now      func() time.Time
}

// NewMemorySessionStore creates an in-memory session store. Sessions
// expire ttl after issuance.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]session),
		now:      time.Now,
	}
}

// Issue creates a session and returns its token.
func (s *MemorySessionStore) Issue(username string) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{
		username:  username,
		expiresAt: s.now().Add(s.ttl),
	}
	return token
}

// Validate resolves a token. Expired sessions are removed on the spot.
func (s *MemorySessionStore) Validate(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return "", false
	}
	return sess.username, true
}

// Revoke removes a session.
func (s *MemorySessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Authenticator checks operator credentials and manages sessions.
type Authenticator struct {
	username string
	password string
	sessions SessionStore
}

// NewAuthenticator creates an authenticator for the configured operator
// account backed by the given session store.
func NewAuthenticator(username, password string, sessions SessionStore) *Authenticator {
	return &Authenticator{username: username, password: password, sessions: sessions}
}

// Login verifies the credentials and issues a session token.
func (a *Authenticator) Login(username, password string) (string, error) {
	if username != a.username || password != a.password {
		return "", ErrInvalidCredentials
	}
	return a.sessions.Issue(username), nil
}

// Logout revokes the session token.
func (a *Authenticator) Logout(token string) {
	a.sessions.Revoke(token)
}

// Validate resolves a token to its username.
func (a *Authenticator) Validate(token string) (string, bool) {
	return a.sessions.Validate(token)
}
