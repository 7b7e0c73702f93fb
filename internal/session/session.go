// Package session holds the single persisted session token.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mmcdole/folio/internal/domain"
)

// Session reads and writes the bearer token. The token is opaque to the
// server contract; claims are only inspected to skip requests that would
// certainly be rejected.
type Session struct {
	store domain.SessionStore

	mu    sync.RWMutex
	token string
	load  sync.Once
}

// New creates a session backed by store
func New(store domain.SessionStore) *Session {
	return &Session{store: store}
}

func (s *Session) ensureLoaded() {
	s.load.Do(func() {
		if token, ok := s.store.GetToken(); ok {
			s.mu.Lock()
			s.token = token
			s.mu.Unlock()
		}
	})
}

// Token returns the current token, or "" when logged out
func (s *Session) Token() string {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn reports whether a token is present
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Save persists token. A leading "Bearer " is stripped.
func (s *Session) Save(token string) error {
	s.ensureLoaded()
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return s.Clear()
	}

	if err := s.store.SaveToken(token); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear forgets the token
func (s *Session) Clear() error {
	s.ensureLoaded()
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return s.store.ClearToken()
}

// Claims decodes the token's JWT claims without verifying the signature.
// Tokens that are not JWTs yield ok=false.
func (s *Session) Claims() (jwt.MapClaims, bool) {
	token := s.Token()
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// Expired reports whether the token carries an exp claim in the past.
// Missing tokens count as expired; opaque tokens never do.
func (s *Session) Expired(now time.Time) bool {
	if s.Token() == "" {
		return true
	}
	claims, ok := s.Claims()
	if !ok {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Subject returns the sub claim, if any
func (s *Session) Subject() string {
	claims, ok := s.Claims()
	if !ok {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}
