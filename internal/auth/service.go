// Package auth logs the admin in and out and checks the session.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/session"
	"github.com/mmcdole/folio/internal/validate"
)

// Client is the part of the API client auth needs
type Client interface {
	Login(ctx context.Context, emailOrUsername, password string) (api.LoginResult, error)
	Verify(ctx context.Context) (domain.User, error)
}

// CacheClearer drops cached collections on logout
type CacheClearer interface {
	Clear()
}

// Service owns the login state
type Service struct {
	client  Client
	session *session.Session
	cache   CacheClearer
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	user    *domain.User
	onLogin []func(domain.User)
}

// NewService creates a new auth service
func NewService(client Client, sess *session.Session, cache CacheClearer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:  client,
		session: sess,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// User returns the verified user, if any
func (s *Service) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// LoggedIn reports whether a usable token is present
func (s *Service) LoggedIn() bool {
	return !s.session.Expired(s.now())
}

// Login validates the credentials, exchanges them for a token and
// persists it
func (s *Service) Login(ctx context.Context, emailOrUsername, password string) (domain.User, error) {
	if err := validate.Login(emailOrUsername, password); err != nil {
		return domain.User{}, err
	}

	res, err := s.client.Login(ctx, emailOrUsername, password)
	if err != nil {
		s.logger.Error("login failed", "error", err)
		return domain.User{}, err
	}

	if err := s.session.Save(res.Token); err != nil {
		s.logger.Error("failed to save session", "error", err)
		return domain.User{}, err
	}

	s.setUser(&res.User)

	s.mu.RLock()
	hooks := append([]func(domain.User){}, s.onLogin...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(res.User)
	}
	return res.User, nil
}

// OnLogin registers fn to run after every successful login
func (s *Service) OnLogin(fn func(domain.User)) {
	s.mu.Lock()
	s.onLogin = append(s.onLogin, fn)
	s.mu.Unlock()
}

// Verify confirms the session with the server. A missing or expired token
// fails with ErrUnauthorized without a request.
func (s *Service) Verify(ctx context.Context) (domain.User, error) {
	if s.session.Expired(s.now()) {
		if s.session.LoggedIn() {
			s.logger.Info("session token expired")
			if err := s.session.Clear(); err != nil {
				s.logger.Error("failed to clear session", "error", err)
			}
		}
		s.setUser(nil)
		return domain.User{}, domain.ErrUnauthorized
	}

	user, err := s.client.Verify(ctx)
	if err != nil {
		// The client has already cleared the session on a 401
		if errors.Is(err, domain.ErrUnauthorized) {
			s.setUser(nil)
		}
		return domain.User{}, err
	}

	s.setUser(&user)
	return user, nil
}

// Logout forgets the token, the user and every cached collection
func (s *Service) Logout() error {
	s.setUser(nil)
	if s.cache != nil {
		s.cache.Clear()
	}
	return s.session.Clear()
}

func (s *Service) setUser(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}
