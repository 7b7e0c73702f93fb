package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mmcdole/folio/internal/domain"
)

// LoginResult is a successful login
type LoginResult struct {
	Token string
	User  domain.User
}

// Login exchanges credentials for a session token. The token is returned,
// not persisted; a rejected login is a RemoteError, not a session expiry.
func (c *Client) Login(ctx context.Context, emailOrUsername, password string) (LoginResult, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/login", map[string]string{
		"emailOrUsername": trimmed(emailOrUsername),
		"password":        password,
	})
	if err != nil {
		return LoginResult{}, err
	}
	req.anonymous = true

	body, err := c.do(ctx, req)
	if err != nil {
		return LoginResult{}, err
	}

	var resp loginResponse
	if err := jsonUnmarshal(body, &resp); err != nil {
		return LoginResult{}, err
	}
	if resp.Token == "" {
		return LoginResult{}, errors.New("login response without token")
	}

	c.logger.Info("logged in", "user", resp.User.Email)
	return LoginResult{Token: resp.Token, User: resp.User}, nil
}

// Verify checks the current token with the server and returns its user
func (c *Client) Verify(ctx context.Context) (domain.User, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/verify"})
	if err != nil {
		return domain.User{}, err
	}
	user, err := decodeUser(body)
	if err != nil {
		return domain.User{}, fmt.Errorf("verify: %w", err)
	}
	return user, nil
}
