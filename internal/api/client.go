// Package api is the remote resource client for the portfolio REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/folio/internal/domain"
)

const (
	defaultTimeout = 5 * time.Second
	userAgent      = "Folio/1.0"
	maxErrorBody   = 4096
)

// TokenSource supplies the bearer token and forgets it when the server
// rejects it. *session.Session satisfies it.
type TokenSource interface {
	Token() string
	Clear() error
}

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration // Per attempt
	Retry   RetryPolicy
}

// Client talks to the REST API. It attaches the session token, maps
// failures to domain errors and retries network failures.
type Client struct {
	baseURL    string
	tokens     TokenSource
	retry      RetryPolicy
	httpClient *http.Client
	logger     *slog.Logger

	onUnauthorized func()
}

// NewClient creates a new API client
func NewClient(cfg ClientConfig, tokens TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  tokens,
		retry:   cfg.Retry,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// OnUnauthorized registers fn to run after a 401 has cleared the session
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// BaseURL returns the normalized API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one logical call; the body is rebuilt per attempt
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	anonymous   bool // Login: no token, and 401 is an ordinary rejection
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return req, fmt.Errorf("failed to encode request: %w", err)
		}
		req.body = body
		req.contentType = "application/json"
	}
	return req, nil
}

// do runs r with retries and returns the response body of a 2xx reply
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := c.attempt(ctx, r)
		if err == nil {
			return body, nil
		}
		if !c.retry.ShouldRetry(attempt, r.method, err) {
			return nil, err
		}
		c.logger.Warn("retrying request", "method", r.method, "path", r.path, "attempt", attempt+1, "error", err)
		if werr := c.retry.Wait(ctx, attempt); werr != nil {
			return nil, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, r request) ([]byte, error) {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, r.query.Encode())
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.anonymous && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("api request", "method", r.method, "url", reqURL, "request_id", req.Header.Get("X-Request-ID"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		c.logger.Error("api request failed", "method", r.method, "url", reqURL, "error", err)
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized && !r.anonymous {
		c.expireSession()
		return nil, domain.ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("api request error", "status", resp.StatusCode, "body", truncate(respBody))
		return nil, &domain.RemoteError{
			Status:  resp.StatusCode,
			Message: serverMessage(respBody),
		}
	}

	return respBody, nil
}

func (c *Client) expireSession() {
	c.logger.Info("session rejected by server, clearing token")
	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			c.logger.Error("failed to clear session", "error", err)
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// serverMessage extracts the human-readable reason from an error body.
// The API uses either {"error": "..."} or {"message": "..."}.
func serverMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.GenericFailureMessage
	}
	var msg string
	if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &msg) == nil && strings.TrimSpace(msg) != "" {
		return strings.TrimSpace(msg)
	}
	if m := strings.TrimSpace(payload.Message); m != "" {
		return m
	}
	return domain.GenericFailureMessage
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
