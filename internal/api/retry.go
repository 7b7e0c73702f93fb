package api

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/folio/internal/domain"
)

// RetryPolicy decides whether and when a failed request is attempted again.
// Only network failures are retried; the server's answers are final.
type RetryPolicy struct {
	MaxRetries int           // Extra attempts after the first
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Cap on the exponential delay (0 = uncapped)
	Jitter     time.Duration // Uniform random addition in [0, Jitter)
}

// DefaultRetryPolicy retries a network failure once
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Jitter:     100 * time.Millisecond,
	}
}

// NoRetry never retries
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// Backoff returns the delay before retry number attempt+1, without jitter
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Delay is Backoff plus jitter
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Backoff(attempt)
	if p.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(p.Jitter)))
	}
	return d
}

// ShouldRetry reports whether a request that failed with err on the given
// attempt (0-based) may be sent again. Non-idempotent methods are only
// retried when the connection was never established.
func (p RetryPolicy) ShouldRetry(attempt int, method string, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		return false
	}
	if idempotent(method) {
		return true
	}
	return dialFailure(err)
}

// Wait sleeps for the attempt's delay or until ctx is done
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func dialFailure(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
