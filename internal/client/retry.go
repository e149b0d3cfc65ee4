// Package client holds the retry plumbing shared by the outbound HTTP clients.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RetryConfig configures the HTTP retry policy.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func (cfg RetryConfig) normalize() RetryConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// ShouldRetry retries on network errors, 5xx and 429.
func ShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		// a cancelled caller is not a transient failure
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// NewHTTPExecutor builds a failsafe executor retrying per ShouldRetry with
// exponential backoff and 10% jitter.
//
//nolint:bodyclose // *http.Response is a type parameter here
func NewHTTPExecutor(cfg RetryConfig) failsafe.Executor[*http.Response] {
	cfg = cfg.normalize()
	policy := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(ShouldRetry).
		Build()
	return failsafe.With[*http.Response](policy)
}

// ShouldRetryUnsent only retries when the connection could not be
// established, so the server never saw the request.
func ShouldRetryUnsent(resp *http.Response, err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// NewUnsentRetryExecutor is NewHTTPExecutor for requests that must not be
// repeated once delivered, such as starting an agent run.
//
//nolint:bodyclose // *http.Response is a type parameter here
func NewUnsentRetryExecutor(cfg RetryConfig) failsafe.Executor[*http.Response] {
	cfg = cfg.normalize()
	policy := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		HandleIf(ShouldRetryUnsent).
		Build()
	return failsafe.With[*http.Response](policy)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do sends the request built by newReq through executor, rebuilding it for
// each attempt, and reads the final body. Bodies of retried attempts are
// drained and closed. The returned error is only set when no response at
// all was obtained.
func Do(ctx context.Context, httpClient *http.Client, executor failsafe.Executor[*http.Response], newReq func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	resp, err := executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if ShouldRetry(resp, nil) {
			// keep only the status; the body is not needed for a retried attempt
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
			resp.Body = http.NoBody
		}
		return resp, nil
	})
	if resp != nil {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read response body: %w", readErr)
		}
		return &Response{StatusCode: resp.StatusCode, Body: body}, nil
	}
	if err == nil {
		err = errors.New("no response")
	}
	return nil, err
}

// Snippet trims a response body for error messages.
func Snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
