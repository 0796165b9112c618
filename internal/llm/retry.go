package llm

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig defines retry behavior for model API calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries).
	MaxRetries int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// JitterFactor adds randomness to delays (0.0-1.0).
	JitterFactor float64
}

// DefaultRetryConfig returns sensible defaults for model API retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     15 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// IsRetryableStatusCode reports whether an HTTP status warrants a retry.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// RetryableHTTPClient wraps an http.Client with bounded retry and backoff.
type RetryableHTTPClient struct {
	client *http.Client
	config RetryConfig
}

// NewRetryableHTTPClient creates a RetryableHTTPClient. A nil client gets a
// 60s-timeout default.
func NewRetryableHTTPClient(client *http.Client, config RetryConfig) *RetryableHTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &RetryableHTTPClient{client: client, config: config}
}

// Do executes the request, retrying transient failures with backoff. The
// request must carry a re-readable body (GetBody set), which holds for
// requests built from bytes.Reader bodies.
func (c *RetryableHTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	delay := c.config.InitialDelay

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		resp, err := c.client.Do(req.Clone(ctx))
		if err == nil && !IsRetryableStatusCode(resp.StatusCode) {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d: retryable server error", resp.StatusCode)
			resp.Body.Close()
		}
		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
		case <-time.After(addJitter(delay, c.config.JitterFactor)):
		}
		delay = time.Duration(float64(delay) * c.config.Multiplier)
		if delay > c.config.MaxDelay {
			delay = c.config.MaxDelay
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.config.MaxRetries+1, lastErr)
}

// addJitter adds randomness to a duration. Jitter does not need cryptographic
// randomness.
func addJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return d
	}
	jitter := (rand.Float64() - 0.5) * 2 * float64(d) * factor // #nosec G404
	result := time.Duration(float64(d) + jitter)
	if result < 0 {
		result = 0
	}
	return result
}
