package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/spherical/pdf-ocr/internal/domain"
)

const (
	maxRetries     = 2
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// shouldRetry reports whether a status is a provider rate limit. Every other
// failure is final for the page.
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config *RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))

	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(resp *http.Response, fallback time.Duration, ceiling time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			if d > ceiling {
				return ceiling
			}
			return d
		}
	}
	return fallback
}

// retryWithBackoff wraps an HTTP request, waiting out rate limits
func (c *Client) retryWithBackoff(ctx context.Context, reqFunc func() (*http.Response, error)) (*http.Response, error) {
	config := c.retry
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := reqFunc()
		if err != nil {
			return nil, err
		}

		if !shouldRetry(resp.StatusCode) || attempt == config.MaxRetries {
			return resp, nil
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		backoff := retryAfter(resp, calculateBackoff(attempt, config), config.MaxBackoff)
		resp.Body.Close()

		c.logger.Warn().
			Str("provider", c.name).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Rate limited, waiting before next attempt")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, domain.APIError(fmt.Sprintf("request failed after %d retries", config.MaxRetries), lastErr)
}
