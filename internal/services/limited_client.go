package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

// LimitedClient wraps an LLMClient with a token-bucket rate limit and bounded retries.
type LimitedClient struct {
	inner      agenttypes.LLMClient
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// NewLimitedClient wraps inner. requestsPerMinute <= 0 disables throttling;
// maxRetries is the number of extra attempts after a failure.
func NewLimitedClient(inner agenttypes.LLMClient, requestsPerMinute, maxRetries int) *LimitedClient {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &LimitedClient{
		inner:      inner,
		limiter:    limiter,
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
	}
}

// SetBackoff sets the base delay between retries; attempt n waits n times the base.
func (c *LimitedClient) SetBackoff(d time.Duration) {
	c.backoff = d
}

// GetProviderName returns the wrapped client's provider name.
func (c *LimitedClient) GetProviderName() string {
	return c.inner.GetProviderName()
}

// IsConfigured returns true if the wrapped client is configured.
func (c *LimitedClient) IsConfigured() bool {
	return c.inner.IsConfigured()
}

// Invoke waits for the limiter, then calls the wrapped client, retrying failures
// until the retry budget is spent or ctx is done.
func (c *LimitedClient) Invoke(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	attempts := c.maxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limiter: %w", err)
			}
		}

		out, err := c.inner.Invoke(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == attempts {
			break
		}

		logger.Warn("LLM call failed, retrying", "provider", c.inner.GetProviderName(), "attempt", attempt, "error", err)
		if c.backoff > 0 {
			timer := time.NewTimer(c.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", fmt.Errorf("llm call cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}

	return "", fmt.Errorf("llm call failed after %d attempt(s): %w", attempts, lastErr)
}
