package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// RetryConfig configures backoff for throttled upstream calls.
type RetryConfig struct {
	MaxRetries      int           // attempts after the first call
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff ceiling
}

// DefaultRetryConfig matches the upstream contract: three retries at
// 2s, 4s and 8s before surfacing ErrThrottled.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     8 * time.Second,
	}
}

// completeWithRetry executes the request, retrying only throttling-class
// errors with exponential backoff. Malformed responses surface immediately:
// the recovery for those (history reset) lives one layer up, and repeating
// the identical request would fail the identical way.
func (c *Client) completeWithRetry(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	var lastErr error
	delay := c.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		// Proactive rate limiting on every attempt, retries included.
		if err := c.limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			c.logger.Debug("completion succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return resp, nil
		}

		lastErr = classifyError(err)

		if !errors.Is(lastErr, ErrThrottled) {
			return openai.ChatCompletionResponse{}, lastErr
		}

		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("throttled, backing off",
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, fmt.Errorf("context canceled during backoff: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return openai.ChatCompletionResponse{}, fmt.Errorf(
		"completion after %d retries (elapsed %s): %w",
		c.retryConfig.MaxRetries, time.Since(start).Round(time.Millisecond), lastErr)
}
