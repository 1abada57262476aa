package scrape

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/internradar/crawler/internal/metrics"
)

// RetryPolicy controls the retry budget of a RetryingFetcher. The delay
// doubles after every failed attempt; there is no jitter.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryPolicy is 1 initial attempt plus 4 retries, starting at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
	}
}

// RetryingFetcher wraps a Fetcher with exponential backoff. Every failure
// (network error, non-2xx, timeout) is retryable; once the budget is spent
// the terminal error is a *FetchError carrying the last observed status.
type RetryingFetcher struct {
	inner  Fetcher
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryingFetcher builds a RetryingFetcher around inner.
func NewRetryingFetcher(inner Fetcher, policy RetryPolicy, logger *zap.Logger) *RetryingFetcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultRetryPolicy().InitialDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingFetcher{inner: inner, policy: policy, logger: logger}
}

// Fetch retries inner.Fetch until it succeeds or the budget is exhausted.
func (f *RetryingFetcher) Fetch(ctx context.Context, url string) (FetchResponse, error) {
	delay := f.policy.InitialDelay
	lastStatus := "unknown"

	for attempt := 1; ; attempt++ {
		resp, err := f.inner.Fetch(ctx, url)
		if err == nil {
			return resp, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			lastStatus = strconv.Itoa(statusErr.Code)
		}

		if attempt >= f.policy.MaxAttempts {
			return FetchResponse{}, &FetchError{
				URL:        url,
				LastStatus: lastStatus,
				Attempts:   attempt,
				cause:      err,
			}
		}

		f.logger.Warn("fetch failed, retrying",
			zap.String("url", url),
			zap.String("status", lastStatus),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		metrics.IncFetchRetries()

		if err := sleepContext(ctx, delay); err != nil {
			return FetchResponse{}, fmt.Errorf("retry wait interrupted: %w", err)
		}
		delay *= 2
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
