package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"
)

// BackoffFunc returns the wait before the attempt that follows attempt n (0-based).
type BackoffFunc func(n int) time.Duration

// ConstantBackoff waits d between every attempt.
func ConstantBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff grows initial by mult per attempt, capped at max.
func ExponentialBackoff(initial, max time.Duration, mult float64) BackoffFunc {
	return func(n int) time.Duration {
		wait := time.Duration(float64(initial) * math.Pow(mult, float64(n)))
		if wait > max {
			wait = max
		}
		return wait
	}
}

// RetryPolicy controls retry behavior.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Retryable   func(error) bool // nil = retry transient network errors only
}

// HTTPRetryPolicy is suitable for plain HTTP calls (transcripts, watch pages).
var HTTPRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	Backoff:     ExponentialBackoff(500*time.Millisecond, 10*time.Second, 2.0),
	Retryable:   isRetryable,
}

// Retry calls fn up to MaxAttempts times.
// Non-retryable errors and context cancellation return immediately. When every
// attempt fails the returned error wraps both ErrRetriesExhausted and the last cause.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = isRetryable
	}

	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}

		if attempt < attempts-1 && p.Backoff != nil {
			wait := p.Backoff(attempt)
			slog.Debug("retrying", slog.Int("attempt", attempt+1), slog.Duration("wait", wait), slog.Any("error", err))
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

// RetryHTTP executes an HTTP request function with retry logic.
// Retryable status codes are turned into errors and the body is closed.
func RetryHTTP(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	return Retry(ctx, p, func(ctx context.Context) (*http.Response, error) {
		resp, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if isRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &httpStatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// RetryUnlessPermanent retries everything except the engine's permanent
// sentinels and context cancellation.
func RetryUnlessPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsPermanent(err)
}

// httpStatusError wraps a retryable HTTP status code.
type httpStatusError struct {
	StatusCode int
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.StatusCode)
}

// isRetryable returns true for transient errors worth retrying.
func isRetryable(err error) bool {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		return true // already filtered by isRetryableStatus
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// net.Error includes OpError, so check after OpError
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// isRetryableStatus returns true for HTTP status codes worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
