package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", &httpStatusError{429}, true},
		{"http 502", &httpStatusError{502}, true},
		{"http 503", &httpStatusError{503}, true},
		{"regular error", errors.New("something"), false},
		{"timeout", &net.DNSError{IsTimeout: true}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryUnlessPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain", errors.New("boom"), true},
		{"not found", fmt.Errorf("stats: %w", ErrVideoNotFound), false},
		{"forbidden", fmt.Errorf("comments: %w", ErrForbidden), false},
		{"disabled", ErrCommentsDisabled, false},
		{"llm missing", ErrLLMUnavailable, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"invalid json", ErrLLMInvalidJSON, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryUnlessPermanent(tt.err); got != tt.want {
				t.Errorf("RetryUnlessPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func testPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     ExponentialBackoff(time.Millisecond, 10*time.Millisecond, 2),
	}
}

func TestRetryAttempts(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int
		failWith  error
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, nil, 1, false},
		{"after two 503s", 2, &httpStatusError{503}, 3, false},
		{"permanent", 99, errors.New("permanent error"), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := Retry(context.Background(), testPolicy(4), func(context.Context) (string, error) {
				calls++
				if calls <= tt.failUntil {
					return "", tt.failWith
				}
				return "ok", nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != "ok" {
				t.Errorf("got %q", got)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), testPolicy(3), func(context.Context) (string, error) {
		calls++
		return "", &httpStatusError{502}
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 502 {
		t.Errorf("last cause not wrapped: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryCustomClassifier(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Backoff: ConstantBackoff(0), Retryable: RetryUnlessPermanent}
	calls := 0
	_, err := Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls == 2 {
			return 0, ErrVideoNotFound
		}
		return 0, errors.New("transient")
	})
	if !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, testPolicy(3), func(context.Context) (string, error) {
		return "", &httpStatusError{503}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetryCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 3, Backoff: ConstantBackoff(time.Hour)}

	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, p, func(context.Context) (string, error) {
			return "", &httpStatusError{503}
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop on cancel")
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, 300*time.Millisecond, 2)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := b(i); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i, got, w)
		}
	}
}
