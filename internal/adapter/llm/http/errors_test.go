package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorIs(t *testing.T) {
	rateLimit := NewRateLimitError("anthropic", "too many requests")
	wrapped := fmt.Errorf("generate: %w", rateLimit)

	if !errors.Is(wrapped, &Error{Type: ErrTypeRateLimit}) {
		t.Error("wrapped rate limit error should match ErrTypeRateLimit")
	}
	if errors.Is(wrapped, &Error{Type: ErrTypeAuthentication}) {
		t.Error("rate limit error should not match authentication type")
	}
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"rate limit", NewRateLimitError("openai", "429"), true},
		{"service unavailable", NewServiceUnavailableError("openai", "503"), true},
		{"timeout", NewTimeoutError("openai", "deadline"), true},
		{"authentication", NewAuthenticationError("openai", "bad key"), false},
		{"invalid request", NewInvalidRequestError("openai", "bad payload"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err); got != tt.retryable {
				t.Errorf("ShouldRetry(%s) = %v, want %v", tt.name, got, tt.retryable)
			}
		})
	}
}

func TestShouldRetryGenericError(t *testing.T) {
	if ShouldRetry(errors.New("plain error")) {
		t.Error("generic errors must not be retried")
	}
	if ShouldRetry(nil) {
		t.Error("nil is not retryable")
	}
}

func TestRetryWithBackoffStopsAtBound(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) error {
		calls++
		return NewRateLimitError("test", "always failing")
	}

	cfg := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
	err := RetryWithBackoff(context.Background(), op, cfg)

	if err == nil {
		t.Fatal("expected terminal error")
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("got %d attempts, want 3", calls)
	}
}

func TestRetryWithBackoffNonRetryableFailsFast(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) error {
		calls++
		return NewAuthenticationError("test", "bad key")
	}

	err := RetryWithBackoff(context.Background(), op, DefaultRetryConfig())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-retryable error retried %d times", calls-1)
	}
}

func TestRetryWithBackoffRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		t.Error("operation should not run after cancellation")
		return nil
	}, DefaultRetryConfig())

	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestExponentialBackoffBounds(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 8 * time.Second, Multiplier: 2}

	for attempt := 0; attempt < 10; attempt++ {
		b := ExponentialBackoff(attempt, cfg)
		if b < 0 {
			t.Errorf("attempt %d: negative backoff %v", attempt, b)
		}
		if b > cfg.MaxBackoff {
			t.Errorf("attempt %d: backoff %v exceeds max %v", attempt, b, cfg.MaxBackoff)
		}
	}
}
