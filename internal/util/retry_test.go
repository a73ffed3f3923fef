package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retry(ctx context.Context, config *RetryConfig, fn func() error) *RetryResult {
	_, result := RetryWithValue(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return result
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	attempts := 0

	result := retry(context.Background(), nil, func() error {
		attempts++
		return nil
	})

	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if attempts != 1 {
		t.Errorf("expected function to be called once, got %d", attempts)
	}
	if result.LastError != nil {
		t.Errorf("expected no error, got %v", result.LastError)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	config := &RetryConfig{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2.0,
	}

	result := retry(context.Background(), config, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if result.LastError != nil {
		t.Errorf("expected no error, got %v", result.LastError)
	}
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	testErr := errors.New("persistent error")
	config := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}

	result := retry(context.Background(), config, func() error {
		return testErr
	})

	// 1 initial + 3 retries
	if result.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", result.Attempts)
	}
	if !errors.Is(result.LastError, ErrMaxRetriesExceeded) {
		t.Error("expected ErrMaxRetriesExceeded in error chain")
	}
	if !errors.Is(result.LastError, testErr) {
		t.Error("expected original error in error chain")
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &RetryConfig{MaxRetries: 10, BaseDelay: time.Second}

	attempts := 0
	result := retry(ctx, config, func() error {
		attempts++
		cancel()
		return errors.New("fail")
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancel, got %d", attempts)
	}
	if !errors.Is(result.LastError, ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", result.LastError)
	}
}

func TestRetryWithValue(t *testing.T) {
	attempts := 0
	config := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}

	val, result := RetryWithValue(context.Background(), config, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "profile", nil
	})

	if val != "profile" {
		t.Errorf("expected 'profile', got %q", val)
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
}

func TestRetryOn(t *testing.T) {
	errNetwork := errors.New("network")
	errAuth := errors.New("auth")

	config := &RetryConfig{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		RetryIf:    RetryOn(errNetwork),
	}

	attempts := 0
	result := retry(context.Background(), config, func() error {
		attempts++
		if attempts == 1 {
			return errNetwork
		}
		return errAuth
	})

	if attempts != 2 {
		t.Errorf("expected retry to stop at non-matching error, got %d attempts", attempts)
	}
	if !errors.Is(result.LastError, errAuth) {
		t.Errorf("expected auth error, got %v", result.LastError)
	}
	if errors.Is(result.LastError, ErrMaxRetriesExceeded) {
		t.Error("non-retryable error should not report max retries")
	}
}

func TestCalculateDelay(t *testing.T) {
	config := &RetryConfig{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   300 * time.Millisecond,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{6, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := calculateDelay(config, tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestCalculateDelay_Jitter(t *testing.T) {
	config := &RetryConfig{BaseDelay: 100 * time.Millisecond, Jitter: 0.5}

	for i := 0; i < 20; i++ {
		d := calculateDelay(config, 1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}
