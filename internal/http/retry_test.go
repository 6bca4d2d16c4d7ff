package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:   max,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{errors.New("AuthenticationFailed: invalid SAS"), ErrorTypeCredential},
		{errors.New("status 403 forbidden"), ErrorTypeCredential},
		{errors.New("dial tcp: connection refused"), ErrorTypeNetwork},
		{errors.New("unexpected EOF"), ErrorTypeNetwork},
		{errors.New("SlowDown: reduce request rate"), ErrorTypeRetryable},
		{errors.New("status 503"), ErrorTypeRetryable},
		{errors.New("NoSuchBucket"), ErrorTypeFatal},
		{context.Canceled, ErrorTypeFatal},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ErrorTypeFatal},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %s, want %s", ErrorTypeName(got), ErrorTypeName(tt.want))
			}
		})
	}
}

func TestExecuteWithRetry_Success(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastRetry(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_RecoversFromNetworkError(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry(5)
	cfg.OnRetry = func(attempt int, err error, errorType ErrorType) {
		retried = append(retried, attempt)
	}

	err := ExecuteWithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retried) != 2 {
		t.Errorf("OnRetry called %d times, want 2", len(retried))
	}
}

func TestExecuteWithRetry_FatalAndCredentialErrorsAreNotRetried(t *testing.T) {
	for _, msg := range []string{"400 bad request", "403 forbidden"} {
		calls := 0
		err := ExecuteWithRetry(context.Background(), fastRetry(5), func() error {
			calls++
			return errors.New(msg)
		})
		if err == nil {
			t.Fatalf("%s: expected error", msg)
		}
		if calls != 1 {
			t.Errorf("%s: expected 1 call, got %d", msg, calls)
		}
	}
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastRetry(3), func() error {
		calls++
		return errors.New("503 service unavailable")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := ExecuteWithRetry(ctx, cfg, func() error {
		return errors.New("connection reset")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected quick return after cancel, took %v", elapsed)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := CalculateBackoff(0, time.Second, time.Minute); got != 0 {
		t.Errorf("attempt 0 backoff = %v, want 0", got)
	}
	for i := 0; i < 50; i++ {
		if got := CalculateBackoff(10, time.Second, 3*time.Second); got < 0 || got >= 3*time.Second {
			t.Fatalf("backoff %v outside [0, 3s)", got)
		}
	}
}
