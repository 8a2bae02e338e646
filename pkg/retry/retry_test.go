package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient error")
var errFatal = errors.New("fatal error")

func fastConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		attempts++
		return errTransient
	})
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("error should wrap the last failure, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	cfg := fastConfig()
	cfg.NonRetryableErrors = []error{errFatal}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errFatal
	})
	if err == nil || !errors.Is(err, errFatal) {
		t.Fatalf("expected wrapped fatal error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_WrappedNonRetryableMatches(t *testing.T) {
	cfg := fastConfig()
	cfg.NonRetryableErrors = []error{errFatal}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.Join(errTransient, errFatal)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("errors.Is should see through wrapping, attempts = %d", attempts)
	}
}

func TestRetry_DisabledRunsOnce(t *testing.T) {
	cfg := fastConfig()
	cfg.Enabled = false

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTransient
	})
	if err == nil {
		t.Fatal("disabled retry should return the failure as-is")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_ContextCancelDuringWait(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		attempts++
		return errTransient
	})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_ZeroAttemptsClampedToOne(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 0

	attempts := 0
	_ = Retry(context.Background(), cfg, func() error {
		attempts++
		return errTransient
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDelayFor_CapsAtMaxDelay(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   10.0,
	}
	if d := delayFor(cfg, 5); d > cfg.MaxDelay {
		t.Errorf("delay %v exceeds cap %v", d, cfg.MaxDelay)
	}
}

func TestDelayFor_JitterStaysInBounds(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	for i := 0; i < 50; i++ {
		d := delayFor(cfg, 1)
		if d < 75*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("jittered delay %v outside +-25%% of 100ms", d)
		}
	}
}
