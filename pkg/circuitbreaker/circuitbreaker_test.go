package circuitbreaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func failingConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 2,
	}
}

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestExecute_PassesThroughWhenClosed(t *testing.T) {
	cb := New(DefaultConfig())

	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
}

func TestExecute_WrapsFailure(t *testing.T) {
	cb := New(DefaultConfig())

	err := cb.Execute(context.Background(), fail)
	if !errors.Is(err, errBackend) {
		t.Fatalf("error should wrap the cause, got %v", err)
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New(failingConfig())

	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), fail)

	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open after %d failures", cb.GetState(), 2)
	}

	err := cb.Execute(context.Background(), succeed)
	if err == nil {
		t.Fatal("open breaker must reject without running the function")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("rejection should name the state, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := New(failingConfig())

	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), succeed)
	cb.Execute(context.Background(), fail)

	if cb.GetState() != StateClosed {
		t.Errorf("non-consecutive failures must not trip the breaker, state = %v", cb.GetState())
	}
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(failingConfig())

	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), fail)
	time.Sleep(30 * time.Millisecond)

	// Two successful probes close the breaker again.
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("first probe should be admitted: %v", err)
	}
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("second probe should be admitted: %v", err)
	}

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed after successful probes", cb.GetState())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	cb := New(failingConfig())

	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), fail)
	time.Sleep(30 * time.Millisecond)

	cb.Execute(context.Background(), fail)

	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", cb.GetState())
	}
}

func TestBreaker_Reset(t *testing.T) {
	cb := New(failingConfig())

	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), fail)
	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed after reset", cb.GetState())
	}
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Errorf("reset breaker should admit requests: %v", err)
	}
}

func TestBreaker_NotifiesStateChanges(t *testing.T) {
	cb := New(failingConfig())

	var mu sync.Mutex
	var transitions []string
	done := make(chan struct{}, 1)
	cb.OnStateChange(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, from.String()+">"+to.String())
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})

	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), fail)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state change callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != "closed>open" {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
