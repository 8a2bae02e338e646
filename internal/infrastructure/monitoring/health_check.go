package monitoring

import (
	"context"
	"sync"
	"time"
)

// HealthChecker aggregates liveness probes for the agent's
// dependencies. The HTTP handler runs CheckAll on demand; checks run
// concurrently so one slow dependency cannot hide the others.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []HealthCheck
}

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) (bool, error)
	Timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) (bool, error), timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, HealthCheck{
		Name:    name,
		Check:   check,
		Timeout: timeout,
	})
}

// CheckAll runs every registered probe and reports unhealthy if any
// probe fails.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(checks)),
	}

	type result struct {
		name    string
		verdict string
		healthy bool
	}

	results := make(chan result, len(checks))
	for _, check := range checks {
		go func(c HealthCheck) {
			checkCtx, cancel := context.WithTimeout(ctx, c.Timeout)
			defer cancel()

			healthy, err := c.Check(checkCtx)
			switch {
			case err != nil:
				results <- result{c.Name, err.Error(), false}
			case !healthy:
				results <- result{c.Name, "check failed", false}
			default:
				results <- result{c.Name, "healthy", true}
			}
		}(check)
	}

	for range checks {
		r := <-results
		status.Checks[r.name] = r.verdict
		if !r.healthy {
			status.Status = "unhealthy"
		}
	}

	return status
}
