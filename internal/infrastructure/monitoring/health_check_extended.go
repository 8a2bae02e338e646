package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck verifies the credential cache backend.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddBackendCheck verifies the appointment backend is reachable.
func (h *HealthChecker) AddBackendCheck(baseURL string, timeout time.Duration) {
	client := &http.Client{Timeout: timeout}
	h.AddCheck("backend", func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return false, fmt.Errorf("backend returned %d", resp.StatusCode)
		}
		return true, nil
	}, timeout)
}
