package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"telecall/internal/core/domain"
	"telecall/pkg/circuitbreaker"
	"telecall/pkg/retry"

	"go.uber.org/zap"
)

// HTTPNotifier reports call boundaries to the backend over its REST
// API. Both notifications are best-effort from the caller's point of
// view, but each attempt retries with backoff and runs behind a
// circuit breaker so a struggling backend is not hammered by every
// session ending at once.
type HTTPNotifier struct {
	baseURL  string
	client   *http.Client
	retryCfg retry.Config
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.SugaredLogger
}

func NewHTTPNotifier(baseURL string, timeout time.Duration, maxRetries int, logger *zap.SugaredLogger) *HTTPNotifier {
	retryCfg := retry.DefaultConfig()
	if maxRetries > 0 {
		retryCfg.MaxAttempts = maxRetries
	}

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("backend notification circuit state changed", "from", from.String(), "to", to.String())
	})

	return &HTTPNotifier{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		retryCfg: retryCfg,
		breaker:  breaker,
		logger:   logger,
	}
}

func (n *HTTPNotifier) NotifyStart(ctx context.Context, id domain.AppointmentID) error {
	path := fmt.Sprintf("/appointments/%s/start", id)
	return n.post(ctx, path, nil)
}

func (n *HTTPNotifier) NotifyEnd(ctx context.Context, id domain.AppointmentID, durationMinutes int) error {
	path := fmt.Sprintf("/appointments/%s/end", id)
	return n.post(ctx, path, map[string]int{"durationMinutes": durationMinutes})
}

func (n *HTTPNotifier) post(ctx context.Context, path string, payload interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding notification: %w", err)
		}
	}

	return n.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, n.retryCfg, func() error {
			return n.doPost(ctx, path, body)
		})
	})
}

func (n *HTTPNotifier) doPost(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 256))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned %d for %s", resp.StatusCode, path)
	}
	return nil
}
