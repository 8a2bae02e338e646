package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"
	"telecall/pkg/tracing"
	"telecall/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const maxErrorBodyBytes = 512

// Fetcher obtains single-use session credentials from the backend,
// consulting a consume-once cache first so a credential seeded ahead of
// the session (or left over from a supervised handoff) is used exactly
// once and never replayed.
type Fetcher struct {
	baseURL   string
	tokenPath string
	client    *http.Client
	cache     ports.CredentialCache
	cacheTTL  time.Duration
	logger    *zap.SugaredLogger
}

func NewFetcher(baseURL, tokenPath string, timeout time.Duration, cache ports.CredentialCache, cacheTTL time.Duration, logger *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		baseURL:   baseURL,
		tokenPath: tokenPath,
		client:    &http.Client{Timeout: timeout},
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

type tokenRequest struct {
	AppointmentID string `json:"appointmentId,omitempty"`
	RoomContext   string `json:"roomContext,omitempty"`
}

// Fetch returns a credential for the given session reference. A cached
// credential is consumed and validated before use; anything stale falls
// through to a fresh backend request.
func (f *Fetcher) Fetch(ctx context.Context, ref domain.SessionRef) (domain.SessionCredential, error) {
	if f.cache != nil {
		cred, ok, err := f.cache.Take(ctx, ref.Key())
		if err != nil {
			f.logger.Warnw("credential cache lookup failed", "key", ref.Key(), "error", err)
		} else if ok {
			if err := checkTokenExpiry(cred.AuthToken); err != nil {
				f.logger.Infow("cached credential expired, fetching fresh", "key", ref.Key())
			} else {
				return cred, nil
			}
		}
	}

	return f.fetchFromBackend(ctx, ref)
}

// Seed stores a credential for later consumption by Fetch. Used when
// the backend pushes the credential ahead of the session start.
func (f *Fetcher) Seed(ctx context.Context, ref domain.SessionRef, cred domain.SessionCredential) error {
	if f.cache == nil {
		return fmt.Errorf("no credential cache configured")
	}
	return f.cache.Put(ctx, ref.Key(), cred, f.cacheTTL)
}

func (f *Fetcher) fetchFromBackend(ctx context.Context, ref domain.SessionRef) (domain.SessionCredential, error) {
	ctx, span := tracing.TraceBackendCall(ctx, "fetch_credential", string(ref.AppointmentID))
	defer span.End()

	body, err := json.Marshal(tokenRequest{
		AppointmentID: string(ref.AppointmentID),
		RoomContext:   ref.RoomContext,
	})
	if err != nil {
		return domain.SessionCredential{}, apperrors.NewCredentialError("encoding token request failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+f.tokenPath, bytes.NewReader(body))
	if err != nil {
		return domain.SessionCredential{}, apperrors.NewCredentialError("building token request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.SessionCredential{}, apperrors.NewCredentialError("backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		err := fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(snippet))
		tracing.RecordError(ctx, err)
		return domain.SessionCredential{}, apperrors.NewCredentialError(
			fmt.Sprintf("token request rejected with status %d", resp.StatusCode), err)
	}

	var cred domain.SessionCredential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return domain.SessionCredential{}, apperrors.NewCredentialError("decoding token response failed", err)
	}

	if cred.RoomIdentifier == "" || cred.AuthToken == "" {
		return domain.SessionCredential{}, apperrors.NewCredentialError(
			"token response missing room identifier or auth token", nil)
	}

	if err := checkTokenExpiry(cred.AuthToken); err != nil {
		return domain.SessionCredential{}, apperrors.NewCredentialError("backend issued an expired token", err)
	}

	f.logger.Debugw("fetched credential",
		"key", ref.Key(),
		"room", cred.RoomIdentifier,
		"token", utils.MaskSensitive(cred.AuthToken, 6),
	)

	return cred, nil
}

// checkTokenExpiry rejects tokens that are already expired. Claims are
// read without signature verification: the provider verifies the token,
// this check only saves a doomed join round-trip. Opaque non-JWT tokens
// pass through untouched.
func checkTokenExpiry(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("token expired at %s", exp.Time.Format(time.RFC3339))
	}
	return nil
}
