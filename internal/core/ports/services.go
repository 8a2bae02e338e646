package ports

import (
	"context"
	"time"

	"telecall/internal/core/domain"
)

// CredentialSource obtains a single-use session credential, consulting
// a short-lived seeded cache before the backend.
type CredentialSource interface {
	Fetch(ctx context.Context, ref domain.SessionRef) (domain.SessionCredential, error)
}

// CredentialCache is the consume-once cache behind CredentialSource.
// Take deletes the entry on read so a retry in a stale state cannot
// replay it.
type CredentialCache interface {
	Put(ctx context.Context, key string, cred domain.SessionCredential, ttl time.Duration) error
	Take(ctx context.Context, key string) (domain.SessionCredential, bool, error)
}

// BoundaryNotifier reports call boundaries to the backend. Both calls
// are best-effort: failures are logged by the caller and never block
// local teardown.
type BoundaryNotifier interface {
	NotifyStart(ctx context.Context, id domain.AppointmentID) error
	NotifyEnd(ctx context.Context, id domain.AppointmentID, durationMinutes int) error
}

// SessionService is the surface the HTTP control layer drives.
type SessionService interface {
	StartSession(ctx context.Context, ref domain.SessionRef) (*domain.SessionInfo, error)
	EndSession(ctx context.Context, id domain.SessionID, reason domain.EndReason) error
	GetSession(ctx context.Context, id domain.SessionID) (*domain.SessionInfo, error)
	ListSessions(ctx context.Context) []*domain.SessionInfo
	SetAudioEnabled(ctx context.Context, id domain.SessionID, enabled bool) error
	SetVideoEnabled(ctx context.Context, id domain.SessionID, enabled bool) error
}

// MetricsRecorder decouples the core from the Prometheus collector.
type MetricsRecorder interface {
	RecordJoin(provider domain.ProviderKind)
	RecordJoinFailure(provider domain.ProviderKind, class string)
	RecordSessionStarted()
	RecordSessionEnded(duration time.Duration, reason domain.EndReason)
	RecordSubscribeFailure(provider domain.ProviderKind)
	RecordReconnect(provider domain.ProviderKind)
}
