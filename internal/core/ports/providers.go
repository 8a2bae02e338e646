package ports

import (
	"context"

	"telecall/internal/core/domain"
)

// SessionHandle identifies one joined session at a provider binding.
// It is an explicit value threaded through every subsequent call; there
// is no global "current call" state, so independent sessions can
// coexist (and tests can run several side by side).
type SessionHandle struct {
	SessionID domain.SessionID
	LocalID   domain.ParticipantID
	Provider  domain.ProviderKind
}

// SessionClient is the one interface the core sees regardless of which
// provider binding is configured. Implementations normalize their SDK's
// callbacks into the domain.SessionEvent vocabulary.
//
// Dispose is idempotent and is the only sanctioned teardown path; it
// closes the event channel returned by Events. Leave sends the
// provider-level goodbye but does not release resources by itself.
type SessionClient interface {
	Join(ctx context.Context, cred domain.SessionCredential, tracks domain.LocalTracks) (SessionHandle, error)
	Leave(ctx context.Context, handle SessionHandle) error
	Publish(ctx context.Context, handle SessionHandle, tracks domain.LocalTracks) error
	ToggleAudio(ctx context.Context, handle SessionHandle, enabled bool) error
	ToggleVideo(ctx context.Context, handle SessionHandle, enabled bool) error
	Events(handle SessionHandle) <-chan domain.SessionEvent
	Dispose(handle SessionHandle) error
}
