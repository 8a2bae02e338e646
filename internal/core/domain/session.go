package domain

import (
	"fmt"
	"time"
)

type SessionID string
type ParticipantID string
type AppointmentID string

// ProviderKind selects which session client binding is used.
type ProviderKind string

const (
	ProviderCallObject ProviderKind = "callobject"
	ProviderSFU        ProviderKind = "sfu"
)

// SessionRef identifies what the session is for, from the backend's
// point of view. Exactly one of AppointmentID or RoomContext is set.
type SessionRef struct {
	AppointmentID AppointmentID
	RoomContext   string
}

func (r SessionRef) Key() string {
	if r.AppointmentID != "" {
		return "appointment:" + string(r.AppointmentID)
	}
	return "room:" + r.RoomContext
}

// SessionCredential is a single-use credential for one join attempt.
// It is never persisted beyond the attempt.
type SessionCredential struct {
	RoomIdentifier string `json:"roomIdentifier"`
	AuthToken      string `json:"authToken"`
	NumericUID     uint32 `json:"numericParticipantId,omitempty"`
	ProviderAppID  string `json:"providerAppId,omitempty"`
	Role           string `json:"role,omitempty"`
}

// Validate checks that all fields the given provider needs are present.
func (c SessionCredential) Validate(kind ProviderKind) error {
	if c.RoomIdentifier == "" {
		return fmt.Errorf("credential missing room identifier")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("credential missing auth token")
	}
	if kind == ProviderSFU && c.ProviderAppID == "" {
		return fmt.Errorf("credential missing provider app id")
	}
	return nil
}

// SessionState is the provider-agnostic, externally observed state of
// a session.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
	StateReconnecting SessionState = "reconnecting"
	StateEnded        SessionState = "ended"
	StateFailed       SessionState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// ValidTransition reports whether the state machine allows from -> to.
// Idle -> Connecting -> Connected -> (Reconnecting -> Connected)* -> Ended,
// with Connecting/Connected/Reconnecting -> Failed on unrecoverable errors.
func ValidTransition(from, to SessionState) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateConnecting:
		return from == StateIdle
	case StateConnected:
		return from == StateConnecting || from == StateReconnecting
	case StateReconnecting:
		return from == StateConnected
	case StateEnded:
		return true
	case StateFailed:
		return from == StateConnecting || from == StateConnected || from == StateReconnecting
	}
	return false
}

// BillingAnchor selects the event that captures startedAt for billing.
type BillingAnchor string

const (
	// AnchorFirstRemote starts the clock when the first remote
	// participant becomes visible. Default for consultations: the
	// patient is not billed for time spent alone in the room.
	AnchorFirstRemote BillingAnchor = "first_remote"
	// AnchorLocalJoin starts the clock on local join completion.
	AnchorLocalJoin BillingAnchor = "local_join"
)

// EndReason explains why a session ended.
type EndReason string

const (
	EndReasonHangup     EndReason = "hangup"
	EndReasonDisconnect EndReason = "disconnect"
	EndReasonError      EndReason = "error"
	EndReasonSuperseded EndReason = "superseded"
)

// SessionInfo is the read-only view of a session exposed to callers.
type SessionInfo struct {
	ID              SessionID
	Ref             SessionRef
	State           SessionState
	LocalID         ParticipantID
	StartedAt       time.Time
	DurationSeconds int64
	Participants    []ParticipantState
	Warnings        []string
}
