package domain

// EventType enumerates the normalized event vocabulary both provider
// bindings reduce their SDK callbacks to.
type EventType string

const (
	EventParticipantUpserted EventType = "participant-upserted"
	EventParticipantRemoved  EventType = "participant-removed"
	EventStateChanged        EventType = "state-changed"
	EventSessionError        EventType = "session-error"
)

// SessionEvent is one normalized inbound event. Exactly the fields for
// its Type are set. Events for the same participant ID are delivered in
// receipt order; no ordering is guaranteed across IDs.
type SessionEvent struct {
	Type    EventType
	Update  *ParticipantUpdate // EventParticipantUpserted
	Removed ParticipantID      // EventParticipantRemoved
	State   SessionState       // EventStateChanged
	Err     error              // EventSessionError
}

func UpsertEvent(u ParticipantUpdate) SessionEvent {
	return SessionEvent{Type: EventParticipantUpserted, Update: &u}
}

func RemoveEvent(id ParticipantID) SessionEvent {
	return SessionEvent{Type: EventParticipantRemoved, Removed: id}
}

func StateEvent(s SessionState) SessionEvent {
	return SessionEvent{Type: EventStateChanged, State: s}
}

func ErrorEvent(err error) SessionEvent {
	return SessionEvent{Type: EventSessionError, Err: err}
}
