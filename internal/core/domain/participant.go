package domain

// ParticipantState is the reconciled view of one participant. Exactly
// one entry in a session's map has IsLocal = true, and its ID matches
// the ID returned by the join call.
type ParticipantState struct {
	ID           ParticipantID
	IsLocal      bool
	DisplayName  string
	VideoTrack   Track
	AudioTrack   Track
	VideoEnabled bool
	AudioEnabled bool
}

// ParticipantUpdate is a partial update for one participant. Nil
// pointer fields leave the existing value untouched, so an
// audio-track-only update cannot null out an existing video track.
// Clearing a track has to be asked for explicitly.
type ParticipantUpdate struct {
	ID          ParticipantID
	IsLocal     *bool
	DisplayName *string

	VideoTrack      Track
	ClearVideoTrack bool
	AudioTrack      Track
	ClearAudioTrack bool

	VideoEnabled *bool
	AudioEnabled *bool
}

// Apply merges the update into the state field by field.
func (p *ParticipantState) Apply(u ParticipantUpdate) {
	if u.IsLocal != nil {
		p.IsLocal = *u.IsLocal
	}
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.ClearVideoTrack {
		p.VideoTrack = nil
	} else if u.VideoTrack != nil {
		p.VideoTrack = u.VideoTrack
	}
	if u.ClearAudioTrack {
		p.AudioTrack = nil
	} else if u.AudioTrack != nil {
		p.AudioTrack = u.AudioTrack
	}
	if u.VideoEnabled != nil {
		p.VideoEnabled = *u.VideoEnabled
	}
	if u.AudioEnabled != nil {
		p.AudioEnabled = *u.AudioEnabled
	}
}

// Bool returns a pointer for use in ParticipantUpdate literals.
func Bool(v bool) *bool { return &v }

// String returns a pointer for use in ParticipantUpdate literals.
func String(v string) *string { return &v }
