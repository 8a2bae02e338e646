package callobject

import "encoding/json"

// Wire messages exchanged with the room service over the signaling
// websocket. One envelope type, payload keyed by Type.
type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	Token string `json:"token"`
	Role  string `json:"role,omitempty"`
}

type joinAckPayload struct {
	LocalID      string                `json:"local_id"`
	Participants []participantSnapshot `json:"participants"`
}

type participantSnapshot struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name,omitempty"`
	AudioEnabled bool   `json:"audio_enabled"`
	VideoEnabled bool   `json:"video_enabled"`
}

type participantPayload struct {
	ID           string  `json:"id"`
	DisplayName  *string `json:"display_name,omitempty"`
	AudioEnabled *bool   `json:"audio_enabled,omitempty"`
	VideoEnabled *bool   `json:"video_enabled,omitempty"`
}

type trackPayload struct {
	ParticipantID string `json:"participant_id"`
	Kind          string `json:"kind"`
}

type mutePayload struct {
	Kind  string `json:"kind"`
	Muted bool   `json:"muted"`
}

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type icePayload struct {
	Candidate string `json:"candidate"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

const (
	msgJoin         = "join"
	msgJoinAck      = "join-ack"
	msgLeave        = "leave"
	msgMute         = "mute"
	msgOffer        = "offer"
	msgAnswer       = "answer"
	msgICE          = "ice"
	msgJoined       = "joined"
	msgUpdated      = "updated"
	msgLeft         = "left"
	msgTrackStarted = "track-started"
	msgTrackStopped = "track-stopped"
	msgError        = "error"
)

func encode(msgType string, payload interface{}) (message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return message{}, err
	}
	return message{Type: msgType, Payload: raw}, nil
}
