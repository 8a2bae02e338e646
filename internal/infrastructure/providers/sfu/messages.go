package sfu

// Wire messages exchanged with the SFU gateway. Flat action-tagged
// JSON, matching the gateway's channel protocol.
type gatewayMessage struct {
	Action  string `json:"action"`
	AppID   string `json:"app_id,omitempty"`
	Channel string `json:"channel,omitempty"`
	Token   string `json:"token,omitempty"`
	UID     uint32 `json:"uid,omitempty"`
	Kind    string `json:"kind,omitempty"`
	State   string `json:"state,omitempty"`
	SDP     string `json:"sdp,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
}

const (
	actionJoin            = "join"
	actionJoined          = "joined"
	actionLeave           = "leave"
	actionSubscribe       = "subscribe"
	actionSubscribed      = "subscribed"
	actionMute            = "mute"
	actionUserPublished   = "user-published"
	actionUserUnpublished = "user-unpublished"
	actionUserLeft        = "user-left"
	actionConnectionState = "connection-state"
	actionOffer           = "offer"
	actionAnswer          = "answer"
	actionError           = "error"
)
