package media

import (
	"telecall/internal/core/domain"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack adapts an inbound peer connection track to the domain
// surface. It also exposes the raw RTP stream, which is what the UDP
// forward sink consumes.
type RemoteTrack struct {
	inner *webrtc.TrackRemote
	kind  domain.MediaKind
}

func NewRemoteTrack(inner *webrtc.TrackRemote) *RemoteTrack {
	kind := domain.MediaAudio
	if inner.Kind() == webrtc.RTPCodecTypeVideo {
		kind = domain.MediaVideo
	}
	return &RemoteTrack{inner: inner, kind: kind}
}

func (t *RemoteTrack) ID() string             { return t.inner.ID() }
func (t *RemoteTrack) Kind() domain.MediaKind { return t.kind }

// Close is a no-op: remote track lifetime belongs to the peer
// connection, not to us.
func (t *RemoteTrack) Close() error { return nil }

func (t *RemoteTrack) ReadRTP() (*rtp.Packet, error) {
	packet, _, err := t.inner.ReadRTP()
	return packet, err
}

// SSRC identifies the track's RTP stream for RTCP feedback.
func (t *RemoteTrack) SSRC() webrtc.SSRC { return t.inner.SSRC() }
