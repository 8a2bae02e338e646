package callobject

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/infrastructure/media"
	apperrors "telecall/pkg/errors"
	"telecall/pkg/retry"
	"telecall/pkg/tracing"
	"telecall/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// Config carries the binding's tunables.
type Config struct {
	ICEServers        []webrtc.ICEServer
	JoinTimeout       time.Duration
	ReconnectAttempts int
}

// Client is the call-object provider binding. One object per session
// owns both the signaling link (websocket) and the media transport
// (peer connection); after the join acknowledgement it receives a full
// participant snapshot, then incremental joined/updated/left and
// track-started/track-stopped messages.
type Client struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[domain.SessionID]*callSession
}

type callSession struct {
	handle ports.SessionHandle
	cred   domain.SessionCredential

	writeMu sync.Mutex
	conn    *websocket.Conn
	pc      *webrtc.PeerConnection

	events      chan domain.SessionEvent
	stop        chan struct{}
	disposeOnce sync.Once

	emitMu   sync.RWMutex
	disposed bool
}

func New(cfg Config, logger *zap.SugaredLogger) *Client {
	return &Client{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[domain.SessionID]*callSession),
	}
}

// Join dials the room service, completes the join handshake, publishes
// the local tracks and seeds the snapshot into the event stream.
func (c *Client) Join(ctx context.Context, cred domain.SessionCredential, tracks domain.LocalTracks) (ports.SessionHandle, error) {
	ctx, span := tracing.TraceProviderOperation(ctx, "join", string(domain.ProviderCallObject), "")
	defer span.End()

	joinCtx, cancel := context.WithTimeout(ctx, c.cfg.JoinTimeout)
	defer cancel()

	wsURL, err := signalingURL(cred.RoomIdentifier)
	if err != nil {
		return ports.SessionHandle{}, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric, err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(joinCtx, wsURL, nil)
	if err != nil {
		return ports.SessionHandle{}, apperrors.NewJoinError(apperrors.ErrCodeJoinNetwork, err)
	}

	sess := &callSession{
		cred:   cred,
		conn:   conn,
		events: make(chan domain.SessionEvent, 64),
		stop:   make(chan struct{}),
	}

	ack, err := c.handshake(joinCtx, sess)
	if err != nil {
		conn.Close()
		return ports.SessionHandle{}, err
	}

	pc, err := c.buildPeerConnection(sess, tracks)
	if err != nil {
		conn.Close()
		return ports.SessionHandle{}, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric, err)
	}
	sess.pc = pc

	sess.handle = ports.SessionHandle{
		SessionID: domain.SessionID(utils.GenerateSessionID()),
		LocalID:   domain.ParticipantID(ack.LocalID),
		Provider:  domain.ProviderCallObject,
	}

	c.mu.Lock()
	c.sessions[sess.handle.SessionID] = sess
	c.mu.Unlock()

	// Snapshot before incrementals: every participant already in the
	// room shows up without waiting for their next update.
	for _, p := range ack.Participants {
		if p.ID == ack.LocalID {
			continue
		}
		c.emit(sess, domain.UpsertEvent(domain.ParticipantUpdate{
			ID:           domain.ParticipantID(p.ID),
			DisplayName:  domain.String(p.DisplayName),
			AudioEnabled: domain.Bool(p.AudioEnabled),
			VideoEnabled: domain.Bool(p.VideoEnabled),
		}))
	}

	if err := c.sendOffer(sess); err != nil {
		c.logger.Warnw("initial offer failed", "session_id", sess.handle.SessionID, "error", err)
	}

	go c.readLoop(sess)

	return sess.handle, nil
}

// handshake sends the join message and waits for the acknowledgement,
// classifying the failure modes the user can tell apart.
func (c *Client) handshake(ctx context.Context, sess *callSession) (*joinAckPayload, error) {
	join, err := encode(msgJoin, joinPayload{Token: sess.cred.AuthToken, Role: sess.cred.Role})
	if err != nil {
		return nil, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric, err)
	}
	if err := sess.conn.WriteJSON(join); err != nil {
		return nil, apperrors.NewJoinError(apperrors.ErrCodeJoinNetwork, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		sess.conn.SetReadDeadline(deadline)
	}
	defer sess.conn.SetReadDeadline(time.Time{})

	for {
		var msg message
		if err := sess.conn.ReadJSON(&msg); err != nil {
			return nil, apperrors.NewJoinError(apperrors.ErrCodeJoinNetwork, err)
		}

		switch msg.Type {
		case msgJoinAck:
			var ack joinAckPayload
			if err := json.Unmarshal(msg.Payload, &ack); err != nil {
				return nil, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric, err)
			}
			if ack.LocalID == "" {
				return nil, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric,
					fmt.Errorf("join acknowledgement missing local id"))
			}
			return &ack, nil

		case msgError:
			var ep errorPayload
			json.Unmarshal(msg.Payload, &ep)
			cause := fmt.Errorf("room service error %s: %s", ep.Code, ep.Message)
			if ep.Code == "invalid-token" || ep.Code == "token-expired" {
				return nil, apperrors.NewJoinError(apperrors.ErrCodeJoinTokenInvalid, cause)
			}
			return nil, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric, cause)

		default:
			// Anything else before the ack is noise.
		}
	}
}

func (c *Client) buildPeerConnection(sess *callSession, tracks domain.LocalTracks) (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: c.cfg.ICEServers})
	if err != nil {
		return nil, err
	}

	for _, track := range []domain.Track{tracks.Audio, tracks.Video} {
		if track == nil {
			continue
		}
		local, ok := media.UnwrapLocal(track)
		if !ok {
			continue
		}
		if _, err := pc.AddTrack(local); err != nil {
			pc.Close()
			return nil, fmt.Errorf("publishing %s track: %w", track.Kind(), err)
		}
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		track := media.NewRemoteTrack(remote)
		// The room service sets the stream id to the participant id.
		update := domain.ParticipantUpdate{ID: domain.ParticipantID(remote.StreamID())}
		if track.Kind() == domain.MediaVideo {
			update.VideoTrack = track
		} else {
			update.AudioTrack = track
		}
		c.emit(sess, domain.UpsertEvent(update))
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if err := c.send(sess, msgICE, icePayload{Candidate: candidate.ToJSON().Candidate}); err != nil {
			c.logger.Debugw("ice candidate send failed", "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed:
			c.emit(sess, domain.ErrorEvent(apperrors.NewUnexpectedDisconnectError(
				fmt.Errorf("peer connection failed"))))
			c.emit(sess, domain.StateEvent(domain.StateFailed))
		case webrtc.PeerConnectionStateDisconnected:
			c.emit(sess, domain.StateEvent(domain.StateReconnecting))
		case webrtc.PeerConnectionStateConnected:
			c.emit(sess, domain.StateEvent(domain.StateConnected))
		}
	})

	return pc, nil
}

func (c *Client) sendOffer(sess *callSession) error {
	offer, err := sess.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := sess.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return c.send(sess, msgOffer, sdpPayload{SDP: offer.SDP})
}

// readLoop drives the session after join: incremental room messages,
// SDP answers and trickled ICE. A broken link goes through bounded
// reconnection before the session is declared failed.
func (c *Client) readLoop(sess *callSession) {
	for {
		var msg message
		if err := sess.conn.ReadJSON(&msg); err != nil {
			select {
			case <-sess.stop:
				return
			default:
			}
			if !c.reconnect(sess) {
				return
			}
			continue
		}
		c.dispatch(sess, msg)
	}
}

func (c *Client) dispatch(sess *callSession, msg message) {
	switch msg.Type {
	case msgJoined, msgUpdated:
		var p participantPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.logger.Warnw("bad participant message", "type", msg.Type, "error", err)
			return
		}
		c.emit(sess, domain.UpsertEvent(domain.ParticipantUpdate{
			ID:           domain.ParticipantID(p.ID),
			DisplayName:  p.DisplayName,
			AudioEnabled: p.AudioEnabled,
			VideoEnabled: p.VideoEnabled,
		}))

	case msgLeft:
		var p participantPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		c.emit(sess, domain.RemoveEvent(domain.ParticipantID(p.ID)))

	case msgTrackStarted:
		// The playable track arrives through OnTrack; this message only
		// flips the enabled flag.
		var tp trackPayload
		if err := json.Unmarshal(msg.Payload, &tp); err != nil {
			return
		}
		update := domain.ParticipantUpdate{ID: domain.ParticipantID(tp.ParticipantID)}
		if tp.Kind == "video" {
			update.VideoEnabled = domain.Bool(true)
		} else {
			update.AudioEnabled = domain.Bool(true)
		}
		c.emit(sess, domain.UpsertEvent(update))

	case msgTrackStopped:
		var tp trackPayload
		if err := json.Unmarshal(msg.Payload, &tp); err != nil {
			return
		}
		update := domain.ParticipantUpdate{ID: domain.ParticipantID(tp.ParticipantID)}
		if tp.Kind == "video" {
			update.ClearVideoTrack = true
			update.VideoEnabled = domain.Bool(false)
		} else {
			update.ClearAudioTrack = true
			update.AudioEnabled = domain.Bool(false)
		}
		c.emit(sess, domain.UpsertEvent(update))

	case msgAnswer:
		var sdp sdpPayload
		if err := json.Unmarshal(msg.Payload, &sdp); err != nil {
			return
		}
		if err := sess.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer, SDP: sdp.SDP,
		}); err != nil {
			c.logger.Warnw("setting remote answer failed", "error", err)
		}

	case msgICE:
		var ice icePayload
		if err := json.Unmarshal(msg.Payload, &ice); err != nil {
			return
		}
		if err := sess.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: ice.Candidate}); err != nil {
			c.logger.Debugw("adding remote ice candidate failed", "error", err)
		}

	case msgError:
		var ep errorPayload
		json.Unmarshal(msg.Payload, &ep)
		c.emit(sess, domain.ErrorEvent(fmt.Errorf("room service error %s: %s", ep.Code, ep.Message)))
	}
}

// reconnect redials the signaling link. Returns false when the session
// is being disposed or the attempts are exhausted; in the latter case
// the session is declared failed.
func (c *Client) reconnect(sess *callSession) bool {
	c.emit(sess, domain.StateEvent(domain.StateReconnecting))

	retryCfg := retry.DefaultConfig()
	if c.cfg.ReconnectAttempts > 0 {
		retryCfg.MaxAttempts = c.cfg.ReconnectAttempts
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.JoinTimeout)
	defer cancel()

	err := retry.Retry(ctx, retryCfg, func() error {
		select {
		case <-sess.stop:
			return context.Canceled
		default:
		}

		wsURL, uerr := signalingURL(sess.cred.RoomIdentifier)
		if uerr != nil {
			return uerr
		}
		conn, _, derr := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if derr != nil {
			return derr
		}

		sess.writeMu.Lock()
		old := sess.conn
		sess.conn = conn
		sess.writeMu.Unlock()
		old.Close()

		join, eerr := encode(msgJoin, joinPayload{Token: sess.cred.AuthToken, Role: sess.cred.Role})
		if eerr != nil {
			return eerr
		}
		return c.send(sess, "", nil, join)
	})

	select {
	case <-sess.stop:
		return false
	default:
	}

	if err != nil {
		c.logger.Errorw("signaling reconnect exhausted", "session_id", sess.handle.SessionID, "error", err)
		c.emit(sess, domain.ErrorEvent(apperrors.NewUnexpectedDisconnectError(err)))
		c.emit(sess, domain.StateEvent(domain.StateFailed))
		return false
	}

	c.logger.Infow("signaling link reestablished", "session_id", sess.handle.SessionID)
	c.emit(sess, domain.StateEvent(domain.StateConnected))
	return true
}

func (c *Client) Leave(ctx context.Context, handle ports.SessionHandle) error {
	sess, ok := c.lookup(handle)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return c.send(sess, msgLeave, struct{}{})
}

func (c *Client) Publish(ctx context.Context, handle ports.SessionHandle, tracks domain.LocalTracks) error {
	sess, ok := c.lookup(handle)
	if !ok {
		return domain.ErrSessionNotFound
	}

	for _, track := range []domain.Track{tracks.Audio, tracks.Video} {
		if track == nil {
			continue
		}
		local, ok := media.UnwrapLocal(track)
		if !ok {
			continue
		}
		if _, err := sess.pc.AddTrack(local); err != nil {
			return fmt.Errorf("publishing %s track: %w", track.Kind(), err)
		}
	}
	return c.sendOffer(sess)
}

func (c *Client) ToggleAudio(ctx context.Context, handle ports.SessionHandle, enabled bool) error {
	return c.toggle(handle, "audio", enabled)
}

func (c *Client) ToggleVideo(ctx context.Context, handle ports.SessionHandle, enabled bool) error {
	return c.toggle(handle, "video", enabled)
}

func (c *Client) toggle(handle ports.SessionHandle, kind string, enabled bool) error {
	sess, ok := c.lookup(handle)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return c.send(sess, msgMute, mutePayload{Kind: kind, Muted: !enabled})
}

func (c *Client) Events(handle ports.SessionHandle) <-chan domain.SessionEvent {
	sess, ok := c.lookup(handle)
	if !ok {
		closed := make(chan domain.SessionEvent)
		close(closed)
		return closed
	}
	return sess.events
}

// Dispose closes signaling and media and the event channel. Idempotent;
// the only sanctioned teardown path.
func (c *Client) Dispose(handle ports.SessionHandle) error {
	sess, ok := c.lookup(handle)
	if !ok {
		return nil
	}

	sess.disposeOnce.Do(func() {
		close(sess.stop)

		sess.writeMu.Lock()
		sess.conn.Close()
		sess.writeMu.Unlock()

		if sess.pc != nil {
			if err := sess.pc.Close(); err != nil {
				c.logger.Warnw("peer connection close failed", "session_id", handle.SessionID, "error", err)
			}
		}

		c.mu.Lock()
		delete(c.sessions, handle.SessionID)
		c.mu.Unlock()

		// Flip the flag under the write lock so no emit can race the
		// channel close.
		sess.emitMu.Lock()
		sess.disposed = true
		sess.emitMu.Unlock()
		close(sess.events)
	})
	return nil
}

func (c *Client) lookup(handle ports.SessionHandle) (*callSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[handle.SessionID]
	return sess, ok
}

// send writes one message under the connection write lock. A prebuilt
// message can be passed to skip encoding.
func (c *Client) send(sess *callSession, msgType string, payload interface{}, prebuilt ...message) error {
	var msg message
	if len(prebuilt) > 0 {
		msg = prebuilt[0]
	} else {
		var err error
		msg, err = encode(msgType, payload)
		if err != nil {
			return err
		}
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteJSON(msg)
}

// emit delivers an event unless the session is disposed. Drops on a
// full buffer rather than block a transport callback.
func (c *Client) emit(sess *callSession, ev domain.SessionEvent) {
	sess.emitMu.RLock()
	defer sess.emitMu.RUnlock()
	if sess.disposed {
		return
	}
	select {
	case sess.events <- ev:
	default:
		c.logger.Warnw("event buffer full, dropping event", "session_id", sess.handle.SessionID, "type", ev.Type)
	}
}

// signalingURL maps the backend-issued room URL onto the websocket
// endpoint.
func signalingURL(roomIdentifier string) (string, error) {
	u, err := url.Parse(roomIdentifier)
	if err != nil {
		return "", fmt.Errorf("bad room identifier: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported room identifier scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/signal") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/signal"
	}
	return u.String(), nil
}
