package sfu

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/infrastructure/media"
	apperrors "telecall/pkg/errors"
	"telecall/pkg/tracing"
	"telecall/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

const pliInterval = 3 * time.Second

// Config carries the binding's tunables.
type Config struct {
	GatewayURL        string
	ICEServers        []webrtc.ICEServer
	JoinTimeout       time.Duration
	SubscribeTimeout  time.Duration
	ReconnectAttempts int
}

// Client is the SFU provider binding. Joining means entering a named
// channel with an app id, token and numeric uid; remote media is
// announced via user-published messages and each announced track needs
// an explicit per-user-per-kind subscribe before it is playable.
// Connection-state transitions arrive on their own message stream and
// are mapped onto the session state machine.
type Client struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[domain.SessionID]*channelSession
}

type channelSession struct {
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

	// Pending per-user-per-kind subscribes awaiting the gateway ack.
	subMu   sync.Mutex
	pending map[string]chan error
}

func New(cfg Config, logger *zap.SugaredLogger) *Client {
	return &Client{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[domain.SessionID]*channelSession),
	}
}

func (c *Client) Join(ctx context.Context, cred domain.SessionCredential, tracks domain.LocalTracks) (ports.SessionHandle, error) {
	if cred.ProviderAppID == "" {
		return ports.SessionHandle{}, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric,
			fmt.Errorf("credential missing provider app id"))
	}

	ctx, span := tracing.TraceProviderOperation(ctx, "join", string(domain.ProviderSFU), "")
	defer span.End()

	joinCtx, cancel := context.WithTimeout(ctx, c.cfg.JoinTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(joinCtx, c.cfg.GatewayURL, nil)
	if err != nil {
		return ports.SessionHandle{}, apperrors.NewJoinError(apperrors.ErrCodeJoinNetwork, err)
	}

	sess := &channelSession{
		cred:    cred,
		conn:    conn,
		events:  make(chan domain.SessionEvent, 64),
		stop:    make(chan struct{}),
		pending: make(map[string]chan error),
	}

	uid, err := c.handshake(joinCtx, sess)
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
		LocalID:   domain.ParticipantID(strconv.FormatUint(uint64(uid), 10)),
		Provider:  domain.ProviderSFU,
	}

	c.mu.Lock()
	c.sessions[sess.handle.SessionID] = sess
	c.mu.Unlock()

	go c.readLoop(sess)

	return sess.handle, nil
}

func (c *Client) handshake(ctx context.Context, sess *channelSession) (uint32, error) {
	join := gatewayMessage{
		Action:  actionJoin,
		AppID:   sess.cred.ProviderAppID,
		Channel: sess.cred.RoomIdentifier,
		Token:   sess.cred.AuthToken,
		UID:     sess.cred.NumericUID,
	}
	if err := sess.conn.WriteJSON(join); err != nil {
		return 0, apperrors.NewJoinError(apperrors.ErrCodeJoinNetwork, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		sess.conn.SetReadDeadline(deadline)
	}
	defer sess.conn.SetReadDeadline(time.Time{})

	for {
		var msg gatewayMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			return 0, apperrors.NewJoinError(apperrors.ErrCodeJoinNetwork, err)
		}

		switch msg.Action {
		case actionJoined:
			uid := msg.UID
			if uid == 0 {
				uid = sess.cred.NumericUID
			}
			return uid, nil
		case actionError:
			cause := fmt.Errorf("gateway rejected join: %s", msg.Reason)
			if msg.Reason == "invalid-token" || msg.Reason == "token-expired" {
				return 0, apperrors.NewJoinError(apperrors.ErrCodeJoinTokenInvalid, cause)
			}
			return 0, apperrors.NewJoinError(apperrors.ErrCodeJoinGeneric, cause)
		}
	}
}

func (c *Client) buildPeerConnection(sess *channelSession, tracks domain.LocalTracks) (*webrtc.PeerConnection, error) {
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
		// The gateway sets the stream id to the publisher's uid.
		update := domain.ParticipantUpdate{ID: domain.ParticipantID(remote.StreamID())}
		if track.Kind() == domain.MediaVideo {
			update.VideoTrack = track
			go c.keyframeLoop(sess, track)
		} else {
			update.AudioTrack = track
		}
		c.emit(sess, domain.UpsertEvent(update))
	})

	return pc, nil
}

// keyframeLoop nudges the publisher for keyframes while the video track
// is live, so a late subscriber is not stuck waiting on the next
// natural keyframe.
func (c *Client) keyframeLoop(sess *channelSession, track *media.RemoteTrack) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			err := sess.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop(sess *channelSession) {
	for {
		var msg gatewayMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			select {
			case <-sess.stop:
				return
			default:
			}
			c.logger.Errorw("gateway link lost", "session_id", sess.handle.SessionID, "error", err)
			c.emit(sess, domain.ErrorEvent(apperrors.NewUnexpectedDisconnectError(err)))
			c.emit(sess, domain.StateEvent(domain.StateFailed))
			return
		}
		c.dispatch(sess, msg)
	}
}

func (c *Client) dispatch(sess *channelSession, msg gatewayMessage) {
	switch msg.Action {
	case actionUserPublished:
		// Announced media is not playable until subscribed; kick the
		// subscribe off without blocking the read loop.
		go c.subscribe(sess, msg.UID, msg.Kind)

	case actionUserUnpublished:
		update := domain.ParticipantUpdate{ID: uidToParticipant(msg.UID)}
		if msg.Kind == "video" {
			update.ClearVideoTrack = true
			update.VideoEnabled = domain.Bool(false)
		} else {
			update.ClearAudioTrack = true
			update.AudioEnabled = domain.Bool(false)
		}
		c.emit(sess, domain.UpsertEvent(update))

	case actionUserLeft:
		c.emit(sess, domain.RemoveEvent(uidToParticipant(msg.UID)))

	case actionSubscribed:
		c.resolveSubscribe(sess, msg.UID, msg.Kind, nil)

	case actionConnectionState:
		// Separate stream from media events on the wire; folded into
		// the one session state machine here.
		switch msg.State {
		case "connected":
			c.emit(sess, domain.StateEvent(domain.StateConnected))
		case "reconnecting":
			c.emit(sess, domain.StateEvent(domain.StateReconnecting))
		case "disconnected":
			c.emit(sess, domain.ErrorEvent(apperrors.NewUnexpectedDisconnectError(
				fmt.Errorf("gateway reported disconnected"))))
			c.emit(sess, domain.StateEvent(domain.StateFailed))
		}

	case actionOffer:
		if err := sess.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
		}); err != nil {
			c.logger.Warnw("setting remote offer failed", "error", err)
			return
		}
		answer, err := sess.pc.CreateAnswer(nil)
		if err != nil {
			c.logger.Warnw("creating answer failed", "error", err)
			return
		}
		if err := sess.pc.SetLocalDescription(answer); err != nil {
			c.logger.Warnw("setting local answer failed", "error", err)
			return
		}
		if err := c.send(sess, gatewayMessage{Action: actionAnswer, SDP: answer.SDP}); err != nil {
			c.logger.Warnw("sending answer failed", "error", err)
		}

	case actionError:
		err := fmt.Errorf("gateway error: %s", msg.Reason)
		if msg.UID != 0 && msg.Kind != "" {
			c.resolveSubscribe(sess, msg.UID, msg.Kind, err)
			return
		}
		c.emit(sess, domain.ErrorEvent(err))
	}
}

// subscribe asks the gateway for one user's one kind of media and waits
// for the ack. Failure is non-fatal: the error is surfaced on the event
// stream and everything else about the session keeps running.
func (c *Client) subscribe(sess *channelSession, uid uint32, kind string) {
	key := subscribeKey(uid, kind)

	ack := make(chan error, 1)
	sess.subMu.Lock()
	if _, exists := sess.pending[key]; exists {
		sess.subMu.Unlock()
		return
	}
	sess.pending[key] = ack
	sess.subMu.Unlock()

	defer func() {
		sess.subMu.Lock()
		delete(sess.pending, key)
		sess.subMu.Unlock()
	}()

	if err := c.send(sess, gatewayMessage{Action: actionSubscribe, UID: uid, Kind: kind}); err != nil {
		c.emit(sess, domain.ErrorEvent(apperrors.NewSubscribeError(string(uidToParticipant(uid)), err)))
		return
	}

	select {
	case err := <-ack:
		if err != nil {
			c.emit(sess, domain.ErrorEvent(apperrors.NewSubscribeError(string(uidToParticipant(uid)), err)))
			return
		}
		// Playable track follows through OnTrack; flip the flag now so
		// the roster shows the participant publishing.
		update := domain.ParticipantUpdate{ID: uidToParticipant(uid)}
		if kind == "video" {
			update.VideoEnabled = domain.Bool(true)
		} else {
			update.AudioEnabled = domain.Bool(true)
		}
		c.emit(sess, domain.UpsertEvent(update))

	case <-time.After(c.cfg.SubscribeTimeout):
		c.emit(sess, domain.ErrorEvent(apperrors.NewSubscribeError(string(uidToParticipant(uid)),
			fmt.Errorf("subscribe timed out after %s", c.cfg.SubscribeTimeout))))

	case <-sess.stop:
	}
}

func (c *Client) resolveSubscribe(sess *channelSession, uid uint32, kind string, err error) {
	sess.subMu.Lock()
	ack, ok := sess.pending[subscribeKey(uid, kind)]
	sess.subMu.Unlock()
	if ok {
		select {
		case ack <- err:
		default:
		}
	}
}

func (c *Client) Leave(ctx context.Context, handle ports.SessionHandle) error {
	sess, ok := c.lookup(handle)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return c.send(sess, gatewayMessage{Action: actionLeave})
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
	return nil
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
	return c.send(sess, gatewayMessage{Action: actionMute, Kind: kind, Muted: !enabled})
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

		sess.emitMu.Lock()
		sess.disposed = true
		sess.emitMu.Unlock()
		close(sess.events)
	})
	return nil
}

func (c *Client) lookup(handle ports.SessionHandle) (*channelSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[handle.SessionID]
	return sess, ok
}

func (c *Client) send(sess *channelSession, msg gatewayMessage) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteJSON(msg)
}

func (c *Client) emit(sess *channelSession, ev domain.SessionEvent) {
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

func subscribeKey(uid uint32, kind string) string {
	return strconv.FormatUint(uint64(uid), 10) + "/" + kind
}

func uidToParticipant(uid uint32) domain.ParticipantID {
	return domain.ParticipantID(strconv.FormatUint(uint64(uid), 10))
}
