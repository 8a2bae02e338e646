package sinks

import (
	"fmt"
	"net"
	"sync"

	"telecall/internal/core/domain"

	"github.com/pion/rtp"
	"go.uber.org/zap"
)

// RTPStreamer is implemented by remote tracks that expose their RTP
// packet stream. Tracks that do not stream RTP (local capture tracks)
// are silently ignored by the forwarder.
type RTPStreamer interface {
	ReadRTP() (*rtp.Packet, error)
}

// UDPForwarder relays a participant's RTP packets to fixed UDP ports,
// one per kind. It is the headless stand-in for a rendering surface:
// a recorder or an operator's player listens on the other end.
type UDPForwarder struct {
	host      string
	videoPort int
	audioPort int
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	videoStop chan struct{}
	audioStop chan struct{}
}

func NewUDPForwarder(host string, videoPort, audioPort int, logger *zap.SugaredLogger) *UDPForwarder {
	return &UDPForwarder{
		host:      host,
		videoPort: videoPort,
		audioPort: audioPort,
		logger:    logger,
	}
}

func (f *UDPForwarder) AttachVideo(track domain.Track) error {
	return f.attach(track, domain.MediaVideo, f.videoPort, &f.videoStop)
}

func (f *UDPForwarder) AttachAudio(track domain.Track) error {
	return f.attach(track, domain.MediaAudio, f.audioPort, &f.audioStop)
}

func (f *UDPForwarder) attach(track domain.Track, kind domain.MediaKind, port int, stop *chan struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Re-attach replaces the running relay for this kind.
	if *stop != nil {
		close(*stop)
		*stop = nil
	}
	if track == nil {
		return nil
	}

	streamer, ok := track.(RTPStreamer)
	if !ok {
		return nil
	}

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d", f.host, port))
	if err != nil {
		return fmt.Errorf("dialing forward target: %w", err)
	}

	ch := make(chan struct{})
	*stop = ch
	go f.relay(streamer, conn, kind, ch)
	return nil
}

func (f *UDPForwarder) relay(streamer RTPStreamer, conn net.Conn, kind domain.MediaKind, stop <-chan struct{}) {
	defer conn.Close()

	buf := make([]byte, 1500)
	for {
		select {
		case <-stop:
			return
		default:
		}

		packet, err := streamer.ReadRTP()
		if err != nil {
			f.logger.Debugw("rtp stream ended", "kind", kind, "error", err)
			return
		}
		n, err := packet.MarshalTo(buf)
		if err != nil {
			f.logger.Warnw("rtp marshal failed", "kind", kind, "error", err)
			continue
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			f.logger.Warnw("udp forward write failed", "kind", kind, "error", err)
			return
		}
	}
}

func (f *UDPForwarder) Detach() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.videoStop != nil {
		close(f.videoStop)
		f.videoStop = nil
	}
	if f.audioStop != nil {
		close(f.audioStop)
		f.audioStop = nil
	}
	return nil
}
