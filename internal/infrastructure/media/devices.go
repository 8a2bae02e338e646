package media

import (
	"context"
	"fmt"

	"telecall/internal/core/domain"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"
)

// Enumerator lists the host's capture devices.
type Enumerator struct {
	logger *zap.SugaredLogger
}

func NewEnumerator(logger *zap.SugaredLogger) *Enumerator {
	return &Enumerator{logger: logger}
}

func (e *Enumerator) Enumerate(ctx context.Context) ([]domain.DeviceInfo, error) {
	devices := mediadevices.EnumerateDevices()

	var out []domain.DeviceInfo
	for _, d := range devices {
		switch d.Kind {
		case mediadevices.VideoInput:
			out = append(out, domain.DeviceInfo{DeviceID: d.DeviceID, Label: d.Label, Kind: domain.MediaVideo})
		case mediadevices.AudioInput:
			out = append(out, domain.DeviceInfo{DeviceID: d.DeviceID, Label: d.Label, Kind: domain.MediaAudio})
		}
	}
	return out, nil
}

// Source acquires capture tracks through the host media stack, encoded
// with VP8 and Opus so either provider binding can publish them as-is.
type Source struct {
	selector *mediadevices.CodecSelector
	logger   *zap.SugaredLogger
}

func NewSource(videoBitrate, audioBitrate int, logger *zap.SugaredLogger) (*Source, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("creating VP8 params: %w", err)
	}
	vpxParams.BitRate = videoBitrate
	vpxParams.KeyFrameInterval = 15

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("creating Opus params: %w", err)
	}
	opusParams.BitRate = audioBitrate
	opusParams.Latency = opus.Latency20ms

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	return &Source{selector: selector, logger: logger}, nil
}

func (s *Source) AcquireAudio(ctx context.Context) (domain.Track, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("opening microphone: %w", err)
	}
	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("microphone opened but produced no track")
	}
	return &localTrack{inner: tracks[0], kind: domain.MediaAudio}, nil
}

func (s *Source) AcquireVideo(ctx context.Context) (domain.Track, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(1280)
			c.Height = prop.Int(720)
		},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("opening camera: %w", err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("camera opened but produced no track")
	}
	return &localTrack{inner: tracks[0], kind: domain.MediaVideo}, nil
}

// localTrack adapts a capture track to the domain surface while keeping
// the underlying track reachable for the provider bindings.
type localTrack struct {
	inner mediadevices.Track
	kind  domain.MediaKind
}

func (t *localTrack) ID() string             { return t.inner.ID() }
func (t *localTrack) Kind() domain.MediaKind { return t.kind }
func (t *localTrack) Close() error           { return t.inner.Close() }

// Unwrap exposes the capture track so a binding can add it to a peer
// connection.
func (t *localTrack) Unwrap() mediadevices.Track { return t.inner }

// UnwrapLocal returns the underlying capture track when the domain
// track came from this package.
func UnwrapLocal(track domain.Track) (mediadevices.Track, bool) {
	lt, ok := track.(*localTrack)
	if !ok {
		return nil, false
	}
	return lt.inner, true
}
