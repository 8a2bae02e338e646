package ports

import (
	"context"

	"telecall/internal/core/domain"
)

// DeviceEnumerator lists capture devices. The prober turns enumeration
// failures into empty capabilities; it never blocks a session by itself.
type DeviceEnumerator interface {
	Enumerate(ctx context.Context) ([]domain.DeviceInfo, error)
}

// TrackSource acquires local capture tracks. Acquisition can block for
// seconds (permission prompts, device warm-up); callers pass a context.
type TrackSource interface {
	AcquireAudio(ctx context.Context) (domain.Track, error)
	AcquireVideo(ctx context.Context) (domain.Track, error)
}

// MediaSink is the externally owned rendering target for one
// participant. The core only ever attaches and detaches; it never
// constructs or destroys the sink.
type MediaSink interface {
	AttachVideo(track domain.Track) error
	AttachAudio(track domain.Track) error
	Detach() error
}

// SinkRegistry maps participant IDs to their sinks. Each ID maps to at
// most one sink.
type SinkRegistry interface {
	Register(id domain.ParticipantID, sink MediaSink)
	Lookup(id domain.ParticipantID) (MediaSink, bool)
	Unregister(id domain.ParticipantID)
}
