package sinks

import "telecall/internal/core/domain"

// NullSink discards everything. Default when no forward target is
// configured; the session still runs, media is just not surfaced.
type NullSink struct{}

func (NullSink) AttachVideo(track domain.Track) error { return nil }
func (NullSink) AttachAudio(track domain.Track) error { return nil }
func (NullSink) Detach() error                        { return nil }
