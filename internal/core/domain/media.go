package domain

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Track is the minimal surface the core needs from a media track. The
// provider bindings wrap their SDK track types behind this; the core
// never touches SDK-internal types.
type Track interface {
	ID() string
	Kind() MediaKind
	Close() error
}

// DeviceInfo describes one enumerated capture device.
type DeviceInfo struct {
	DeviceID string
	Label    string
	Kind     MediaKind
}

// DeviceCapabilities is recomputed at session start and never persisted.
type DeviceCapabilities struct {
	HasAudioInput bool
	HasVideoInput bool
}

// LocalTracks holds the local capture tracks for one session. Either
// track may be nil when acquisition partially failed. The lifecycle
// controller owns the acquire/release pairing; releasing on every
// teardown path is what keeps hardware devices from staying locked.
type LocalTracks struct {
	Audio Track
	Video Track
}

func (t LocalTracks) Empty() bool {
	return t.Audio == nil && t.Video == nil
}

// Close releases both tracks. Safe on nil tracks; the first error is
// returned but the second track is still closed.
func (t *LocalTracks) Close() error {
	var first error
	if t.Audio != nil {
		if err := t.Audio.Close(); err != nil {
			first = err
		}
		t.Audio = nil
	}
	if t.Video != nil {
		if err := t.Video.Close(); err != nil && first == nil {
			first = err
		}
		t.Video = nil
	}
	return first
}
