package services

import (
	"testing"

	"telecall/internal/core/domain"

	"go.uber.org/zap/zaptest"
)

func newTestReconciler(t *testing.T) (*Reconciler, *fakeRegistry) {
	registry := newFakeRegistry()
	return NewReconciler("local-1", registry, zaptest.NewLogger(t).Sugar()), registry
}

func TestReconcilerMergesFieldByField(t *testing.T) {
	r, _ := newTestReconciler(t)
	video := &fakeTrack{id: "v1", kind: domain.MediaVideo}
	audio := &fakeTrack{id: "a1", kind: domain.MediaAudio}

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1", VideoTrack: video}))
	// An audio-only update must leave the video track in place.
	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1", AudioTrack: audio}))

	state, ok := r.Get("remote-1")
	if !ok {
		t.Fatal("participant missing")
	}
	if state.VideoTrack != video {
		t.Error("video track was clobbered by audio update")
	}
	if state.AudioTrack != audio {
		t.Error("audio track not applied")
	}
}

func TestReconcilerClearTrackIsExplicit(t *testing.T) {
	r, _ := newTestReconciler(t)
	video := &fakeTrack{id: "v1", kind: domain.MediaVideo}

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1", VideoTrack: video}))
	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1", ClearVideoTrack: true}))

	state, _ := r.Get("remote-1")
	if state.VideoTrack != nil {
		t.Error("expected video track cleared")
	}
}

func TestReconcilerLocalFlagOnlyForJoinReturnedID(t *testing.T) {
	r, _ := newTestReconciler(t)

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "local-1", IsLocal: domain.Bool(true)}))
	// A buggy upstream event claiming another participant is local must
	// not produce a second local entry.
	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1", IsLocal: domain.Bool(true)}))

	locals := 0
	for _, p := range r.Snapshot() {
		if p.IsLocal {
			locals++
			if p.ID != "local-1" {
				t.Errorf("wrong participant marked local: %s", p.ID)
			}
		}
	}
	if locals != 1 {
		t.Errorf("expected exactly one local participant, got %d", locals)
	}
}

func TestReconcilerBindsTracksToRegisteredSink(t *testing.T) {
	r, registry := newTestReconciler(t)
	sink := &fakeSink{}
	registry.Register("remote-1", sink)
	video := &fakeTrack{id: "v1", kind: domain.MediaVideo}

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1", VideoTrack: video}))

	if sink.currentVideo() != video {
		t.Error("expected video track attached to sink")
	}
}

func TestReconcilerRemoveDetachesSink(t *testing.T) {
	r, registry := newTestReconciler(t)
	sink := &fakeSink{}
	registry.Register("remote-1", sink)

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1", VideoTrack: &fakeTrack{id: "v1", kind: domain.MediaVideo}}))
	r.Apply(domain.RemoveEvent("remote-1"))

	if _, ok := r.Get("remote-1"); ok {
		t.Error("participant should be gone")
	}
	if sink.detachCount() != 1 {
		t.Errorf("expected one detach, got %d", sink.detachCount())
	}

	// Removing an unknown participant is a no-op.
	r.Apply(domain.RemoveEvent("remote-1"))
	if sink.detachCount() != 1 {
		t.Errorf("remove of absent participant should not detach again, got %d", sink.detachCount())
	}
}

func TestReconcilerRemoteCount(t *testing.T) {
	r, _ := newTestReconciler(t)

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "local-1"}))
	if n := r.RemoteCount(); n != 0 {
		t.Errorf("local participant counted as remote: %d", n)
	}

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1"}))
	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-2"}))
	if n := r.RemoteCount(); n != 2 {
		t.Errorf("expected 2 remotes, got %d", n)
	}
}

func TestReconcilerClearDetachesEverything(t *testing.T) {
	r, registry := newTestReconciler(t)
	sinkA := &fakeSink{}
	sinkB := &fakeSink{}
	registry.Register("remote-1", sinkA)
	registry.Register("remote-2", sinkB)

	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-1"}))
	r.Apply(domain.UpsertEvent(domain.ParticipantUpdate{ID: "remote-2"}))
	r.Clear()

	if len(r.Snapshot()) != 0 {
		t.Error("expected empty map after clear")
	}
	if sinkA.detachCount() != 1 || sinkB.detachCount() != 1 {
		t.Errorf("expected both sinks detached, got %d and %d", sinkA.detachCount(), sinkB.detachCount())
	}
}
