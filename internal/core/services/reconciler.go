package services

import (
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"go.uber.org/zap"
)

// Reconciler owns the authoritative participant map for one session.
// Every inbound event is applied through the single Apply reducer, so
// all mutation happens in one place against the current map state; the
// event loop in the manager feeds it from one goroutine. Apply merges
// updates field by field: a rapid track-started/track-stopped interleave
// for one kind never clobbers the other kind's track.
type Reconciler struct {
	mu           sync.RWMutex
	localID      domain.ParticipantID
	participants map[domain.ParticipantID]*domain.ParticipantState
	sinks        ports.SinkRegistry
	logger       *zap.SugaredLogger
}

func NewReconciler(localID domain.ParticipantID, sinks ports.SinkRegistry, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		localID:      localID,
		participants: make(map[domain.ParticipantID]*domain.ParticipantState),
		sinks:        sinks,
		logger:       logger,
	}
}

// Apply reduces one normalized event into the map. Events for the same
// participant must be fed in receipt order; cross-participant order is
// irrelevant.
func (r *Reconciler) Apply(ev domain.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case domain.EventParticipantUpserted:
		if ev.Update == nil {
			return
		}
		r.upsert(*ev.Update)
	case domain.EventParticipantRemoved:
		r.remove(ev.Removed)
	}
}

func (r *Reconciler) upsert(u domain.ParticipantUpdate) {
	if u.IsLocal != nil && *u.IsLocal && u.ID != r.localID {
		// The only entry allowed to be local is the one whose id the
		// join call returned.
		r.logger.Warnw("dropping local flag on foreign participant update",
			"participant_id", u.ID, "local_id", r.localID)
		u.IsLocal = nil
	}

	state, ok := r.participants[u.ID]
	if !ok {
		state = &domain.ParticipantState{ID: u.ID, IsLocal: u.ID == r.localID}
		r.participants[u.ID] = state
	}
	state.Apply(u)

	r.bindSink(state)
}

func (r *Reconciler) remove(id domain.ParticipantID) {
	if _, ok := r.participants[id]; !ok {
		return
	}
	delete(r.participants, id)

	// Detach so the sink does not keep a stale frozen frame.
	if sink, ok := r.sinks.Lookup(id); ok {
		if err := sink.Detach(); err != nil {
			r.logger.Warnw("sink detach failed", "participant_id", id, "error", err)
		}
	}
}

// bindSink pushes the participant's current tracks (or their absence)
// to the registered sink.
func (r *Reconciler) bindSink(state *domain.ParticipantState) {
	sink, ok := r.sinks.Lookup(state.ID)
	if !ok {
		return
	}
	if err := sink.AttachVideo(state.VideoTrack); err != nil {
		r.logger.Warnw("video attach failed", "participant_id", state.ID, "error", err)
	}
	if err := sink.AttachAudio(state.AudioTrack); err != nil {
		r.logger.Warnw("audio attach failed", "participant_id", state.ID, "error", err)
	}
}

// Get returns a copy of one participant's state.
func (r *Reconciler) Get(id domain.ParticipantID) (domain.ParticipantState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.participants[id]
	if !ok {
		return domain.ParticipantState{}, false
	}
	return *state, true
}

// RemoteCount reports how many non-local participants are visible.
func (r *Reconciler) RemoteCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.participants {
		if !p.IsLocal {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the participant map for read-only callers.
func (r *Reconciler) Snapshot() []domain.ParticipantState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ParticipantState, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

// Clear detaches every sink and empties the map. Called once from the
// lifecycle teardown sequence.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.participants {
		if sink, ok := r.sinks.Lookup(id); ok {
			if err := sink.Detach(); err != nil {
				r.logger.Warnw("sink detach failed during clear", "participant_id", id, "error", err)
			}
		}
		delete(r.participants, id)
	}
}
