package sinks

import (
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

// Factory provisions a sink for a participant that has none yet.
type Factory func(id domain.ParticipantID) ports.MediaSink

// Registry maps participant IDs to their externally owned media sinks.
// The reconciler attaches and detaches through it; the control layer
// registers and unregisters. With a factory set, a participant's first
// lookup provisions a sink instead of missing.
type Registry struct {
	mu      sync.RWMutex
	sinks   map[domain.ParticipantID]ports.MediaSink
	factory Factory
}

func NewRegistry() *Registry {
	return &Registry{sinks: make(map[domain.ParticipantID]ports.MediaSink)}
}

func NewProvisioningRegistry(factory Factory) *Registry {
	return &Registry{
		sinks:   make(map[domain.ParticipantID]ports.MediaSink),
		factory: factory,
	}
}

func (r *Registry) Register(id domain.ParticipantID, sink ports.MediaSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = sink
}

func (r *Registry) Lookup(id domain.ParticipantID) (ports.MediaSink, bool) {
	r.mu.RLock()
	sink, ok := r.sinks[id]
	r.mu.RUnlock()
	if ok || r.factory == nil {
		return sink, ok
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sink, ok := r.sinks[id]; ok {
		return sink, true
	}
	sink = r.factory(id)
	r.sinks[id] = sink
	return sink, true
}

func (r *Registry) Unregister(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, id)
}
