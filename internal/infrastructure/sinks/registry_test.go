package sinks

import (
	"testing"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("p1")
	assert.False(t, ok, "empty registry should not resolve anything")

	r.Register("p1", NullSink{})

	sink, ok := r.Lookup("p1")
	require.True(t, ok)
	assert.NotNil(t, sink)
}

func TestRegistry_UnregisterRemovesSink(t *testing.T) {
	r := NewRegistry()
	r.Register("p1", NullSink{})

	r.Unregister("p1")

	_, ok := r.Lookup("p1")
	assert.False(t, ok)

	// Unregistering an unknown ID is a no-op.
	r.Unregister("p1")
}

func TestRegistry_RegisterReplacesExisting(t *testing.T) {
	r := NewRegistry()

	r.Register("p1", &UDPForwarder{})
	r.Register("p1", NullSink{})

	sink, ok := r.Lookup("p1")
	require.True(t, ok)
	_, stillForwarder := sink.(*UDPForwarder)
	assert.False(t, stillForwarder, "later registration should win")
}

func TestNullSink_AcceptsEverything(t *testing.T) {
	var sink NullSink

	assert.NoError(t, sink.AttachVideo(nil))
	assert.NoError(t, sink.AttachAudio(nil))
	assert.NoError(t, sink.Detach())
}

func TestProvisioningRegistry_CreatesOnFirstLookup(t *testing.T) {
	created := 0
	r := NewProvisioningRegistry(func(id domain.ParticipantID) ports.MediaSink {
		created++
		return NullSink{}
	})

	_, ok := r.Lookup("p1")
	require.True(t, ok, "factory-backed lookup should always resolve")
	assert.Equal(t, 1, created)

	_, _ = r.Lookup("p1")
	assert.Equal(t, 1, created, "second lookup must reuse the provisioned sink")

	_, _ = r.Lookup("p2")
	assert.Equal(t, 2, created)
}

func TestPortAllocator_HandsOutDisjointPairs(t *testing.T) {
	alloc := &portAllocator{next: 40000, max: 40003}

	v1, a1, ok := alloc.nextPair()
	require.True(t, ok)
	v2, a2, ok := alloc.nextPair()
	require.True(t, ok)

	assert.Equal(t, []int{40000, 40001, 40002, 40003}, []int{v1, a1, v2, a2})

	_, _, ok = alloc.nextPair()
	assert.False(t, ok, "range of four ports fits exactly two pairs")
}

func TestRegistry_IsolatesParticipants(t *testing.T) {
	r := NewRegistry()
	r.Register("p1", NullSink{})
	r.Register("p2", NullSink{})

	r.Unregister("p1")

	_, ok := r.Lookup(domain.ParticipantID("p2"))
	assert.True(t, ok, "removing one participant must not touch another")
}
