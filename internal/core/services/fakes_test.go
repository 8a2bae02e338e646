package services

import (
	"context"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

type fakeTrack struct {
	id   string
	kind domain.MediaKind

	mu       sync.Mutex
	closed   int
	closeErr error
}

func (t *fakeTrack) ID() string            { return t.id }
func (t *fakeTrack) Kind() domain.MediaKind { return t.kind }
func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return t.closeErr
}

func (t *fakeTrack) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeSource struct {
	mu         sync.Mutex
	audioErr   error
	videoErr   error
	audioCalls int
	videoCalls int
	lastAudio  *fakeTrack
	lastVideo  *fakeTrack
}

func (s *fakeSource) AcquireAudio(ctx context.Context) (domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioCalls++
	if s.audioErr != nil {
		return nil, s.audioErr
	}
	s.lastAudio = &fakeTrack{id: "local-audio", kind: domain.MediaAudio}
	return s.lastAudio, nil
}

func (s *fakeSource) AcquireVideo(ctx context.Context) (domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoCalls++
	if s.videoErr != nil {
		return nil, s.videoErr
	}
	s.lastVideo = &fakeTrack{id: "local-video", kind: domain.MediaVideo}
	return s.lastVideo, nil
}

type fakeEnumerator struct {
	devices []domain.DeviceInfo
	err     error
}

func (e *fakeEnumerator) Enumerate(ctx context.Context) ([]domain.DeviceInfo, error) {
	return e.devices, e.err
}

type fakeSink struct {
	mu       sync.Mutex
	video    domain.Track
	audio    domain.Track
	detached int
}

func (s *fakeSink) AttachVideo(track domain.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = track
	return nil
}

func (s *fakeSink) AttachAudio(track domain.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = track
	return nil
}

func (s *fakeSink) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = nil
	s.audio = nil
	s.detached++
	return nil
}

func (s *fakeSink) detachCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

func (s *fakeSink) currentVideo() domain.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

type fakeRegistry struct {
	mu    sync.Mutex
	sinks map[domain.ParticipantID]ports.MediaSink
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sinks: make(map[domain.ParticipantID]ports.MediaSink)}
}

func (r *fakeRegistry) Register(id domain.ParticipantID, sink ports.MediaSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = sink
}

func (r *fakeRegistry) Lookup(id domain.ParticipantID) (ports.MediaSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sink, ok := r.sinks[id]
	return sink, ok
}

func (r *fakeRegistry) Unregister(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, id)
}

// fakeClient is a controllable SessionClient. joinGate, when non-nil,
// blocks Join until the test closes it, which is how the
// teardown-during-join scenario is driven.
type fakeClient struct {
	mu       sync.Mutex
	joinErr  error
	joinGate chan struct{}
	localID  domain.ParticipantID

	events chan domain.SessionEvent

	joins        int
	leaves       int
	disposes     int
	audioToggles []bool
	videoToggles []bool
	disposeOnce  sync.Once
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		localID: "local-1",
		events:  make(chan domain.SessionEvent, 16),
	}
}

func (c *fakeClient) Join(ctx context.Context, cred domain.SessionCredential, tracks domain.LocalTracks) (ports.SessionHandle, error) {
	if c.joinGate != nil {
		<-c.joinGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins++
	if c.joinErr != nil {
		return ports.SessionHandle{}, c.joinErr
	}
	return ports.SessionHandle{SessionID: "provider-session", LocalID: c.localID, Provider: domain.ProviderCallObject}, nil
}

func (c *fakeClient) Leave(ctx context.Context, handle ports.SessionHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
	return nil
}

func (c *fakeClient) Publish(ctx context.Context, handle ports.SessionHandle, tracks domain.LocalTracks) error {
	return nil
}

func (c *fakeClient) ToggleAudio(ctx context.Context, handle ports.SessionHandle, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioToggles = append(c.audioToggles, enabled)
	return nil
}

func (c *fakeClient) ToggleVideo(ctx context.Context, handle ports.SessionHandle, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoToggles = append(c.videoToggles, enabled)
	return nil
}

func (c *fakeClient) Events(handle ports.SessionHandle) <-chan domain.SessionEvent {
	return c.events
}

func (c *fakeClient) Dispose(handle ports.SessionHandle) error {
	c.mu.Lock()
	c.disposes++
	c.mu.Unlock()
	c.disposeOnce.Do(func() { close(c.events) })
	return nil
}

func (c *fakeClient) counts() (joins, leaves, disposes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joins, c.leaves, c.disposes
}

type fakeCreds struct {
	cred domain.SessionCredential
	err  error
}

func (c *fakeCreds) Fetch(ctx context.Context, ref domain.SessionRef) (domain.SessionCredential, error) {
	if c.err != nil {
		return domain.SessionCredential{}, c.err
	}
	return c.cred, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	starts     int
	ends       int
	endMinutes int
	startErr   error
	endErr     error
}

func (n *fakeNotifier) NotifyStart(ctx context.Context, id domain.AppointmentID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.starts++
	return n.startErr
}

func (n *fakeNotifier) NotifyEnd(ctx context.Context, id domain.AppointmentID, durationMinutes int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ends++
	n.endMinutes = durationMinutes
	return n.endErr
}

func (n *fakeNotifier) endCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ends
}

func (n *fakeNotifier) startCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.starts
}

type fakeMetrics struct {
	mu            sync.Mutex
	joins         int
	joinFailures  map[string]int
	started       int
	ended         int
	endedReason   domain.EndReason
	subscribeFail int
	reconnects    int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{joinFailures: make(map[string]int)}
}

func (m *fakeMetrics) RecordJoin(provider domain.ProviderKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins++
}

func (m *fakeMetrics) RecordJoinFailure(provider domain.ProviderKind, class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinFailures[class]++
}

func (m *fakeMetrics) RecordSessionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *fakeMetrics) RecordSessionEnded(duration time.Duration, reason domain.EndReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended++
	m.endedReason = reason
}

func (m *fakeMetrics) RecordSubscribeFailure(provider domain.ProviderKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeFail++
}

func (m *fakeMetrics) RecordReconnect(provider domain.ProviderKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *fakeMetrics) endedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
