package services

import (
	"context"
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"
	"telecall/pkg/tracing"
	"telecall/pkg/utils"

	"go.uber.org/zap"
)

// ManagerConfig carries the policy knobs the manager needs.
type ManagerConfig struct {
	Provider domain.ProviderKind
	Anchor   domain.BillingAnchor
}

type activeSession struct {
	id  domain.SessionID
	ref domain.SessionRef

	mu         sync.Mutex
	state      domain.SessionState
	cancelled  bool // set when the session is ended while join is still in flight
	warnings   []string
	handle     ports.SessionHandle
	reconciler *Reconciler
	lifecycle  *LifecycleController
}

func (s *activeSession) setState(st domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if domain.ValidTransition(s.state, st) {
		s.state = st
	}
}

func (s *activeSession) getState() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Manager is the video session manager facade: it strings together
// credential fetch, device probing, track acquisition, provider join,
// reconciliation and lifecycle for each session, and guards every
// asynchronous continuation against sessions that were superseded or
// torn down while the operation was in flight.
type Manager struct {
	cfg      ManagerConfig
	creds    ports.CredentialSource
	prober   *ProbeService
	acquirer *AcquireService
	client   ports.SessionClient
	sinks    ports.SinkRegistry
	notifier ports.BoundaryNotifier
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[domain.SessionID]*activeSession
}

func NewManager(
	cfg ManagerConfig,
	creds ports.CredentialSource,
	prober *ProbeService,
	acquirer *AcquireService,
	client ports.SessionClient,
	sinks ports.SinkRegistry,
	notifier ports.BoundaryNotifier,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		creds:    creds,
		prober:   prober,
		acquirer: acquirer,
		client:   client,
		sinks:    sinks,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[domain.SessionID]*activeSession),
	}
}

// StartSession establishes a new video session for the given reference.
func (m *Manager) StartSession(ctx context.Context, ref domain.SessionRef) (*domain.SessionInfo, error) {
	sess := &activeSession{
		id:    domain.SessionID(utils.GenerateSessionID()),
		ref:   ref,
		state: domain.StateConnecting,
	}

	// Registered before the join so a teardown arriving mid-join has
	// something to cancel.
	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	info, err := m.establish(ctx, sess)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, sess.id)
		m.mu.Unlock()
		return nil, err
	}
	return info, nil
}

func (m *Manager) establish(ctx context.Context, sess *activeSession) (*domain.SessionInfo, error) {
	ctx, span := tracing.TraceSessionOperation(ctx, "establish", string(sess.id))
	defer span.End()

	cred, err := m.creds.Fetch(ctx, sess.ref)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if err := cred.Validate(m.cfg.Provider); err != nil {
		return nil, apperrors.NewCredentialError(err.Error(), err)
	}

	caps := m.prober.Probe(ctx)

	acquired, err := m.acquirer.Acquire(ctx, caps)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracks := acquired.Tracks

	handle, err := m.client.Join(ctx, cred, tracks)
	if err != nil {
		tracing.RecordError(ctx, err)
		if cerr := tracks.Close(); cerr != nil {
			m.logger.Warnw("track release after failed join failed", "error", cerr)
		}
		if appErr := apperrors.GetAppError(err); appErr != nil {
			m.metrics.RecordJoinFailure(m.cfg.Provider, string(appErr.Code))
		} else {
			m.metrics.RecordJoinFailure(m.cfg.Provider, "unknown")
		}
		return nil, err
	}

	// The session may have been torn down while Join was in flight; a
	// late continuation must not touch any shared state.
	sess.mu.Lock()
	if sess.cancelled {
		sess.mu.Unlock()
		if cerr := tracks.Close(); cerr != nil {
			m.logger.Warnw("track release after superseded join failed", "error", cerr)
		}
		if derr := m.client.Dispose(handle); derr != nil {
			m.logger.Warnw("dispose after superseded join failed", "error", derr)
		}
		return nil, domain.ErrSessionSuperseded
	}

	sess.handle = handle
	sess.warnings = acquired.Warnings
	sess.reconciler = NewReconciler(handle.LocalID, m.sinks, m.logger)
	sess.lifecycle = NewLifecycleController(
		sess.ref.AppointmentID,
		m.cfg.Anchor,
		m.client,
		handle,
		&tracks,
		sess.reconciler,
		m.notifier,
		m.metrics,
		func(reason domain.EndReason) { m.forget(sess.id) },
		m.logger,
	)
	sess.state = domain.StateConnected
	sess.mu.Unlock()

	// Seed the local participant so the map invariant (exactly one
	// local entry, id from the join call) holds from the first frame.
	sess.reconciler.Apply(domain.UpsertEvent(domain.ParticipantUpdate{
		ID:           handle.LocalID,
		IsLocal:      domain.Bool(true),
		AudioTrack:   tracks.Audio,
		VideoTrack:   tracks.Video,
		AudioEnabled: domain.Bool(tracks.Audio != nil),
		VideoEnabled: domain.Bool(tracks.Video != nil),
	}))
	sess.lifecycle.OnLocalJoined()

	m.metrics.RecordJoin(m.cfg.Provider)
	m.metrics.RecordSessionStarted()

	go m.eventLoop(sess)

	if sess.ref.AppointmentID != "" {
		// Fire-and-forget; the call proceeds whether or not the
		// backend hears about it.
		go func() {
			nctx, nspan := tracing.TraceBackendCall(context.Background(), "start", string(sess.ref.AppointmentID))
			defer nspan.End()
			if err := m.notifier.NotifyStart(nctx, sess.ref.AppointmentID); err != nil {
				m.logger.Warnw("start-of-call notification failed",
					"appointment_id", sess.ref.AppointmentID, "error", err)
			}
		}()
	}

	m.logger.Infow("session established",
		"session_id", sess.id, "local_id", handle.LocalID, "provider", m.cfg.Provider,
		"warnings", len(sess.warnings))

	return m.buildInfo(sess), nil
}

// eventLoop drains the provider's normalized events into the
// reconciler until Dispose closes the channel. It runs on one goroutine
// per session, which is what lets the reconciler be a plain reducer.
func (m *Manager) eventLoop(sess *activeSession) {
	for ev := range m.client.Events(sess.handle) {
		switch ev.Type {
		case domain.EventParticipantUpserted:
			if ev.Update == nil {
				continue
			}
			firstRemote := ev.Update.ID != sess.handle.LocalID && sess.reconciler.RemoteCount() == 0
			sess.reconciler.Apply(ev)
			if firstRemote {
				sess.lifecycle.OnRemoteVisible()
			}

		case domain.EventParticipantRemoved:
			sess.reconciler.Apply(ev)

		case domain.EventStateChanged:
			prev := sess.getState()
			sess.setState(ev.State)
			if ev.State == domain.StateReconnecting && prev != domain.StateReconnecting {
				m.metrics.RecordReconnect(m.cfg.Provider)
			}
			switch ev.State {
			case domain.StateFailed:
				sess.lifecycle.End(context.Background(), domain.EndReasonError)
			case domain.StateEnded:
				sess.lifecycle.End(context.Background(), domain.EndReasonDisconnect)
			}

		case domain.EventSessionError:
			// Mid-call exceptions are logged, never auto-teardown; the
			// binding signals Failed separately when it gives up.
			if appErr := apperrors.GetAppError(ev.Err); appErr != nil && appErr.Code == apperrors.ErrCodeSubscribe {
				m.metrics.RecordSubscribeFailure(m.cfg.Provider)
			}
			m.logger.Warnw("session error",
				"session_id", sess.id, "error", ev.Err,
				"user_message", apperrors.UserMessage(ev.Err))
		}
	}
}

// EndSession hangs up. Safe to call from any exit path, any number of
// times; sessions still joining are cancelled instead.
func (m *Manager) EndSession(ctx context.Context, id domain.SessionID, reason domain.EndReason) error {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.lifecycle == nil {
		// Join still in flight: flag it so the continuation becomes a
		// no-op, the establish path cleans up after itself.
		sess.cancelled = true
		sess.mu.Unlock()
		m.forget(id)
		return nil
	}
	lifecycle := sess.lifecycle
	sess.mu.Unlock()

	sess.setState(domain.StateEnded)
	lifecycle.End(ctx, reason)
	return nil
}

// GetSession returns a point-in-time view of one session.
func (m *Manager) GetSession(ctx context.Context, id domain.SessionID) (*domain.SessionInfo, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return m.buildInfo(sess), nil
}

// ListSessions returns views of all live sessions.
func (m *Manager) ListSessions(ctx context.Context) []*domain.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.SessionInfo, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, m.buildInfo(sess))
	}
	return out
}

// SetAudioEnabled toggles the local microphone.
func (m *Manager) SetAudioEnabled(ctx context.Context, id domain.SessionID, enabled bool) error {
	return m.toggle(ctx, id, domain.MediaAudio, enabled)
}

// SetVideoEnabled toggles the local camera.
func (m *Manager) SetVideoEnabled(ctx context.Context, id domain.SessionID, enabled bool) error {
	return m.toggle(ctx, id, domain.MediaVideo, enabled)
}

func (m *Manager) toggle(ctx context.Context, id domain.SessionID, kind domain.MediaKind, enabled bool) error {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	handle := sess.handle
	reconciler := sess.reconciler
	ready := sess.lifecycle != nil
	sess.mu.Unlock()
	if !ready {
		return domain.ErrSessionNotFound
	}

	var err error
	update := domain.ParticipantUpdate{ID: handle.LocalID}
	if kind == domain.MediaAudio {
		err = m.client.ToggleAudio(ctx, handle, enabled)
		update.AudioEnabled = domain.Bool(enabled)
	} else {
		err = m.client.ToggleVideo(ctx, handle, enabled)
		update.VideoEnabled = domain.Bool(enabled)
	}
	if err != nil {
		return err
	}

	reconciler.Apply(domain.UpsertEvent(update))
	return nil
}

// Shutdown ends every live session. Used on agent exit so no camera is
// left locked behind a dead process.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]domain.SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.EndSession(ctx, id, domain.EndReasonHangup); err != nil && err != domain.ErrSessionNotFound {
			m.logger.Warnw("session shutdown failed", "session_id", id, "error", err)
		}
	}
}

func (m *Manager) forget(id domain.SessionID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) buildInfo(sess *activeSession) *domain.SessionInfo {
	sess.mu.Lock()
	info := &domain.SessionInfo{
		ID:       sess.id,
		Ref:      sess.ref,
		State:    sess.state,
		LocalID:  sess.handle.LocalID,
		Warnings: append([]string(nil), sess.warnings...),
	}
	reconciler := sess.reconciler
	lifecycle := sess.lifecycle
	sess.mu.Unlock()

	if lifecycle != nil {
		info.StartedAt = lifecycle.StartedAt()
		info.DurationSeconds = lifecycle.DurationSeconds()
	}
	if reconciler != nil {
		info.Participants = reconciler.Snapshot()
	}
	return info
}
