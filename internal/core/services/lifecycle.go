package services

import (
	"context"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/tracing"
	"telecall/pkg/utils"

	"go.uber.org/zap"
)

// LifecycleController tracks the billing clock for one session and owns
// the teardown sequence. End is guarded one-shot: however many exit
// paths fire (hang-up, error handler, disconnect, shutdown), the
// backend is notified once and the tracks are released once.
type LifecycleController struct {
	appointmentID domain.AppointmentID
	anchor        domain.BillingAnchor

	client     ports.SessionClient
	handle     ports.SessionHandle
	tracks     *domain.LocalTracks
	reconciler *Reconciler
	notifier   ports.BoundaryNotifier
	metrics    ports.MetricsRecorder
	onLeave    func(reason domain.EndReason)
	logger     *zap.SugaredLogger

	mu        sync.Mutex
	startedAt time.Time
	seconds   int64
	ended     bool
	stopTick  chan struct{}
}

func NewLifecycleController(
	appointmentID domain.AppointmentID,
	anchor domain.BillingAnchor,
	client ports.SessionClient,
	handle ports.SessionHandle,
	tracks *domain.LocalTracks,
	reconciler *Reconciler,
	notifier ports.BoundaryNotifier,
	metrics ports.MetricsRecorder,
	onLeave func(reason domain.EndReason),
	logger *zap.SugaredLogger,
) *LifecycleController {
	return &LifecycleController{
		appointmentID: appointmentID,
		anchor:        anchor,
		client:        client,
		handle:        handle,
		tracks:        tracks,
		reconciler:    reconciler,
		notifier:      notifier,
		metrics:       metrics,
		onLeave:       onLeave,
		logger:        logger,
		stopTick:      make(chan struct{}),
	}
}

// OnLocalJoined arms the clock when the billing anchor is local join.
func (l *LifecycleController) OnLocalJoined() {
	if l.anchor == domain.AnchorLocalJoin {
		l.arm()
	}
}

// OnRemoteVisible arms the clock when the billing anchor is the first
// remote participant becoming visible. Later remotes are ignored.
func (l *LifecycleController) OnRemoteVisible() {
	if l.anchor == domain.AnchorFirstRemote {
		l.arm()
	}
}

// arm captures startedAt exactly once and starts the 1-second counter.
func (l *LifecycleController) arm() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.startedAt.IsZero() || l.ended {
		return
	}
	l.startedAt = time.Now()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.mu.Lock()
				l.seconds++
				l.mu.Unlock()
			case <-l.stopTick:
				return
			}
		}
	}()
}

// StartedAt returns the captured billing anchor time, zero if not armed.
func (l *LifecycleController) StartedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startedAt
}

// DurationSeconds returns the billed duration so far.
func (l *LifecycleController) DurationSeconds() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seconds
}

// End tears the session down. Idempotent: only the first caller runs
// the sequence, later calls return immediately. Each step's failure is
// logged and swallowed so teardown always completes as far as possible:
//
//	1. stop local tracks (frees camera/microphone hardware)
//	2. leave and dispose the provider session
//	3. clear the participant map and detach sinks
//	4. report the billed duration to the backend
//	5. invoke the caller's leave callback
func (l *LifecycleController) End(ctx context.Context, reason domain.EndReason) {
	l.mu.Lock()
	if l.ended {
		l.mu.Unlock()
		return
	}
	l.ended = true
	armed := !l.startedAt.IsZero()
	seconds := l.seconds
	l.mu.Unlock()

	if armed {
		close(l.stopTick)
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "teardown", string(l.handle.SessionID))
	defer span.End()

	l.logger.Infow("ending session",
		"session_id", l.handle.SessionID, "reason", reason,
		"duration", utils.FormatDuration(time.Duration(seconds)*time.Second))

	if err := l.tracks.Close(); err != nil {
		l.logger.Warnw("local track release failed", "error", err)
	}

	if err := l.client.Leave(ctx, l.handle); err != nil {
		l.logger.Warnw("provider leave failed", "error", err)
	}
	if err := l.client.Dispose(l.handle); err != nil {
		l.logger.Warnw("provider dispose failed", "error", err)
	}

	l.reconciler.Clear()

	if l.appointmentID != "" {
		minutes := int((seconds + 59) / 60)
		if err := l.notifier.NotifyEnd(ctx, l.appointmentID, minutes); err != nil {
			// Best-effort: a dead backend must never block hang-up.
			l.logger.Warnw("end-of-call notification failed", "appointment_id", l.appointmentID, "error", err)
		}
	}

	l.metrics.RecordSessionEnded(time.Duration(seconds)*time.Second, reason)

	if l.onLeave != nil {
		l.onLeave(reason)
	}
}

// Ended reports whether End has already run.
func (l *LifecycleController) Ended() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ended
}
