package monitoring

import (
	"time"

	"telecall/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	sessionsActive  prometheus.Gauge
	joinsTotal      *prometheus.CounterVec
	joinFailures    *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	subscribeFails  *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "telecall_sessions_active",
			Help: "Number of currently established sessions",
		}),

		joinsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_joins_total",
			Help: "Successful provider joins",
		}, []string{"provider"}),

		joinFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_join_failures_total",
			Help: "Failed join attempts by error class",
		}, []string{"provider", "class"}),

		reconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_reconnects_total",
			Help: "Provider reconnection episodes",
		}, []string{"provider"}),

		subscribeFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_subscribe_failures_total",
			Help: "Per-track subscribe failures (non-fatal)",
		}, []string{"provider"}),

		sessionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telecall_session_duration_seconds",
			Help:    "Billed session duration",
			Buckets: prometheus.ExponentialBuckets(15, 2, 10),
		}, []string{"reason"}),
	}
}

func (p *PrometheusCollector) RecordJoin(provider domain.ProviderKind) {
	p.joinsTotal.WithLabelValues(string(provider)).Inc()
}

func (p *PrometheusCollector) RecordJoinFailure(provider domain.ProviderKind, class string) {
	p.joinFailures.WithLabelValues(string(provider), class).Inc()
}

func (p *PrometheusCollector) RecordSessionStarted() {
	p.sessionsActive.Inc()
}

func (p *PrometheusCollector) RecordSessionEnded(duration time.Duration, reason domain.EndReason) {
	p.sessionsActive.Dec()
	p.sessionDuration.WithLabelValues(string(reason)).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordSubscribeFailure(provider domain.ProviderKind) {
	p.subscribeFails.WithLabelValues(string(provider)).Inc()
}

func (p *PrometheusCollector) RecordReconnect(provider domain.ProviderKind) {
	p.reconnectsTotal.WithLabelValues(string(provider)).Inc()
}
