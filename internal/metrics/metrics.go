package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors shared by the service components.
type Metrics struct {
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	Resolutions     *prometheus.CounterVec
	DraftActions    *prometheus.CounterVec
	Commits         *prometheus.CounterVec
	WarningWrites   *prometheus.CounterVec
	WarningPending  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gztp_backend_requests_total",
			Help: "backend calls by operation and outcome",
		}, []string{"op", "outcome"}),
		BackendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gztp_backend_request_seconds",
			Help:    "backend call latency",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"op"}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gztp_roster_resolutions_total",
			Help: "roster resolutions by scope and the step that produced the snapshot",
		}, []string{"scope", "source"}),
		DraftActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gztp_draft_actions_total",
			Help: "draft edits by action and outcome",
		}, []string{"action", "outcome"}),
		Commits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gztp_commits_total",
			Help: "gazette commits by scope and outcome",
		}, []string{"scope", "outcome"}),
		WarningWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gztp_warning_writes_total",
			Help: "warning flag writes by outcome",
		}, []string{"outcome"}),
		WarningPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gztp_warning_writes_in_flight",
			Help: "warning flag writes not yet acknowledged",
		}),
	}
}

// Discard returns collectors bound to a private registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// OrDiscard returns m, or a discarding set when m is nil.
func OrDiscard(m *Metrics) *Metrics {
	if m == nil {
		return Discard()
	}
	return m
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
