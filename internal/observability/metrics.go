// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// RPC metrics
	RPCRequests *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec

	// Lifecycle metrics
	SwapsCreated     prometheus.Counter
	Transitions      *prometheus.CounterVec
	VersionConflicts prometheus.Counter
	SwapsExpired     *prometheus.CounterVec

	// Settlement metrics
	PointsAwarded prometheus.Counter
	CarbonSaved   prometheus.Counter

	// Media metrics
	PhotoUploadsSigned *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "rewear"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of RPC requests by procedure and result code",
		}, []string{"procedure", "code"}),
		RPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "RPC handling latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),

		SwapsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swaps",
			Name:      "created_total",
			Help:      "Total number of swap requests created",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swaps",
			Name:      "transitions_total",
			Help:      "Total number of status transitions by target status and trigger",
		}, []string{"to", "automatic"}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swaps",
			Name:      "version_conflicts_total",
			Help:      "Total number of optimistic update conflicts that triggered a retry",
		}),
		SwapsExpired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swaps",
			Name:      "expired_total",
			Help:      "Total number of swaps closed by the expiry policy",
		}, []string{"to"}),

		PointsAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "points_awarded_total",
			Help:      "Total points credited to users",
		}),
		CarbonSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "carbon_saved_kg_total",
			Help:      "Total kg CO2e saved by completed swaps",
		}),

		PhotoUploadsSigned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "uploads_signed_total",
			Help:      "Total number of presigned photo upload URLs issued by stage",
		}, []string{"stage"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRPC records one finished RPC.
func (m *Metrics) RecordRPC(procedure, code string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(procedure, code).Inc()
	m.RPCDuration.WithLabelValues(procedure).Observe(seconds)
}

// RecordSwapCreated increments the created counter.
func (m *Metrics) RecordSwapCreated() {
	if m == nil {
		return
	}
	m.SwapsCreated.Inc()
}

// RecordTransition counts one status change.
func (m *Metrics) RecordTransition(to string, automatic bool) {
	if m == nil {
		return
	}
	label := "false"
	if automatic {
		label = "true"
	}
	m.Transitions.WithLabelValues(to, label).Inc()
}

// RecordVersionConflict counts one lost optimistic update.
func (m *Metrics) RecordVersionConflict() {
	if m == nil {
		return
	}
	m.VersionConflicts.Inc()
}

// RecordExpiry counts one swap closed by the expiry policy.
func (m *Metrics) RecordExpiry(to string) {
	if m == nil {
		return
	}
	m.SwapsExpired.WithLabelValues(to).Inc()
}

// RecordSettlement adds one credit to the ledger totals.
func (m *Metrics) RecordSettlement(points, carbon float64) {
	if m == nil {
		return
	}
	m.PointsAwarded.Add(points)
	m.CarbonSaved.Add(carbon)
}

// RecordPhotoUpload counts one presigned upload.
func (m *Metrics) RecordPhotoUpload(stage string) {
	if m == nil {
		return
	}
	m.PhotoUploadsSigned.WithLabelValues(stage).Inc()
}
