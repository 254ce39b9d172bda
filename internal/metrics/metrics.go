// Package metrics exposes Prometheus metrics for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	VerificationAttempts *prometheus.CounterVec
	Enrollments          *prometheus.CounterVec
	Lockouts             prometheus.Counter
	ExtractionDuration   prometheus.Histogram
	HTTPRequests         *prometheus.CounterVec
	ActiveTemplates      prometheus.Gauge
}

// New creates and registers the metric set on the default registry.
func New() *Metrics {
	return &Metrics{
		VerificationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceauth_verification_attempts_total",
			Help: "Verification attempts by decision and reason",
		}, []string{"decision", "reason"}),

		Enrollments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceauth_enrollments_total",
			Help: "Enrollment runs by outcome",
		}, []string{"status", "reason"}),

		Lockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceauth_lockouts_total",
			Help: "Verification attempts rejected due to lockout",
		}),

		ExtractionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceauth_extraction_duration_seconds",
			Help:    "Feature extraction duration",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceauth_http_requests_total",
			Help: "HTTP requests by method, endpoint and status code",
		}, []string{"method", "endpoint", "status"}),

		ActiveTemplates: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voiceauth_active_templates",
			Help: "Number of active voice templates",
		}),
	}
}

// RecordVerification counts one verification outcome.
func (m *Metrics) RecordVerification(decision, reason string) {
	m.VerificationAttempts.WithLabelValues(decision, reason).Inc()
	if reason == "LockedOut" {
		m.Lockouts.Inc()
	}
}

// RecordEnrollment counts one enrollment outcome.
func (m *Metrics) RecordEnrollment(status, reason string) {
	m.Enrollments.WithLabelValues(status, reason).Inc()
}

// RecordHTTPRequest counts one handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string) {
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
}
