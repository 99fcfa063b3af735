// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the
// orchestrator.
//
// # Description
//
// Metrics cover the chat exchange path (counts, degraded outcomes,
// generation latency), the upload path, and backend liveness. They are
// exposed on /metrics and are meant for Prometheus plus Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "ae"

// Subsystem for chat metrics
const chatSubsystem = "chat"

// Metrics holds all Prometheus metrics for the orchestrator.
//
// # Fields
//
//   - ExchangesTotal: Counter of chat exchanges by status (ok, degraded)
//   - DegradedTotal: Counter of degraded exchanges by reason
//   - GenerationDurationSeconds: Histogram of backend generation latency by outcome
//   - BackendUp: Gauge, 1 when the generation backend answers its probe
//   - UploadsTotal: Counter of accepted uploads by mime type
//   - UploadRejectionsTotal: Counter of rejected uploads by reason
type Metrics struct {
	// ExchangesTotal counts completed chat exchanges.
	// Labels: status (ok, degraded)
	ExchangesTotal *prometheus.CounterVec

	// DegradedTotal counts degraded exchanges by reason.
	// Labels: reason (model_not_found, backend_unavailable, timeout)
	DegradedTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures the backend round trip.
	// Labels: outcome (success, model_not_found, backend_unavailable, timeout)
	GenerationDurationSeconds *prometheus.HistogramVec

	// BackendUp reflects the last liveness probe result.
	BackendUp prometheus.Gauge

	// UploadsTotal counts accepted uploads.
	// Labels: mime_type
	UploadsTotal *prometheus.CounterVec

	// UploadRejectionsTotal counts rejected uploads.
	// Labels: reason (too_large, bad_mime)
	UploadRejectionsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance registered against the
// default Prometheus registry. Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes DefaultMetrics against the default registry.
// Call once at startup; a second call panics on duplicate registration.
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates and registers all metrics against the given
// registerer. Tests pass their own registry to avoid duplicate
// registration across cases.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "exchanges_total",
				Help:      "Total chat exchanges by status",
			},
			[]string{"status"},
		),

		DegradedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "degraded_total",
				Help:      "Degraded chat exchanges by reason",
			},
			[]string{"reason"},
		),

		GenerationDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "generation_duration_seconds",
				Help:      "Backend generation round trip duration by outcome",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),

		BackendUp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "backend_up",
				Help:      "Whether the generation backend answered its last liveness probe",
			},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "uploads_total",
				Help:      "Accepted uploads by mime type",
			},
			[]string{"mime_type"},
		),

		UploadRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "upload_rejections_total",
				Help:      "Rejected uploads by reason",
			},
			[]string{"reason"},
		),
	}
}

// ObserveExchange records one completed exchange. The outcome labels
// both the latency histogram and, for degraded exchanges, the reason
// counter. A nil receiver is a no-op so callers need no metrics wiring
// in tests.
func (m *Metrics) ObserveExchange(degraded bool, outcome string, generationSeconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if degraded {
		status = "degraded"
		m.DegradedTotal.WithLabelValues(outcome).Inc()
	}
	m.ExchangesTotal.WithLabelValues(status).Inc()
	m.GenerationDurationSeconds.WithLabelValues(outcome).Observe(generationSeconds)
}

// ObserveUpload records one accepted upload. Nil-safe.
func (m *Metrics) ObserveUpload(mimeType string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(mimeType).Inc()
}

// ObserveUploadRejection records one rejected upload. Nil-safe.
func (m *Metrics) ObserveUploadRejection(reason string) {
	if m == nil {
		return
	}
	m.UploadRejectionsTotal.WithLabelValues(reason).Inc()
}

// SetBackendUp records the latest liveness probe result. Nil-safe.
func (m *Metrics) SetBackendUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.BackendUp.Set(1)
	} else {
		m.BackendUp.Set(0)
	}
}
