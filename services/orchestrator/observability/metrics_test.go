// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveExchange_Success(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveExchange(false, "success", 1.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("degraded")))
}

func TestObserveExchange_DegradedLabelsReasonWithOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveExchange(true, "timeout", 300)
	m.ObserveExchange(true, "backend_unavailable", 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedTotal.WithLabelValues("backend_unavailable")))
}

func TestObserveUpload(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveUpload("image/png")
	m.ObserveUploadRejection("too_large")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("image/png")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadRejectionsTotal.WithLabelValues("too_large")))
}

func TestSetBackendUp(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetBackendUp(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendUp))

	m.SetBackendUp(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BackendUp))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	m.ObserveExchange(true, "timeout", 1)
	m.ObserveUpload("image/png")
	m.ObserveUploadRejection("bad_mime")
	m.SetBackendUp(true)
}
