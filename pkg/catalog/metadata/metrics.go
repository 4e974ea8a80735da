// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"time"

	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the coordinator's prometheus collectors.
type Metrics struct {
	// Operations counts operations by name and result code. Operations
	// which failed with an error are counted with code "error".
	Operations *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
}

func makeMetrics() Metrics {
	return Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metacat",
			Subsystem: "catalog",
			Name:      "operations_total",
			Help:      "Number of catalog operations by operation and result code.",
		}, []string{"op", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "metacat",
			Subsystem: "catalog",
			Name:      "operation_duration_seconds",
			Help:      "Latency of catalog operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
	}
}

func (m Metrics) observe(op string, code catpb.MutationCode, err error, elapsed time.Duration) {
	label := "error"
	if err == nil {
		label = code.String()
	}
	m.Operations.WithLabelValues(op, label).Inc()
	m.Latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Describe implements prometheus.Collector.
func (m Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.Latency.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.Latency.Collect(ch)
}

var _ prometheus.Collector = Metrics{}
