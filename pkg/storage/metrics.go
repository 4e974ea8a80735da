// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the store's prometheus collectors.
type Metrics struct {
	LockWaitSeconds prometheus.Histogram
	LockTimeouts    prometheus.Counter
	Commits         prometheus.Counter
	CommittedRows   prometheus.Counter
	ScannedVersions prometheus.Counter
}

func makeMetrics() Metrics {
	return Metrics{
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metacat",
			Subsystem: "store",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for row locks.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		LockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metacat",
			Subsystem: "store",
			Name:      "lock_timeouts_total",
			Help:      "Number of row lock acquisitions that timed out or were canceled.",
		}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metacat",
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Number of atomic multi-row commits.",
		}),
		CommittedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metacat",
			Subsystem: "store",
			Name:      "committed_mutations_total",
			Help:      "Number of row mutations committed.",
		}),
		ScannedVersions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metacat",
			Subsystem: "store",
			Name:      "scanned_versions_total",
			Help:      "Number of raw versions visited by scans.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.LockWaitSeconds.Describe(ch)
	m.LockTimeouts.Describe(ch)
	m.Commits.Describe(ch)
	m.CommittedRows.Describe(ch)
	m.ScannedVersions.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m Metrics) Collect(ch chan<- prometheus.Metric) {
	m.LockWaitSeconds.Collect(ch)
	m.LockTimeouts.Collect(ch)
	m.Commits.Collect(ch)
	m.CommittedRows.Collect(ch)
	m.ScannedVersions.Collect(ch)
}

var _ prometheus.Collector = Metrics{}
