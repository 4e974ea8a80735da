// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metacache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache's prometheus collectors.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Evictions     prometheus.Counter
	Invalidations prometheus.Counter
	SharedFills   prometheus.Counter
	Entries       prometheus.Gauge
	SizeBytes     prometheus.Gauge
}

func makeMetrics() Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metacat", Subsystem: "cache", Name: name, Help: help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "metacat", Subsystem: "cache", Name: name, Help: help,
		})
	}
	return Metrics{
		Hits:          counter("hits_total", "Number of lookups which found an entry."),
		Misses:        counter("misses_total", "Number of lookups which found no entry."),
		Evictions:     counter("evictions_total", "Number of entries evicted to stay within budget."),
		Invalidations: counter("invalidations_total", "Number of invalidation requests."),
		SharedFills:   counter("shared_fills_total", "Number of fills which waited on a concurrent identical fill."),
		Entries:       gauge("entries", "Number of cached definitions."),
		SizeBytes:     gauge("size_bytes", "Estimated size of the cached definitions."),
	}
}

func (m Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Hits, m.Misses, m.Evictions, m.Invalidations, m.SharedFills, m.Entries, m.SizeBytes,
	}
}

// Describe implements prometheus.Collector.
func (m Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

var _ prometheus.Collector = Metrics{}
