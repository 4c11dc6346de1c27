// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package promotion

import "github.com/prometheus/client_golang/prometheus"

// Package-level metric vars registered at init time, the same
// direct-registration style internal/collector/metrics.go uses for its
// scrape gauges. internal/collector's scrape metrics are also wrapped in a
// custom prometheus.Collector because they carry dynamic per-service/
// per-project labels pulled from the DB at scrape time; a cycle's metrics
// are flat scalars updated inline as RunCycle progresses, so that extra
// indirection buys nothing here and plain Gauge/Histogram/Counter values
// are the idiomatic fit.
var (
	cycleDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "evready_cycle_duration_seconds",
		Help:    "Duration of a full refresh cycle (ingest through promotion).",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. 2048s (~34min)
	})

	affectedRegionsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evready_affected_regions",
		Help: "Number of regions revisited by the most recent refresh cycle, by level.",
	}, []string{"level"})

	zipCompletionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evready_zip_completion_ratio",
		Help: "Fraction of the affected ZIP set recomputed by the most recent cycle tick.",
	})

	cycleOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evready_cycle_outcomes_total",
		Help: "Count of completed refresh cycles by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(cycleDurationSeconds, affectedRegionsGauge, zipCompletionGauge, cycleOutcomeCounter)
}

func recordCycleMetrics(durationSeconds float64, states, counties, zips int, zipCompletion float64, outcome string) {
	cycleDurationSeconds.Observe(durationSeconds)
	affectedRegionsGauge.WithLabelValues("state").Set(float64(states))
	affectedRegionsGauge.WithLabelValues("county").Set(float64(counties))
	affectedRegionsGauge.WithLabelValues("zip").Set(float64(zips))
	zipCompletionGauge.Set(zipCompletion)
	cycleOutcomeCounter.WithLabelValues(outcome).Inc()
}
