// Package metrics provides Prometheus instrumentation for spend-signals.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/spend-signals/internal/analytics"
)

var (
	// AssessmentsTotal counts scored candidates by outcome.
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spend_signals",
			Name:      "assessments_total",
			Help:      "Total candidates scored by outcome (ok, invalid, error).",
		},
		[]string{"outcome"},
	)

	// UndefinedSignalsTotal counts signals without a z-score by name.
	UndefinedSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spend_signals",
			Name:      "undefined_signals_total",
			Help:      "Signals returned without a z-score, by signal name.",
		},
		[]string{"signal"},
	)

	// VelocityFlagsTotal counts bundles where the high-frequency rule fired.
	VelocityFlagsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "spend_signals",
		Name:      "velocity_flags_total",
		Help:      "Bundles flagged as high frequency / low volume.",
	})

	// ModelVerdictsTotal counts reasoning verdicts by anomaly type.
	ModelVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spend_signals",
			Name:      "model_verdicts_total",
			Help:      "Reasoning model verdicts by anomaly type.",
		},
		[]string{"anomaly_type"},
	)

	// SnapshotLookupsTotal counts dataset cache lookups by result.
	SnapshotLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spend_signals",
			Name:      "snapshot_lookups_total",
			Help:      "Dataset snapshot cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	// ScoreDuration observes how long scoring one candidate takes.
	ScoreDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spend_signals",
		Name:      "score_duration_seconds",
		Help:      "Time to score one candidate against a dataset.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})

	// DatasetBuildDuration observes history load and preprocessing time.
	DatasetBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spend_signals",
		Name:      "dataset_build_duration_seconds",
		Help:      "Time to load and preprocess a user's history.",
		Buckets:   prometheus.DefBuckets,
	})

	// DatasetRows observes the size of built datasets.
	DatasetRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spend_signals",
		Name:      "dataset_rows",
		Help:      "Rows in built history datasets.",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		AssessmentsTotal,
		UndefinedSignalsTotal,
		VelocityFlagsTotal,
		ModelVerdictsTotal,
		SnapshotLookupsTotal,
		ScoreDuration,
		DatasetBuildDuration,
		DatasetRows,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBundle records the signals of a scored bundle.
func ObserveBundle(b *analytics.Bundle, elapsed time.Duration) {
	AssessmentsTotal.WithLabelValues("ok").Inc()
	ScoreDuration.Observe(elapsed.Seconds())
	for _, name := range b.UndefinedSignals() {
		UndefinedSignalsTotal.WithLabelValues(name).Inc()
	}
	if b.HighFreqLowVolume.Flag {
		VelocityFlagsTotal.Inc()
	}
}

// ObserveFailure records a candidate that could not be scored.
func ObserveFailure(err error) {
	outcome := "error"
	if analytics.IsInputError(err) {
		outcome = "invalid"
	}
	AssessmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveVerdict records a reasoning model verdict.
func ObserveVerdict(anomalyType string) {
	ModelVerdictsTotal.WithLabelValues(anomalyType).Inc()
}

// ObserveDataset records a dataset build.
func ObserveDataset(ds *analytics.Dataset, elapsed time.Duration) {
	DatasetBuildDuration.Observe(elapsed.Seconds())
	DatasetRows.Observe(float64(ds.Len()))
}
