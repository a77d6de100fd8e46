package monitoring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "celltrack"

// Metrics holds the Prometheus counters and histograms for tracking runs,
// evaluations and sweeps.
type Metrics struct {
	Registry prometheus.Gatherer

	FramesProcessed  prometheus.Counter
	Detections       prometheus.Counter
	TracksStarted    prometheus.Counter
	TracksContinued  prometheus.Counter
	TracksEnded      prometheus.Counter
	FalseAlarms      prometheus.Counter
	RunsFinalized    prometheus.Counter
	CostMatrixCells  prometheus.Histogram
	Evaluations      prometheus.Counter
	SweepJobs        *prometheus.CounterVec // labels: outcome={ok,failed}
	SweepJobDuration prometheus.Histogram
	ExternalRuns     *prometheus.CounterVec // labels: outcome={ok,failed}
}

// NewMetrics creates the metrics and registers them with reg. A nil reg gets
// a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Registry: reg,
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Total frames fed through the tracker.",
		}),
		Detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total detections observed across all frames.",
		}),
		TracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_started_total",
			Help:      "Detections that opened a new track.",
		}),
		TracksContinued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_continued_total",
			Help:      "Detections appended to an existing track.",
		}),
		TracksEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_ended_total",
			Help:      "Tracks that received no detection in a frame and stopped.",
		}),
		FalseAlarms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "false_alarms_total",
			Help:      "Single-point tracks reclassified as false alarms.",
		}),
		RunsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finalized_total",
			Help:      "Tracking runs that completed and were finalized.",
		}),
		CostMatrixCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cost_matrix_cells",
			Help:      "Active tracks times detections per frame.",
			Buckets:   []float64{0, 1, 4, 16, 64, 256, 1024, 4096},
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Truth-table evaluations computed.",
		}),
		SweepJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_jobs_total",
			Help:      "Sweep jobs by outcome.",
		}, []string{"outcome"}),
		SweepJobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_job_duration_seconds",
			Help:      "Wall time of one sweep job, tracking plus scoring.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		ExternalRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_runs_total",
			Help:      "External tracker invocations by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.FramesProcessed,
		m.Detections,
		m.TracksStarted,
		m.TracksContinued,
		m.TracksEnded,
		m.FalseAlarms,
		m.RunsFinalized,
		m.CostMatrixCells,
		m.Evaluations,
		m.SweepJobs,
		m.SweepJobDuration,
		m.ExternalRuns,
	)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveSweepJob records the outcome and duration of one sweep job.
func (m *Metrics) ObserveSweepJob(failed bool, seconds float64) {
	if m == nil {
		return
	}
	m.SweepJobs.WithLabelValues(outcome(failed)).Inc()
	m.SweepJobDuration.Observe(seconds)
}

// ObserveExternalRun records one external tracker invocation.
func (m *Metrics) ObserveExternalRun(failed bool) {
	if m == nil {
		return
	}
	m.ExternalRuns.WithLabelValues(outcome(failed)).Inc()
}

// WriteTextfile dumps the current metric values in the Prometheus text
// exposition format, suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func outcome(failed bool) string {
	if failed {
		return "failed"
	}
	return "ok"
}
