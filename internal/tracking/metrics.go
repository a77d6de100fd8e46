package tracking

import "github.com/banshee-data/celltrack/internal/monitoring"

// MetricsObserver feeds tracker frame summaries into Prometheus counters.
type MetricsObserver struct {
	Metrics *monitoring.Metrics
}

var _ Observer = MetricsObserver{}

// FrameProcessed implements Observer.
func (o MetricsObserver) FrameProcessed(s FrameSummary) {
	m := o.Metrics
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	m.Detections.Add(float64(s.Detections))
	m.TracksStarted.Add(float64(s.Started))
	m.TracksContinued.Add(float64(s.Kept))
	m.TracksEnded.Add(float64(s.Ended - s.FalseAlarms))
	m.FalseAlarms.Add(float64(s.FalseAlarms))
	m.CostMatrixCells.Observe(float64(s.Active * s.Detections))
}

// RunFinalized implements Observer.
func (o MetricsObserver) RunFinalized(tracks, falseAlarms int) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RunsFinalized.Inc()
}
