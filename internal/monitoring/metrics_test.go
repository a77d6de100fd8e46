package monitoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTestingIsolated(t *testing.T) {
	t.Parallel()

	// Two instances must not collide on registration.
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FramesProcessed.Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.FramesProcessed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FramesProcessed))
}

func TestObserveSweepJob(t *testing.T) {
	t.Parallel()

	m := NewMetricsForTesting()
	m.ObserveSweepJob(false, 0.2)
	m.ObserveSweepJob(false, 0.3)
	m.ObserveSweepJob(true, 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepJobs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepJobs.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SweepJobDuration))

	var nilMetrics *Metrics
	nilMetrics.ObserveSweepJob(true, 1)
	nilMetrics.ObserveExternalRun(true)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := NewMetricsForTesting()
	m.Detections.Add(7)
	m.ObserveExternalRun(false)

	path := filepath.Join(t.TempDir(), "celltrack.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "celltrack_detections_total 7"), text)
	assert.True(t, strings.Contains(text, `celltrack_external_runs_total{outcome="ok"} 1`), text)
}
