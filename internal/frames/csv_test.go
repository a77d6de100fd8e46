package frames

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/celltrack/internal/tracking"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := `frame,timestamp,x,y,id
2,2024-05-01T12:05:00Z,1.5,2,11
1,2024-05-01T12:00:00Z,0,0,10
2,2024-05-01T12:05:00Z,8,-3.25,12
`
	frames, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	want := []tracking.Frame{
		{Index: 1, Timestamp: t0, Detections: []tracking.Detection{{X: 0, Y: 0, ID: 10}}},
		{Index: 2, Timestamp: t0.Add(5 * time.Minute), Detections: []tracking.Detection{
			{X: 1.5, Y: 2, ID: 11},
			{X: 8, Y: -3.25, ID: 12},
		}},
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Errorf("ReadCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVAllocatesIDsAndTimestamps(t *testing.T) {
	t.Parallel()

	in := "x,y,frame\n1,1,5\n2,2,5\n3,3,7\n"
	epoch := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := NewIDAllocator(100)

	frames, err := ReadCSV(strings.NewReader(in), Options{FrameInterval: 6 * time.Minute, Epoch: epoch, IDs: ids})
	require.NoError(t, err)
	require.Len(t, frames, 3, "gap at frame 6 is filled")

	assert.Equal(t, int64(6), frames[1].Index)
	assert.Empty(t, frames[1].Detections)
	assert.Equal(t, epoch.Add(12*time.Minute), frames[2].Timestamp)

	assert.Equal(t, uint64(101), frames[0].Detections[0].ID)
	assert.Equal(t, uint64(102), frames[0].Detections[1].ID)
	assert.Equal(t, uint64(103), frames[2].Detections[0].ID)
	assert.Equal(t, uint64(103), ids.Last())
}

func TestReadCSVDefaultInterval(t *testing.T) {
	t.Parallel()

	frames, err := ReadCSV(strings.NewReader("frame,x,y\n0,0,0\n1,1,1\n"), Options{})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 5*time.Minute, frames[1].Timestamp.Sub(frames[0].Timestamp))
}

func TestReadCSVEmpty(t *testing.T) {
	t.Parallel()

	frames, err := ReadCSV(strings.NewReader(""), Options{})
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = ReadCSV(strings.NewReader("frame,x,y\n"), Options{})
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"missing column", "frame,x\n1,2\n"},
		{"bad frame", "frame,x,y\none,1,2\n"},
		{"bad x", "frame,x,y\n1,abc,2\n"},
		{"NaN", "frame,x,y\n1,NaN,2\n"},
		{"infinite", "frame,x,y\n1,1,+Inf\n"},
		{"bad id", "frame,x,y,id\n1,1,2,-4\n"},
		{"duplicate id", "frame,x,y,id\n1,1,2,4\n2,1,2,4\n"},
		{"bad timestamp", "frame,timestamp,x,y\n1,yesterday,1,2\n"},
		{"conflicting timestamps", "frame,timestamp,x,y\n1,2024-01-01T00:00:00Z,1,2\n1,2024-01-01T00:05:00Z,3,4\n"},
		{"ragged row", "frame,x,y\n1,2\n"},
		{"huge gap", "frame,x,y\n0,1,1\n5000000,1,1\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadCSV(strings.NewReader(tt.in), Options{})
			assert.Error(t, err)
		})
	}

	_, err := ReadCSV(strings.NewReader("frame,x,y\n1,NaN,2\n"), Options{})
	assert.ErrorIs(t, err, tracking.ErrNonFiniteCoordinate)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2023, 7, 4, 18, 0, 0, 0, time.UTC)
	frames := []tracking.Frame{
		{Index: 3, Timestamp: t0, Detections: []tracking.Detection{{X: 0.1, Y: 1e-7, ID: 1}, {X: -12.5, Y: 3, ID: 2}}},
		{Index: 4, Timestamp: t0.Add(5 * time.Minute), Detections: []tracking.Detection{{X: 1.0 / 3.0, Y: 2, ID: 3}}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, frames))

	got, err := ReadCSV(&buf, Options{})
	require.NoError(t, err)
	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, CountDetections(got))
}

func TestCSVSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "detections.csv")
	frames := []tracking.Frame{{Index: 1, Detections: []tracking.Detection{{X: 1, Y: 2, ID: 9}}}}
	require.NoError(t, WriteCSVFile(path, frames))

	var src Source = CSVSource{Path: path}
	got, err := src.Frames()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(9), got[0].Detections[0].ID)

	_, err = CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}.Frames()
	assert.Error(t, err)
}

func TestIDAllocatorConcurrent(t *testing.T) {
	t.Parallel()

	ids := NewIDAllocator(0)
	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := ids.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
	assert.Equal(t, uint64(800), ids.Last())
}
