package tracking

import (
	"fmt"
	"time"
)

// PointKind is the resolution state of a track point. The underlying byte is
// the single-character tag used by the track file format.
type PointKind byte

const (
	Unresolved PointKind = 'U' // appended to an active track, fate not yet known
	Matched    PointKind = 'M' // part of a genuine multi-point track
	FalseAlarm PointKind = 'F' // sole point of a track that never grew
)

// String returns the single-character tag.
func (k PointKind) String() string {
	return string(rune(k))
}

// ParsePointKind converts a single-character tag back into a PointKind.
func ParsePointKind(tag string) (PointKind, error) {
	if len(tag) != 1 {
		return 0, fmt.Errorf("point kind tag must be one character, got %q", tag)
	}
	switch k := PointKind(tag[0]); k {
	case Unresolved, Matched, FalseAlarm:
		return k, nil
	default:
		return 0, fmt.Errorf("unknown point kind tag %q", tag)
	}
}

// Point is a single observation attributed to a track.
type Point struct {
	X     float64
	Y     float64
	Frame int64
	Kind  PointKind
	ID    uint64 // globally unique detection id, never reused
}

// Track is an ordered sequence of points with strictly increasing frames.
// Each track owns its Points slice.
type Track struct {
	ID     uint64
	Points []Point
}

// Len returns the number of points in the track.
func (t *Track) Len() int {
	return len(t.Points)
}

// Last returns the most recent point. The track must not be empty.
func (t *Track) Last() Point {
	return t.Points[len(t.Points)-1]
}

// Clone returns a deep copy of the track.
func (t *Track) Clone() *Track {
	pts := make([]Point, len(t.Points))
	copy(pts, t.Points)
	return &Track{ID: t.ID, Points: pts}
}

// Forecast is the predicted position of an active track for the upcoming frame.
type Forecast struct {
	X float64
	Y float64
}

// Velocity is a displacement per frame.
type Velocity struct {
	VX float64
	VY float64
}

// Detection is one observed cell centroid in a frame, not yet attributed to
// any track.
type Detection struct {
	X  float64
	Y  float64
	ID uint64
}

// Frame is the set of detections observed at one discrete frame index.
type Frame struct {
	Index      int64
	Timestamp  time.Time // nominal frame time; informational only
	Detections []Detection
}

// Pair is an accepted continuation: row Prev of the cost matrix (an active
// track) continued by column Curr (a detection).
type Pair struct {
	Prev int
	Curr int
}

// Association partitions one frame's cost matrix rows and columns.
// Ended, Kept and Started are disjoint and each is sorted ascending.
type Association struct {
	Ended   []int  // previous-track rows with no accepted continuation
	Kept    []Pair // accepted continuations
	Started []int  // detection columns with no accepted predecessor
}
