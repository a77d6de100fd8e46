package evaluation

import "github.com/banshee-data/celltrack/internal/tracking"

// Segment is one association step of a track: the move from P0 to P1 in
// consecutive track points. A single-point track yields one degenerate
// segment with P0 == P1.
type Segment struct {
	P0         tracking.Point
	P1         tracking.Point
	Degenerate bool
}

// IDs returns the detection id sequence that identifies the segment.
func (s Segment) IDs() []uint64 {
	if s.Degenerate {
		return []uint64{s.P0.ID}
	}
	return []uint64{s.P0.ID, s.P1.ID}
}

// SameIdentity reports whether s and o link exactly the same detections.
func (s Segment) SameIdentity(o Segment) bool {
	if s.Degenerate != o.Degenerate {
		return false
	}
	if s.Degenerate {
		return s.P0.ID == o.P0.ID
	}
	return s.P0.ID == o.P0.ID && s.P1.ID == o.P1.ID
}

// Segments decomposes every track into its segments, in track order. A track
// of n ≥ 2 points yields n−1 segments; an empty track yields none.
func Segments(tracks []*tracking.Track) []Segment {
	n := 0
	for _, t := range tracks {
		switch l := len(t.Points); {
		case l == 1:
			n++
		case l > 1:
			n += l - 1
		}
	}

	out := make([]Segment, 0, n)
	for _, t := range tracks {
		pts := t.Points
		if len(pts) == 1 {
			out = append(out, Segment{P0: pts[0], P1: pts[0], Degenerate: true})
			continue
		}
		for i := 1; i < len(pts); i++ {
			out = append(out, Segment{P0: pts[i-1], P1: pts[i]})
		}
	}
	return out
}
