package evaluation

import (
	"fmt"

	"github.com/banshee-data/celltrack/internal/tracking"
)

// ContingencyTable is the 2×2 truth table of a tracker evaluation.
//
//	                      predicted linked    predicted not linked
//	reference linked      AssocsCorrect (a)   AssocsWrong (b)
//	reference not linked  FalarmsWrong (c)    FalarmsCorrect (d)
type ContingencyTable struct {
	AssocsCorrect  int `json:"assocs_correct"`
	AssocsWrong    int `json:"assocs_wrong"`
	FalarmsWrong   int `json:"falarms_wrong"`
	FalarmsCorrect int `json:"falarms_correct"`
}

// Total returns a+b+c+d.
func (t ContingencyTable) Total() int {
	return t.AssocsCorrect + t.AssocsWrong + t.FalarmsWrong + t.FalarmsCorrect
}

// Cells returns the table as float64 (a, b, c, d).
func (t ContingencyTable) Cells() (a, b, c, d float64) {
	return float64(t.AssocsCorrect), float64(t.AssocsWrong), float64(t.FalarmsWrong), float64(t.FalarmsCorrect)
}

func (t ContingencyTable) String() string {
	return fmt.Sprintf("a=%d b=%d c=%d d=%d", t.AssocsCorrect, t.AssocsWrong, t.FalarmsWrong, t.FalarmsCorrect)
}

// Evaluation is a ContingencyTable plus the predicted segments that no
// reference segment claimed as its correct match.
type Evaluation struct {
	Table                     ContingencyTable `json:"table"`
	ReferenceAssocs           int              `json:"reference_assocs"`
	ReferenceFalarms          int              `json:"reference_falarms"`
	UnmatchedPredictedAssocs  int              `json:"unmatched_predicted_assocs"`
	UnmatchedPredictedFalarms int              `json:"unmatched_predicted_falarms"`
}

// Evaluate builds the contingency table for a predicted track set against a
// reference track set. Every reference segment lands in exactly one cell,
// so Total() equals the number of reference segments.
func Evaluate(refTracks, refFalseAlarms, predTracks, predFalseAlarms []*tracking.Track) ContingencyTable {
	return EvaluateDetailed(refTracks, refFalseAlarms, predTracks, predFalseAlarms).Table
}

// EvaluateDetailed is Evaluate with the unmatched predicted segment counts.
func EvaluateDetailed(refTracks, refFalseAlarms, predTracks, predFalseAlarms []*tracking.Track) Evaluation {
	refAssocs := Segments(refTracks)
	refFalarms := Segments(refFalseAlarms)

	assocHits, assocClaimed := matchSegments(refAssocs, Segments(predTracks))
	falarmHits, falarmClaimed := matchSegments(refFalarms, Segments(predFalseAlarms))

	return Evaluation{
		Table: ContingencyTable{
			AssocsCorrect:  assocHits,
			AssocsWrong:    len(refAssocs) - assocHits,
			FalarmsWrong:   len(refFalarms) - falarmHits,
			FalarmsCorrect: falarmHits,
		},
		ReferenceAssocs:           len(refAssocs),
		ReferenceFalarms:          len(refFalarms),
		UnmatchedPredictedAssocs:  unclaimed(assocClaimed),
		UnmatchedPredictedFalarms: unclaimed(falarmClaimed),
	}
}

// EvaluateStores evaluates two finalised stores.
func EvaluateStores(reference, predicted *tracking.Store) Evaluation {
	return EvaluateDetailed(reference.Tracks(), reference.FalseAlarms(), predicted.Tracks(), predicted.FalseAlarms())
}

// matchSegments pairs every reference segment with the predicted segment
// whose start point is nearest and counts the pairs that link the same
// detections. Among predicted segments tied at the nearest start point the
// one linking the same detections is preferred. claimed marks the predicted segments hit correctly. With no
// predicted segments nothing is queried and every reference segment misses.
func matchSegments(ref, pred []Segment) (hits int, claimed []bool) {
	claimed = make([]bool, len(pred))
	if len(ref) == 0 || len(pred) == 0 {
		return 0, claimed
	}

	ix := newStartIndex(pred)
	for _, r := range ref {
		for _, j := range ix.nearest(r.P0.X, r.P0.Y) {
			if pred[j].SameIdentity(r) {
				hits++
				claimed[j] = true
				break
			}
		}
	}
	return hits, claimed
}

func unclaimed(claimed []bool) int {
	n := 0
	for _, c := range claimed {
		if !c {
			n++
		}
	}
	return n
}
