package tracking

import "fmt"

// FrameSummary counts what one frame's association did to the store.
type FrameSummary struct {
	Frame       int64
	Active      int // tracks active before the frame (cost matrix rows)
	Detections  int
	Kept        int
	Started     int
	Ended       int
	FalseAlarms int // ended tracks that were reclassified as false alarms
}

// Apply mutates the store with one frame's association. activeIDs maps cost
// matrix rows to track ids and detections supplies the columns.
//
//   - kept: the detection is appended to the continuing track
//   - started: each detection opens a new track
//   - ended: single-point tracks become false alarms, longer tracks stop
func Apply(store *Store, activeIDs []uint64, assoc Association, detections []Detection, frame int64) (FrameSummary, error) {
	sum := FrameSummary{Frame: frame, Detections: len(detections)}

	for _, k := range assoc.Kept {
		if k.Prev < 0 || k.Prev >= len(activeIDs) || k.Curr < 0 || k.Curr >= len(detections) {
			return sum, fmt.Errorf("kept pair (%d, %d) out of range", k.Prev, k.Curr)
		}
		if err := store.Continue(activeIDs[k.Prev], pointFromDetection(detections[k.Curr], frame)); err != nil {
			return sum, err
		}
		sum.Kept++
	}

	for _, j := range assoc.Started {
		if j < 0 || j >= len(detections) {
			return sum, fmt.Errorf("started detection %d out of range", j)
		}
		store.Start(pointFromDetection(detections[j], frame))
		sum.Started++
	}

	for _, i := range assoc.Ended {
		if i < 0 || i >= len(activeIDs) {
			return sum, fmt.Errorf("ended track row %d out of range", i)
		}
		falseAlarm, err := store.End(activeIDs[i])
		if err != nil {
			return sum, err
		}
		sum.Ended++
		if falseAlarm {
			sum.FalseAlarms++
		}
	}

	return sum, nil
}

func pointFromDetection(d Detection, frame int64) Point {
	return Point{X: d.X, Y: d.Y, Frame: frame, Kind: Unresolved, ID: d.ID}
}
