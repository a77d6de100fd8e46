package tracking

import "gonum.org/v1/gonum/mat"

// costMatrixFrom wraps raw costs in a CostMatrix with the given sentinel.
func costMatrixFrom(rows [][]float64, sentinel float64) CostMatrix {
	cm := CostMatrix{Rows: len(rows), Sentinel: sentinel}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return cm
	}
	cm.Cols = len(rows[0])
	data := make([]float64, 0, cm.Rows*cm.Cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	cm.dense = mat.NewDense(cm.Rows, cm.Cols, data)
	return cm
}

// trackAt builds a track with one point per frame starting at frame first,
// moving by (vx, vy) per frame from (x0, y0).
func trackAt(id uint64, first int64, n int, x0, y0, vx, vy float64) *Track {
	t := &Track{ID: id}
	for i := 0; i < n; i++ {
		t.Points = append(t.Points, Point{
			X:     x0 + vx*float64(i),
			Y:     y0 + vy*float64(i),
			Frame: first + int64(i),
			Kind:  Matched,
			ID:    id*1000 + uint64(i),
		})
	}
	return t
}

func det(id uint64, x, y float64) Detection {
	return Detection{X: x, Y: y, ID: id}
}
