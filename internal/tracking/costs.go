package tracking

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// FallbackRejectionCost is the rejection sentinel used when one cannot be
// derived from the matrix contents (empty matrix, all-zero distances) or
// when the derived value would not itself be rejected by the threshold.
// It only has to exceed realistic cell displacements.
const FallbackRejectionCost = 999999.0

// CostMatrix holds association costs between forecast track positions (rows)
// and current detections (columns). Cells whose distance reached the
// rejection threshold hold Sentinel.
type CostMatrix struct {
	Rows     int
	Cols     int
	Sentinel float64

	dense *mat.Dense // nil when Rows or Cols is zero
}

// At returns the cost of pairing row i with column j.
func (c CostMatrix) At(i, j int) float64 {
	return c.dense.At(i, j)
}

// Rejected reports whether cell (i, j) holds the rejection sentinel.
func (c CostMatrix) Rejected(i, j int) bool {
	return c.dense.At(i, j) >= c.Sentinel
}

// Empty reports whether the matrix has no cells.
func (c CostMatrix) Empty() bool {
	return c.dense == nil
}

// BuildCosts computes the Euclidean distance between every forecast and every
// detection. Distances at or above maxDist are replaced by a sentinel that
// exceeds every accepted cost and itself fails the threshold, so callers can
// detect "no feasible match" by comparing against the sentinel alone.
func BuildCosts(forecasts []Forecast, detections []Detection, maxDist float64) CostMatrix {
	rows, cols := len(forecasts), len(detections)
	cm := CostMatrix{Rows: rows, Cols: cols, Sentinel: rejectionCost(0, 0, 0, maxDist)}
	if rows == 0 || cols == 0 {
		return cm
	}

	dists := make([]float64, rows*cols)
	maxReal := 0.0
	for i, f := range forecasts {
		for j, d := range detections {
			dist := math.Hypot(d.X-f.X, d.Y-f.Y)
			dists[i*cols+j] = dist
			if dist > maxReal {
				maxReal = dist
			}
		}
	}

	cm.Sentinel = rejectionCost(rows, cols, maxReal, maxDist)
	for k, dist := range dists {
		if dist >= maxDist {
			dists[k] = cm.Sentinel
		}
	}
	cm.dense = mat.NewDense(rows, cols, dists)
	return cm
}

// rejectionCost derives the sentinel as 10 × min(rows, cols) × the largest
// real distance in the matrix.
func rejectionCost(rows, cols int, maxReal, maxDist float64) float64 {
	n := rows
	if cols < n {
		n = cols
	}
	sentinel := 10 * float64(n) * maxReal
	if n == 0 || maxReal <= 0 || math.IsInf(sentinel, 0) || math.IsNaN(sentinel) {
		sentinel = FallbackRejectionCost
	}
	if sentinel < maxDist {
		sentinel = FallbackRejectionCost
	}
	if sentinel < maxDist {
		sentinel = 10 * maxDist
	}
	return sentinel
}
