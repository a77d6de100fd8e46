package tracking

import "math"

// solveAssignment runs the Kuhn–Munkres algorithm with potentials
// (Jonker–Volgenant shortest augmenting path form) over the cost matrix,
// padded to a square with the rejection sentinel. It solves the full
// matrix, sentinel cells included, in O(n³).
//
// Returns rowAssign[i] = column assigned to row i, or -1 when row i was
// matched to a padding column.
func solveAssignment(cm CostMatrix) []int {
	n, m := cm.Rows, cm.Cols
	if n == 0 {
		return nil
	}
	rowAssign := make([]int, n)
	if m == 0 {
		for i := range rowAssign {
			rowAssign[i] = -1
		}
		return rowAssign
	}

	dim := n
	if m > dim {
		dim = m
	}
	cost := func(i, j int) float64 {
		if i < n && j < m {
			return cm.At(i, j)
		}
		return cm.Sentinel
	}

	// 1-indexed arrays; index 0 is the virtual column.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1) // row potentials
	v := make([]float64, dim+1) // column potentials
	p := make([]int, dim+1)     // p[j] = row assigned to column j
	way := make([]int, dim+1)   // way[j] = previous column on the augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if row := p[j]; row > 0 && row <= n && j <= m {
			rowAssign[row-1] = j - 1
		}
	}
	return rowAssign
}
