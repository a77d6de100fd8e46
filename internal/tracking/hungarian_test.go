package tracking

import (
	"testing"
)

func TestSolveAssignment_Empty(t *testing.T) {
	result := solveAssignment(CostMatrix{})
	if result != nil {
		t.Errorf("expected nil for empty cost matrix, got %v", result)
	}
}

func TestSolveAssignment_NoColumns(t *testing.T) {
	result := solveAssignment(CostMatrix{Rows: 2, Sentinel: FallbackRejectionCost})
	if len(result) != 2 || result[0] != -1 || result[1] != -1 {
		t.Errorf("expected [-1 -1], got %v", result)
	}
}

func TestSolveAssignment_SingleElement(t *testing.T) {
	result := solveAssignment(costMatrixFrom([][]float64{{5.0}}, 100))
	if len(result) != 1 || result[0] != 0 {
		t.Errorf("expected [0], got %v", result)
	}
}

func TestSolveAssignment_SquareOptimal(t *testing.T) {
	// Classic 3x3 assignment problem:
	//   [1 2 3]     Optimal: row0→col0 (1), row1→col1 (4), row2→col2 (5) = 10
	//   [4 4 6]     NOT: row0→col0 (1), row1→col2 (6), row2→col1 (8) = 15
	//   [9 8 5]
	cost := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	result := solveAssignment(costMatrixFrom(cost, 100))

	if len(result) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(result))
	}

	total := 0.0
	for i, j := range result {
		if j < 0 {
			t.Errorf("row %d unassigned", i)
			continue
		}
		total += cost[i][j]
	}

	if total != 10.0 {
		t.Errorf("expected optimal cost 10, got %v (assignments: %v)", total, result)
	}
}

func TestSolveAssignment_MoreRowsThanCols(t *testing.T) {
	// 3 rows, 2 cols → one row lands on a padding column.
	cost := [][]float64{
		{1, 10},
		{10, 1},
		{5, 5},
	}
	result := solveAssignment(costMatrixFrom(cost, 100))

	if len(result) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(result))
	}
	if result[0] != 0 || result[1] != 1 || result[2] != -1 {
		t.Errorf("expected [0 1 -1], got %v", result)
	}
}

func TestSolveAssignment_MoreColsThanRows(t *testing.T) {
	// 2 rows, 3 cols → all rows assigned.
	cost := [][]float64{
		{10, 1, 5},
		{5, 10, 1},
	}
	result := solveAssignment(costMatrixFrom(cost, 100))

	if len(result) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result))
	}
	if result[0] != 1 || result[1] != 2 {
		t.Errorf("expected [1 2], got %v", result)
	}
}

func TestSolveAssignment_NoDuplicateColumns(t *testing.T) {
	cost := [][]float64{
		{1, 1, 1, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 1},
	}
	result := solveAssignment(costMatrixFrom(cost, 100))

	seen := make(map[int]bool)
	for i, j := range result {
		if j < 0 {
			t.Errorf("row %d unassigned", i)
			continue
		}
		if seen[j] {
			t.Errorf("column %d assigned twice (result: %v)", j, result)
		}
		seen[j] = true
	}
}
