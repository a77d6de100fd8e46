package tracking

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Strategy selects the association solver.
type Strategy int

const (
	// GreedySequential resolves detections one at a time in input order,
	// each taking the closest still-unmatched track under the threshold.
	// It is not globally optimal: an early detection can take a track that
	// was the only feasible match for a later one. Results depend on the
	// detection order; this is kept as-is so scores stay comparable with
	// historical baselines.
	GreedySequential Strategy = iota
	// OptimalBipartite solves the minimum-cost assignment over the whole
	// cost matrix and discards pairs that landed on the rejection sentinel.
	OptimalBipartite
)

// Strategies lists every selectable strategy.
var Strategies = []Strategy{GreedySequential, OptimalBipartite}

var strategyNames = [...]string{
	GreedySequential: "greedy_sequential",
	OptimalBipartite: "optimal_bipartite",
}

// String returns the canonical configuration name of the strategy.
func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy resolves a configuration name (canonical or short alias,
// case-insensitive) to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "greedy_sequential", "greedy", "sequential":
		return GreedySequential, nil
	case "optimal_bipartite", "optimal", "hungarian":
		return OptimalBipartite, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

type matcher func(cm CostMatrix, maxDist float64) Association

// matchers is the fixed strategy → solver table.
var matchers = [...]matcher{
	GreedySequential: matchGreedy,
	OptimalBipartite: matchOptimal,
}

// Associate partitions the cost matrix rows (previous tracks) and columns
// (current detections) into ended, kept and started sets using strategy.
func Associate(strategy Strategy, cm CostMatrix, maxDist float64) (Association, error) {
	if err := ValidateMaxDistance(maxDist); err != nil {
		return Association{}, err
	}
	if strategy < 0 || int(strategy) >= len(matchers) {
		return Association{}, fmt.Errorf("%w: %v", ErrUnknownStrategy, strategy)
	}
	return matchers[strategy](cm, maxDist), nil
}

// ValidateMaxDistance rejects rejection thresholds that cannot produce a
// meaningful matching.
func ValidateMaxDistance(maxDist float64) error {
	if !(maxDist > 0) || math.IsInf(maxDist, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidMaxDistance, maxDist)
	}
	return nil
}

// matchGreedy runs a best-so-far scan per detection. The bound starts at the
// squared threshold, so a track is only taken if its squared cost is strictly
// below both the threshold and every earlier candidate in the scan.
func matchGreedy(cm CostMatrix, maxDist float64) Association {
	taken := make([]bool, cm.Rows)
	bound := maxDist * maxDist
	var assoc Association

	for j := 0; j < cm.Cols; j++ {
		best := bound
		bestRow := -1
		for i := 0; i < cm.Rows; i++ {
			if taken[i] {
				continue
			}
			c := cm.At(i, j)
			if c2 := c * c; c2 < best {
				best = c2
				bestRow = i
			}
		}
		if bestRow < 0 {
			assoc.Started = append(assoc.Started, j)
			continue
		}
		taken[bestRow] = true
		assoc.Kept = append(assoc.Kept, Pair{Prev: bestRow, Curr: j})
	}

	for i, ok := range taken {
		if !ok {
			assoc.Ended = append(assoc.Ended, i)
		}
	}
	sortPairs(assoc.Kept)
	return assoc
}

// matchOptimal solves the padded square assignment, then splits every pair
// whose cost is the sentinel into an ended track and a started detection.
func matchOptimal(cm CostMatrix, _ float64) Association {
	rowAssign := solveAssignment(cm)
	colTaken := make([]bool, cm.Cols)
	var assoc Association

	for i, j := range rowAssign {
		if j < 0 || cm.Rejected(i, j) {
			assoc.Ended = append(assoc.Ended, i)
			continue
		}
		colTaken[j] = true
		assoc.Kept = append(assoc.Kept, Pair{Prev: i, Curr: j})
	}
	for j, ok := range colTaken {
		if !ok {
			assoc.Started = append(assoc.Started, j)
		}
	}
	return assoc
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].Prev < pairs[b].Prev })
}
