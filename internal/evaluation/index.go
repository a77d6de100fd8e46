package evaluation

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// segmentStart is a predicted segment's start point, carrying the segment's
// position in the candidate list so a tree hit can be mapped back.
type segmentStart struct {
	X, Y  float64
	Index int
}

func (p segmentStart) coord(d kdtree.Dim) float64 {
	if d == 0 {
		return p.X
	}
	return p.Y
}

// Compare implements kdtree.Comparable.
func (p segmentStart) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(segmentStart).coord(d)
}

// Dims implements kdtree.Comparable.
func (p segmentStart) Dims() int { return 2 }

// Distance implements kdtree.Comparable. It returns the squared Euclidean
// distance.
func (p segmentStart) Distance(c kdtree.Comparable) float64 {
	q := c.(segmentStart)
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// segmentStarts implements kdtree.Interface.
type segmentStarts []segmentStart

func (s segmentStarts) Index(i int) kdtree.Comparable { return s[i] }
func (s segmentStarts) Len() int                      { return len(s) }
func (s segmentStarts) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}

func (s segmentStarts) Pivot(d kdtree.Dim) int {
	p := startPlane{segmentStarts: s, Dim: d}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// startPlane orders segment starts along one dimension for partitioning.
type startPlane struct {
	segmentStarts
	kdtree.Dim
}

func (p startPlane) Less(i, j int) bool {
	return p.segmentStarts[i].coord(p.Dim) < p.segmentStarts[j].coord(p.Dim)
}

func (p startPlane) Swap(i, j int) {
	p.segmentStarts[i], p.segmentStarts[j] = p.segmentStarts[j], p.segmentStarts[i]
}

func (p startPlane) Slice(start, end int) kdtree.SortSlicer {
	return startPlane{segmentStarts: p.segmentStarts[start:end], Dim: p.Dim}
}

// startIndex is a nearest-neighbour index over segment start points.
type startIndex struct {
	tree *kdtree.Tree
}

// newStartIndex builds the index. segs must not be empty.
func newStartIndex(segs []Segment) startIndex {
	pts := make(segmentStarts, len(segs))
	for i, s := range segs {
		pts[i] = segmentStart{X: s.P0.X, Y: s.P0.Y, Index: i}
	}
	return startIndex{tree: kdtree.New(pts, false)}
}

// nearest returns the positions of every segment whose start point is
// closest to (x, y), in ascending order. Segments sharing a start point are
// all returned.
func (ix startIndex) nearest(x, y float64) []int {
	q := segmentStart{X: x, Y: y}
	_, d := ix.tree.Nearest(q)
	keep := kdtree.NewDistKeeper(d)
	ix.tree.NearestSet(keep, q)

	idx := make([]int, 0, keep.Len())
	for _, c := range keep.Heap {
		// The keeper seeds its heap with a nil sentinel at the bound.
		if c.Comparable == nil {
			continue
		}
		idx = append(idx, c.Comparable.(segmentStart).Index)
	}
	sort.Ints(idx)
	return idx
}
