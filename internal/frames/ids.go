package frames

import "sync/atomic"

// IDAllocator hands out detection ids for sources that carry none. Ids are
// unique for the allocator's lifetime and never reused. Safe for concurrent
// use.
type IDAllocator struct {
	last atomic.Uint64
}

// NewIDAllocator returns an allocator whose first id is after+1.
func NewIDAllocator(after uint64) *IDAllocator {
	a := &IDAllocator{}
	a.last.Store(after)
	return a
}

// Next returns a fresh id.
func (a *IDAllocator) Next() uint64 {
	return a.last.Add(1)
}

// Last returns the most recently allocated id, or the starting offset.
func (a *IDAllocator) Last() uint64 {
	return a.last.Load()
}
