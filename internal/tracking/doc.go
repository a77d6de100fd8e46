// Package tracking owns the storm-cell association engine.
//
// Responsibilities: velocity forecasting, cost-matrix construction with a
// rejection sentinel, frame-to-frame association (greedy sequential or
// optimal bipartite), and the track lifecycle (continuation, birth, end,
// false-alarm reclassification).
// Key types: Point, Track, Store, Tracker.
//
// Tracking is strictly sequential within one run: frame t+1 is forecast from
// the store state left behind by frame t. Independent runs share nothing and
// may execute concurrently (see package sweep).
//
// No file or database code is allowed in this package; persistence lives in
// trackfile and storage/sqlite.
package tracking
