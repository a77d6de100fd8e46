package tracking

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTrack is returned when a track id is not present in the store.
var ErrUnknownTrack = errors.New("unknown track")

// Store is the arena of all tracks produced by one tracking run, keyed by a
// monotonic track id. Live tracks are referenced by id only, so no handle is
// ever invalidated by new tracks being started.
//
// A Store is owned by a single run and is not safe for concurrent use.
type Store struct {
	arena       map[uint64]*Track
	active      []uint64 // ascending
	falseAlarms map[uint64]bool
	nextID      uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		arena:       make(map[uint64]*Track),
		falseAlarms: make(map[uint64]bool),
		nextID:      1,
	}
}

// RestoreStore rebuilds a finalised store from persisted point sequences.
// Track ids are assigned in argument order, tracks first. Every sequence must
// be non-empty and strictly increasing in frame.
func RestoreStore(tracks, falseAlarms [][]Point) (*Store, error) {
	s := NewStore()
	add := func(pts []Point, falseAlarm bool) error {
		if len(pts) == 0 {
			return fmt.Errorf("track %d has no points", s.nextID)
		}
		for i := 1; i < len(pts); i++ {
			if pts[i].Frame <= pts[i-1].Frame {
				return fmt.Errorf("track %d: frame %d does not follow frame %d", s.nextID, pts[i].Frame, pts[i-1].Frame)
			}
		}
		owned := make([]Point, len(pts))
		copy(owned, pts)
		id := s.nextID
		s.nextID++
		s.arena[id] = &Track{ID: id, Points: owned}
		if falseAlarm {
			s.falseAlarms[id] = true
		}
		return nil
	}
	for _, pts := range tracks {
		if err := add(pts, false); err != nil {
			return nil, err
		}
	}
	for _, pts := range falseAlarms {
		if err := add(pts, true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start allocates a new active track holding p as an Unresolved point and
// returns its id.
func (s *Store) Start(p Point) uint64 {
	id := s.nextID
	s.nextID++
	p.Kind = Unresolved
	s.arena[id] = &Track{ID: id, Points: []Point{p}}
	s.active = append(s.active, id) // ids are monotonic, order is preserved
	return id
}

// Continue appends p to active track id as an Unresolved point and resolves
// the previous last point to Matched.
func (s *Store) Continue(id uint64, p Point) error {
	t, err := s.activeTrack(id)
	if err != nil {
		return err
	}
	last := &t.Points[len(t.Points)-1]
	if p.Frame <= last.Frame {
		return fmt.Errorf("track %d: frame %d does not follow frame %d: %w", id, p.Frame, last.Frame, ErrFrameOrder)
	}
	last.Kind = Matched
	p.Kind = Unresolved
	t.Points = append(t.Points, p)
	return nil
}

// End terminates active track id. A single-point track is relabelled as a
// false alarm and moved into the false-alarm collection; a longer track has
// its last point resolved to Matched. It reports whether the track became a
// false alarm.
func (s *Store) End(id uint64) (bool, error) {
	t, err := s.activeTrack(id)
	if err != nil {
		return false, err
	}
	s.removeActive(id)
	if len(t.Points) == 1 {
		t.Points[0].Kind = FalseAlarm
		s.falseAlarms[id] = true
		return true, nil
	}
	t.Points[len(t.Points)-1].Kind = Matched
	return false, nil
}

// Finalize ends every still-active track. Afterwards no point in the store is
// Unresolved.
func (s *Store) Finalize() {
	ids := make([]uint64, len(s.active))
	copy(ids, s.active)
	for _, id := range ids {
		// cannot fail: every id comes from the active set
		_, _ = s.End(id)
	}
}

// Track returns the track with the given id.
func (s *Store) Track(id uint64) (*Track, bool) {
	t, ok := s.arena[id]
	return t, ok
}

// ActiveIDs returns the ids of active tracks in ascending order.
func (s *Store) ActiveIDs() []uint64 {
	out := make([]uint64, len(s.active))
	copy(out, s.active)
	return out
}

// Active returns the active tracks in ascending id order.
func (s *Store) Active() []*Track {
	out := make([]*Track, len(s.active))
	for i, id := range s.active {
		out[i] = s.arena[id]
	}
	return out
}

// NumActive returns the number of active tracks.
func (s *Store) NumActive() int {
	return len(s.active)
}

// Tracks returns every track that is not a false alarm (active or ended), in
// ascending id order.
func (s *Store) Tracks() []*Track {
	return s.collect(func(id uint64) bool { return !s.falseAlarms[id] })
}

// FalseAlarms returns the false-alarm tracks in ascending id order.
func (s *Store) FalseAlarms() []*Track {
	return s.collect(func(id uint64) bool { return s.falseAlarms[id] })
}

// PointCount returns the number of points held across tracks and false alarms.
func (s *Store) PointCount() int {
	n := 0
	for _, t := range s.arena {
		n += len(t.Points)
	}
	return n
}

func (s *Store) collect(keep func(id uint64) bool) []*Track {
	ids := make([]uint64, 0, len(s.arena))
	for id := range s.arena {
		if keep(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Track, len(ids))
	for i, id := range ids {
		out[i] = s.arena[id]
	}
	return out
}

func (s *Store) activeTrack(id uint64) (*Track, error) {
	i := sort.Search(len(s.active), func(i int) bool { return s.active[i] >= id })
	if i == len(s.active) || s.active[i] != id {
		return nil, fmt.Errorf("track %d is not active: %w", id, ErrUnknownTrack)
	}
	return s.arena[id], nil
}

func (s *Store) removeActive(id uint64) {
	i := sort.Search(len(s.active), func(i int) bool { return s.active[i] >= id })
	if i < len(s.active) && s.active[i] == id {
		s.active = append(s.active[:i], s.active[i+1:]...)
	}
}
