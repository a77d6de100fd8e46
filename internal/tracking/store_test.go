package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := s.Start(Point{X: 0, Y: 0, Frame: 1, ID: 10})
	b := s.Start(Point{X: 9, Y: 9, Frame: 1, ID: 11})
	assert.Equal(t, []uint64{a, b}, s.ActiveIDs())
	assert.Less(t, a, b)

	require.NoError(t, s.Continue(a, Point{X: 1, Y: 0, Frame: 2, ID: 12}))
	ta, ok := s.Track(a)
	require.True(t, ok)
	assert.Equal(t, Matched, ta.Points[0].Kind)
	assert.Equal(t, Unresolved, ta.Points[1].Kind)

	falseAlarm, err := s.End(b)
	require.NoError(t, err)
	assert.True(t, falseAlarm)
	tb, _ := s.Track(b)
	assert.Equal(t, FalseAlarm, tb.Points[0].Kind)

	falseAlarm, err = s.End(a)
	require.NoError(t, err)
	assert.False(t, falseAlarm)
	assert.Equal(t, Matched, ta.Last().Kind)

	assert.Zero(t, s.NumActive())
	assert.Len(t, s.Tracks(), 1)
	assert.Len(t, s.FalseAlarms(), 1)
	assert.Equal(t, 3, s.PointCount())
}

func TestStoreIDsAreNeverReused(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seen := make(map[uint64]bool)
	for i := int64(1); i <= 5; i++ {
		id := s.Start(Point{Frame: i})
		assert.False(t, seen[id])
		seen[id] = true
		_, err := s.End(id)
		require.NoError(t, err)
	}
}

func TestStoreErrors(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id := s.Start(Point{Frame: 5})

	err := s.Continue(id, Point{Frame: 5})
	assert.ErrorIs(t, err, ErrFrameOrder)

	err = s.Continue(id+100, Point{Frame: 6})
	assert.ErrorIs(t, err, ErrUnknownTrack)

	_, err = s.End(id)
	require.NoError(t, err)
	_, err = s.End(id)
	assert.ErrorIs(t, err, ErrUnknownTrack, "ending a track twice")
}

func TestStoreFinalizeResolvesEveryPoint(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := s.Start(Point{Frame: 1})
	s.Start(Point{Frame: 1})
	require.NoError(t, s.Continue(a, Point{Frame: 2}))
	require.NoError(t, s.Continue(a, Point{Frame: 3}))
	s.Start(Point{Frame: 3})

	s.Finalize()
	assert.Zero(t, s.NumActive())
	for _, tr := range append(s.Tracks(), s.FalseAlarms()...) {
		for _, p := range tr.Points {
			assert.NotEqual(t, Unresolved, p.Kind, "track %d frame %d", tr.ID, p.Frame)
		}
	}
	assert.Len(t, s.Tracks(), 1)
	assert.Len(t, s.FalseAlarms(), 2)
}

func TestTrackCloneOwnsPoints(t *testing.T) {
	t.Parallel()

	orig := trackAt(1, 1, 3, 0, 0, 1, 1)
	c := orig.Clone()
	c.Points[0].X = 99
	assert.Equal(t, 0.0, orig.Points[0].X)
	assert.Equal(t, 3, c.Len())
}

func TestRestoreStore(t *testing.T) {
	t.Parallel()

	tracks := [][]Point{
		{{X: 0, Frame: 1, Kind: Matched, ID: 1}, {X: 1, Frame: 2, Kind: Matched, ID: 3}},
	}
	falseAlarms := [][]Point{
		{{X: 5, Frame: 1, Kind: FalseAlarm, ID: 2}},
	}

	s, err := RestoreStore(tracks, falseAlarms)
	require.NoError(t, err)
	require.Len(t, s.Tracks(), 1)
	require.Len(t, s.FalseAlarms(), 1)
	assert.Equal(t, uint64(1), s.Tracks()[0].ID)
	assert.Equal(t, uint64(2), s.FalseAlarms()[0].ID)
	assert.Zero(t, s.NumActive())

	// The restored store owns its points.
	tracks[0][0].X = 42
	assert.Equal(t, 0.0, s.Tracks()[0].Points[0].X)

	_, err = RestoreStore([][]Point{{}}, nil)
	assert.Error(t, err)

	_, err = RestoreStore([][]Point{{{Frame: 2}, {Frame: 2}}}, nil)
	assert.Error(t, err)
}

func TestParsePointKind(t *testing.T) {
	t.Parallel()

	for _, k := range []PointKind{Unresolved, Matched, FalseAlarm} {
		got, err := ParsePointKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	for _, bad := range []string{"", "X", "MM", "m"} {
		_, err := ParsePointKind(bad)
		assert.Error(t, err, bad)
	}
}
