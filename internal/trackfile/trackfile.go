// Package trackfile reads and writes track stores in the plain-text track
// file layout exchanged with external trackers:
//
//	<nTracks> <nFalseAlarms>
//	<nPoints>
//	<kind> <x> <y> <frame> <id>
//	...
//
// Tracks come first, then false alarms, each introduced by its point count.
// kind is the single-character point tag (M, F or U).
package trackfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/celltrack/internal/tracking"
)

// maxPoints bounds a single declared count.
const maxPoints = 10_000_000

// preallocLimit caps how much of a declared count is reserved up front.
// Larger sets grow as their lines are actually read.
const preallocLimit = 1024

// Write encodes the store's tracks and false alarms.
func Write(w io.Writer, store *tracking.Store) error {
	return WriteTracks(w, store.Tracks(), store.FalseAlarms())
}

// WriteTracks encodes explicit track and false-alarm lists.
func WriteTracks(w io.Writer, tracks, falseAlarms []*tracking.Track) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(tracks), len(falseAlarms))
	for _, set := range [][]*tracking.Track{tracks, falseAlarms} {
		for _, t := range set {
			fmt.Fprintf(bw, "%d\n", len(t.Points))
			for _, p := range t.Points {
				bw.WriteString(p.Kind.String())
				bw.WriteByte(' ')
				bw.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
				bw.WriteByte(' ')
				bw.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
				bw.WriteByte(' ')
				bw.WriteString(strconv.FormatInt(p.Frame, 10))
				bw.WriteByte(' ')
				bw.WriteString(strconv.FormatUint(p.ID, 10))
				bw.WriteByte('\n')
			}
		}
	}
	return bw.Flush()
}

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

// next returns the fields of the next non-blank line.
func (r *lineReader) next() ([]string, error) {
	for r.sc.Scan() {
		r.line++
		if fields := strings.Fields(r.sc.Text()); len(fields) > 0 {
			return fields, nil
		}
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

func (r *lineReader) count(what string) (int, error) {
	fields, err := r.next()
	if err != nil {
		return 0, fmt.Errorf("line %d: reading %s: %w", r.line+1, what, err)
	}
	if len(fields) != 1 {
		return 0, fmt.Errorf("line %d: expected %s, got %q", r.line, what, strings.Join(fields, " "))
	}
	return parseCount(fields[0], r.line, what)
}

func parseCount(raw string, line int, what string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxPoints {
		return 0, fmt.Errorf("line %d: invalid %s %q", line, what, raw)
	}
	return n, nil
}

// Read decodes a track file into a finalised store. Track ids are assigned
// in file order, tracks first.
func Read(r io.Reader) (*tracking.Store, error) {
	tracks, falseAlarms, err := ReadPoints(r)
	if err != nil {
		return nil, err
	}
	return tracking.RestoreStore(tracks, falseAlarms)
}

// ReadPoints decodes a track file into raw point sequences.
func ReadPoints(r io.Reader) (tracks, falseAlarms [][]tracking.Point, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lr := &lineReader{sc: sc}

	header, err := lr.next()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) != 2 {
		return nil, nil, fmt.Errorf("line %d: header must be '<tracks> <false alarms>', got %q", lr.line, strings.Join(header, " "))
	}
	nTracks, err := parseCount(header[0], lr.line, "track count")
	if err != nil {
		return nil, nil, err
	}
	nFalse, err := parseCount(header[1], lr.line, "false alarm count")
	if err != nil {
		return nil, nil, err
	}

	readSet := func(n int) ([][]tracking.Point, error) {
		set := make([][]tracking.Point, 0, min(n, preallocLimit))
		for i := 0; i < n; i++ {
			np, err := lr.count("point count")
			if err != nil {
				return nil, err
			}
			pts := make([]tracking.Point, 0, min(np, preallocLimit))
			for k := 0; k < np; k++ {
				p, err := lr.point()
				if err != nil {
					return nil, err
				}
				pts = append(pts, p)
			}
			set = append(set, pts)
		}
		return set, nil
	}

	if tracks, err = readSet(nTracks); err != nil {
		return nil, nil, err
	}
	if falseAlarms, err = readSet(nFalse); err != nil {
		return nil, nil, err
	}
	return tracks, falseAlarms, nil
}

func (r *lineReader) point() (tracking.Point, error) {
	fields, err := r.next()
	if err != nil {
		return tracking.Point{}, fmt.Errorf("line %d: reading point: %w", r.line+1, err)
	}
	if len(fields) != 5 {
		return tracking.Point{}, fmt.Errorf("line %d: point needs 5 fields, got %d", r.line, len(fields))
	}
	kind, err := tracking.ParsePointKind(fields[0])
	if err != nil {
		return tracking.Point{}, fmt.Errorf("line %d: %w", r.line, err)
	}
	x, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return tracking.Point{}, fmt.Errorf("line %d: invalid x: %w", r.line, err)
	}
	y, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return tracking.Point{}, fmt.Errorf("line %d: invalid y: %w", r.line, err)
	}
	frame, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return tracking.Point{}, fmt.Errorf("line %d: invalid frame: %w", r.line, err)
	}
	id, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return tracking.Point{}, fmt.Errorf("line %d: invalid id: %w", r.line, err)
	}
	return tracking.Point{X: x, Y: y, Frame: frame, Kind: kind, ID: id}, nil
}

// WriteFile writes the store to path.
func WriteFile(path string, store *tracking.Store) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create track file: %w", err)
	}
	if err := Write(f, store); err != nil {
		f.Close()
		return fmt.Errorf("failed to write track file: %w", err)
	}
	return f.Close()
}

// ReadFile reads a store from path.
func ReadFile(path string) (*tracking.Store, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open track file: %w", err)
	}
	defer f.Close()
	store, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}
