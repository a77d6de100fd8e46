// Package frames reads and writes detection frames.
package frames

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/tracking"
)

// Column names of the detection CSV. timestamp and id are optional.
const (
	ColFrame     = "frame"
	ColTimestamp = "timestamp"
	ColX         = "x"
	ColY         = "y"
	ColID        = "id"
)

// maxFrameGap bounds how many empty frames a gap in the frame column may
// expand to.
const maxFrameGap = 1_000_000

// Source produces an ordered frame sequence.
type Source interface {
	Frames() ([]tracking.Frame, error)
}

// Options controls CSV decoding.
type Options struct {
	// FrameInterval spaces synthesised timestamps for rows without one.
	FrameInterval time.Duration
	// Epoch is the timestamp of the first frame when rows carry none.
	Epoch time.Time
	// IDs allocates detection ids when the id column is absent. A fresh
	// allocator starting at 1 is used when nil.
	IDs *IDAllocator
}

func (o Options) interval() time.Duration {
	if o.FrameInterval <= 0 {
		return config.DefaultFrameInterval
	}
	return o.FrameInterval
}

// CSVSource reads frames from a CSV file on disk.
type CSVSource struct {
	Path    string
	Options Options
}

// Frames implements Source.
func (s CSVSource) Frames() ([]tracking.Frame, error) {
	f, err := os.Open(filepath.Clean(s.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open detections file: %w", err)
	}
	defer f.Close()
	frames, err := ReadCSV(f, s.Options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return frames, nil
}

type columns struct {
	frame, timestamp, x, y, id int
}

func mapHeader(header []string) (columns, error) {
	cols := columns{frame: -1, timestamp: -1, x: -1, y: -1, id: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColFrame:
			cols.frame = i
		case ColTimestamp:
			cols.timestamp = i
		case ColX:
			cols.x = i
		case ColY:
			cols.y = i
		case ColID:
			cols.id = i
		}
	}
	if cols.frame < 0 || cols.x < 0 || cols.y < 0 {
		return cols, fmt.Errorf("header must contain %q, %q and %q columns, got %v", ColFrame, ColX, ColY, header)
	}
	return cols, nil
}

// ReadCSV decodes detections grouped by frame index and returns the frames
// in ascending index order. Detections keep their file order within a frame.
// Frame indices missing between the first and last index become empty
// frames, so tracks without detections there are ended.
func ReadCSV(r io.Reader, opts Options) ([]tracking.Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	ids := opts.IDs
	if ids == nil {
		ids = NewIDAllocator(0)
	}
	seenIDs := make(map[uint64]bool)
	byIndex := make(map[int64]*tracking.Frame)
	stamped := make(map[int64]bool)

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		index, err := strconv.ParseInt(strings.TrimSpace(rec[cols.frame]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid frame %q: %w", line, rec[cols.frame], err)
		}
		x, err := parseCoord(rec[cols.x])
		if err != nil {
			return nil, fmt.Errorf("line %d: x: %w", line, err)
		}
		y, err := parseCoord(rec[cols.y])
		if err != nil {
			return nil, fmt.Errorf("line %d: y: %w", line, err)
		}

		var id uint64
		if cols.id >= 0 {
			id, err = strconv.ParseUint(strings.TrimSpace(rec[cols.id]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid id %q: %w", line, rec[cols.id], err)
			}
			if seenIDs[id] {
				return nil, fmt.Errorf("line %d: duplicate detection id %d", line, id)
			}
			seenIDs[id] = true
		} else {
			id = ids.Next()
		}

		f, ok := byIndex[index]
		if !ok {
			f = &tracking.Frame{Index: index}
			byIndex[index] = f
		}
		if cols.timestamp >= 0 {
			if raw := strings.TrimSpace(rec[cols.timestamp]); raw != "" {
				ts, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", line, raw, err)
				}
				if stamped[index] && !f.Timestamp.Equal(ts) {
					return nil, fmt.Errorf("line %d: frame %d has conflicting timestamps %s and %s", line, index, f.Timestamp.Format(time.RFC3339), raw)
				}
				f.Timestamp = ts
				stamped[index] = true
			}
		}
		f.Detections = append(f.Detections, tracking.Detection{X: x, Y: y, ID: id})
	}

	if len(byIndex) == 0 {
		return nil, nil
	}
	return assemble(byIndex, stamped, opts)
}

func parseCoord(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", tracking.ErrNonFiniteCoordinate, raw)
	}
	return v, nil
}

// assemble orders the frames, fills index gaps and synthesises missing
// timestamps from the first frame's time.
func assemble(byIndex map[int64]*tracking.Frame, stamped map[int64]bool, opts Options) ([]tracking.Frame, error) {
	indices := make([]int64, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	first, last := indices[0], indices[len(indices)-1]
	if last-first >= maxFrameGap {
		return nil, fmt.Errorf("frame range %d..%d exceeds %d frames", first, last, maxFrameGap)
	}

	epoch := opts.Epoch
	if stamped[first] {
		epoch = byIndex[first].Timestamp
	}
	interval := opts.interval()

	out := make([]tracking.Frame, 0, last-first+1)
	for idx := first; idx <= last; idx++ {
		f, ok := byIndex[idx]
		if !ok {
			f = &tracking.Frame{Index: idx}
		}
		if !stamped[idx] {
			f.Timestamp = epoch.Add(time.Duration(idx-first) * interval)
		}
		out = append(out, *f)
	}
	return out, nil
}

// WriteCSV encodes frames with the full frame,timestamp,x,y,id header.
func WriteCSV(w io.Writer, frames []tracking.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColFrame, ColTimestamp, ColX, ColY, ColID}); err != nil {
		return err
	}
	for _, f := range frames {
		ts := f.Timestamp.UTC().Format(time.RFC3339)
		for _, d := range f.Detections {
			row := []string{
				strconv.FormatInt(f.Index, 10),
				ts,
				strconv.FormatFloat(d.X, 'g', -1, 64),
				strconv.FormatFloat(d.Y, 'g', -1, 64),
				strconv.FormatUint(d.ID, 10),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes frames to path.
func WriteCSVFile(path string, frames []tracking.Frame) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create detections file: %w", err)
	}
	if err := WriteCSV(f, frames); err != nil {
		f.Close()
		return fmt.Errorf("failed to write detections file: %w", err)
	}
	return f.Close()
}

// CountDetections returns the number of detections across frames.
func CountDetections(frames []tracking.Frame) int {
	n := 0
	for _, f := range frames {
		n += len(f.Detections)
	}
	return n
}
