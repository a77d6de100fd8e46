package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// CSVWriter wraps csv.Writer with methods for sweep output.
type CSVWriter struct {
	w      *csv.Writer
	scores []string
}

// NewCSVWriter creates a CSVWriter with one column per score name.
func NewCSVWriter(w io.Writer, scores []string) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), scores: scores}
}

// WriteHeader writes the results header row.
func (c *CSVWriter) WriteHeader() error {
	header := []string{
		"job", "strategy", "max_distance", "forecast_window",
		"tracks", "false_alarms",
		"assocs_correct", "assocs_wrong", "falarms_wrong", "falarms_correct",
	}
	header = append(header, c.scores...)
	header = append(header, "duration_ms", "error")
	return c.w.Write(header)
}

// WriteResult writes one result row. Failed jobs leave the count and score
// columns empty.
func (c *CSVWriter) WriteResult(res Result) error {
	row := []string{
		strconv.Itoa(res.Index),
		res.Strategy.String(),
		formatFloat(res.MaxDistance),
		strconv.Itoa(res.ForecastWindow),
	}
	if res.Err != nil {
		for i := 0; i < 6+len(c.scores); i++ {
			row = append(row, "")
		}
		row = append(row, strconv.FormatInt(res.Duration.Milliseconds(), 10), res.Err.Error())
		return c.w.Write(row)
	}

	t := res.Table
	row = append(row,
		strconv.Itoa(res.Tracks),
		strconv.Itoa(res.FalseAlarms),
		strconv.Itoa(t.AssocsCorrect),
		strconv.Itoa(t.AssocsWrong),
		strconv.Itoa(t.FalarmsWrong),
		strconv.Itoa(t.FalarmsCorrect),
	)
	for _, name := range c.scores {
		if v, ok := scoreValue(res, name); ok {
			row = append(row, formatFloat(v))
		} else {
			row = append(row, "")
		}
	}
	row = append(row, strconv.FormatInt(res.Duration.Milliseconds(), 10), "")
	return c.w.Write(row)
}

// Flush flushes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// WriteResults writes a header and every result.
func WriteResults(w io.Writer, scores []string, results []Result) error {
	cw := NewCSVWriter(w, scores)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	for _, res := range results {
		if err := cw.WriteResult(res); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// WriteResultsFile writes results to path, creating or truncating it.
func WriteResultsFile(path string, scores []string, results []Result) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	if err := WriteResults(f, scores, results); err != nil {
		f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
