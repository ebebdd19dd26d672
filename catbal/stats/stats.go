// Package stats summarizes catalog weight distributions and writes the
// per-iteration benchmark report.
package stats

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Separator between report columns
const Separator = ';'

// Summary describes a distribution of catalog weights
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	Max    float64
	Min    float64
	StdDev float64
}

// Summarize computes the distribution of weights. The standard deviation is
// the population one. An empty input yields a zero Summary.
func Summarize(weights []int64) Summary {
	if len(weights) == 0 {
		return Summary{}
	}
	x := make([]float64, len(weights))
	for i, w := range weights {
		x[i] = float64(w)
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return Summary{
		Count:  len(x),
		Mean:   mean,
		Median: median(sorted),
		Max:    floats.Max(x),
		Min:    floats.Min(x),
		StdDev: std,
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Row is one line of the benchmark report
type Row struct {
	Iteration int
	Size      int
	Elapsed   time.Duration
	Balance   int
	// MinCatalogs is the lower bound size/maxWeight on the catalog count
	MinCatalogs float64
	Entries     int64
	Summary
}

// NewRow builds a report row for a partition with the given catalog weights
func NewRow(iteration, size int, elapsed time.Duration, balance int, weights []int64, maxWeight int64) Row {
	var entries int64
	for _, w := range weights {
		entries += w
	}
	r := Row{
		Iteration: iteration,
		Size:      size,
		Elapsed:   elapsed,
		Balance:   balance,
		Entries:   entries,
		Summary:   Summarize(weights),
	}
	if maxWeight > 0 {
		r.MinCatalogs = float64(size) / float64(maxWeight)
	}
	return r
}

// Header returns the report column names
func Header() []string {
	return []string{
		"iteration",
		"size",
		"time",
		"balance",
		"catalog",
		"min_catalog",
		"num_entries",
		"mean",
		"median",
		"max",
		"min",
		"std_deviation",
	}
}

// Fields renders the row with a decimal comma
func (r Row) Fields() []string {
	fields := []string{
		strconv.Itoa(r.Iteration),
		strconv.Itoa(r.Size),
		strconv.FormatFloat(r.Elapsed.Seconds(), 'f', 3, 64),
		strconv.Itoa(r.Balance),
		strconv.Itoa(r.Count),
		strconv.FormatFloat(r.MinCatalogs, 'f', 3, 64),
		strconv.FormatInt(r.Entries, 10),
		strconv.FormatFloat(r.Mean, 'f', 3, 64),
		strconv.FormatFloat(r.Median, 'f', 1, 64),
		strconv.FormatFloat(r.Max, 'f', 0, 64),
		strconv.FormatFloat(r.Min, 'f', 0, 64),
		strconv.FormatFloat(r.StdDev, 'f', 3, 64),
	}
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, ".", ",")
	}
	return fields
}

// Writer streams report rows, header first
type Writer struct {
	csv *csv.Writer
}

// NewWriter writes the header to w and returns a row writer
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(Header()); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}
	return &Writer{csv: cw}, nil
}

// Write appends a row
func (w *Writer) Write(r Row) error {
	if err := w.csv.Write(r.Fields()); err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}
	return nil
}

// Flush flushes buffered rows
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// WriteFile atomically replaces path with a report holding rows
func WriteFile(path string, rows []Row) error {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create report directory: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
