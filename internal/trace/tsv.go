// Package trace implements the per-tick TSV trace writer: one header
// line naming every column, then one row per controller tick,
// flushed incrementally the way internal/output's progress reporter
// writes incrementally rather than buffering a whole run in memory.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// TSVWriter implements controller.TraceWriter: one tab-separated row
// per WriteRow call, using the formats agreed at construction time.
// It writes the column header on the first row and flushes after
// every row so a crash mid-run leaves a valid, truncated file rather
// than an empty one.
type TSVWriter struct {
	w         *bufio.Writer
	closer    io.Closer
	names     []string
	formats   []string
	wroteHead bool
}

// NewTSVWriter creates a TSVWriter over path (created/truncated), using
// names and formats from the agent's TraceNames/TraceFormats. path of
// "" or "-" writes to stdout, which is never closed by Close.
func NewTSVWriter(path string, names, formats []string) (*TSVWriter, error) {
	if len(formats) != len(names) {
		return nil, fmt.Errorf("trace: %d names but %d formats", len(names), len(formats))
	}
	var out io.Writer = os.Stdout
	var closer io.Closer
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("trace: create %s: %w", path, err)
		}
		out = f
		closer = f
	}
	return &TSVWriter{w: bufio.NewWriter(out), closer: closer, names: names, formats: formats}, nil
}

// WriteRow writes one tab-separated row of values, writing the column
// header first if this is the first call.
func (t *TSVWriter) WriteRow(values []float64) error {
	if len(values) != len(t.formats) {
		return fmt.Errorf("trace: got %d values, want %d columns", len(values), len(t.formats))
	}
	if !t.wroteHead {
		if _, err := fmt.Fprintln(t.w, strings.Join(t.names, "\t")); err != nil {
			return err
		}
		t.wroteHead = true
	}
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = fmt.Sprintf(t.formats[i], v)
	}
	if _, err := fmt.Fprintln(t.w, strings.Join(fields, "\t")); err != nil {
		return err
	}
	return t.w.Flush()
}

// Close flushes and closes the underlying file, if any (stdout is
// left open).
func (t *TSVWriter) Close() error {
	if err := t.w.Flush(); err != nil {
		return err
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
