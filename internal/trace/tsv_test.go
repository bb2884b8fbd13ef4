package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTSVWriterWritesHeaderOnceThenRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.tsv")
	w, err := NewTSVWriter(path, []string{"TIME", "POWER"}, []string{"%.3f", "%.1f"})
	if err != nil {
		t.Fatalf("NewTSVWriter() error: %v", err)
	}

	if err := w.WriteRow([]float64{1.0, 100.5}); err != nil {
		t.Fatalf("WriteRow() error: %v", err)
	}
	if err := w.WriteRow([]float64{2.0, 101.25}); err != nil {
		t.Fatalf("WriteRow() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows): %q", len(lines), string(data))
	}
	if lines[0] != "TIME\tPOWER" {
		t.Errorf("header = %q, want TIME\\tPOWER", lines[0])
	}
	if lines[1] != "1.000\t100.5" {
		t.Errorf("row 1 = %q, want 1.000\\t100.5", lines[1])
	}
	if lines[2] != "2.000\t101.2" {
		t.Errorf("row 2 = %q, want 2.000\\t101.2", lines[2])
	}
}

func TestNewTSVWriterRejectsMismatchedNamesAndFormats(t *testing.T) {
	if _, err := NewTSVWriter("-", []string{"A", "B"}, []string{"%.1f"}); err == nil {
		t.Fatal("expected an error for mismatched names/formats lengths")
	}
}

func TestWriteRowRejectsWrongColumnCount(t *testing.T) {
	w, err := NewTSVWriter("-", []string{"A"}, []string{"%.1f"})
	if err != nil {
		t.Fatalf("NewTSVWriter() error: %v", err)
	}
	if err := w.WriteRow([]float64{1, 2}); err == nil {
		t.Fatal("expected an error for wrong number of values")
	}
}
