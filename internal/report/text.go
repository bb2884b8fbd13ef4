package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/geopmd/core/internal/clock"
)

// FormatFloat renders v in the report's fixed decimal format, with NaN
// spelled lowercase as the external interface documents, rather than
// Go's default "NaN".
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.6f", v)
}

// TextWriter renders the shutdown report: agent header, per-host
// section, per-region subsections sorted by region hash, and a totals
// line, matching the section order the external interfaces document.
// It implements controller.ReportSink by structural typing (no import
// of internal/controller, to avoid a cycle).
type TextWriter struct {
	path  string
	runID string
}

// NewTextWriter creates a TextWriter. path of "" or "-" writes to
// stdout. runID is included in the document header (see
// internal/config for how a run ID is minted).
func NewTextWriter(path, runID string) *TextWriter {
	return &TextWriter{path: path, runID: runID}
}

// Finish renders the full text report to the configured destination.
func (w *TextWriter) Finish(header, host map[string]string, region map[uint64]map[string]string, truncated bool) error {
	var out io.Writer = os.Stdout
	if w.path != "" && w.path != "-" {
		f, err := os.Create(w.path)
		if err != nil {
			return fmt.Errorf("report: create %s: %w", w.path, err)
		}
		defer f.Close()
		out = f
	}
	return writeText(out, w.runID, header, host, region, truncated)
}

func writeText(out io.Writer, runID string, header, host map[string]string, region map[uint64]map[string]string, truncated bool) error {
	bw := bufio.NewWriter(out)

	fmt.Fprintf(bw, "### run %s\n", runID)
	fmt.Fprintf(bw, "### generated %s\n", clock.WallClock().Format(time.RFC3339))
	if truncated {
		fmt.Fprintln(bw, "### truncated: shutdown observed before a full period completed")
	}

	fmt.Fprintln(bw, "[agent]")
	writeKV(bw, header)

	fmt.Fprintln(bw, "[host]")
	writeKV(bw, host)

	hashes := make([]uint64, 0, len(region))
	for h := range region {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	for _, h := range hashes {
		fmt.Fprintf(bw, "[region 0x%016x]\n", h)
		writeKV(bw, region[h])
	}

	fmt.Fprintln(bw, "[totals]")
	fmt.Fprintf(bw, "  region_count: %d\n", len(region))

	return bw.Flush()
}

func writeKV(w *bufio.Writer, kv map[string]string) {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, kv[k])
	}
}
