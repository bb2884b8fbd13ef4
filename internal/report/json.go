package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Document is the JSON side-channel rendering of a shutdown report —
// the same data the text report carries, structured for tooling that
// wants to parse it rather than scrape the text format.
type Document struct {
	RunID       string                       `json:"run_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Truncated   bool                         `json:"truncated"`
	Agent       map[string]string            `json:"agent"`
	Host        map[string]string            `json:"host"`
	Region      map[string]map[string]string `json:"region"` // hash formatted as "0x%016x"
}

// JSONWriter implements controller.ReportSink by marshaling a
// Document, matching the teacher's WriteJSON idiom: encode to stdout
// unless a real path is configured, indent for readability, and
// disable HTML escaping since report values are not rendered in a
// browser.
type JSONWriter struct {
	path  string
	runID string
	now   func() time.Time
}

// NewJSONWriter creates a JSONWriter. path of "" or "-" writes to stdout.
func NewJSONWriter(path, runID string) *JSONWriter {
	return &JSONWriter{path: path, runID: runID, now: time.Now}
}

func (w *JSONWriter) Finish(header, host map[string]string, region map[uint64]map[string]string, truncated bool) error {
	doc := Document{
		RunID:       w.runID,
		GeneratedAt: w.now(),
		Truncated:   truncated,
		Agent:       header,
		Host:        host,
		Region:      make(map[string]map[string]string, len(region)),
	}
	for hash, kv := range region {
		doc.Region[fmt.Sprintf("0x%016x", hash)] = kv
	}

	var out io.Writer = os.Stdout
	if w.path != "" && w.path != "-" {
		f, err := os.Create(w.path)
		if err != nil {
			return fmt.Errorf("report: create %s: %w", w.path, err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("report: encode JSON: %w", err)
	}
	return nil
}
