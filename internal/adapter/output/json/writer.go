// Package json writes the full scan report as an indented JSON document.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bkyoung/secscan/internal/usecase/workflow"
)

// Writer implements the workflow.ReportWriter port as a JSON file.
type Writer struct {
	outputDir string
	now       func() time.Time
}

// NewWriter creates a JSON writer targeting the given directory.
func NewWriter(outputDir string, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{outputDir: outputDir, now: now}
}

// Write persists the report and returns the written path.
func (w *Writer) Write(ctx context.Context, report workflow.Report) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("secscan-%s.json", w.now().UTC().Format("20060102-150405")))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return path, nil
}

var _ workflow.ReportWriter = (*Writer)(nil)
