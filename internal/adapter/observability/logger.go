// Package observability bridges the shared structured logger into the
// pipeline use cases.
package observability

import (
	"context"

	llmhttp "github.com/bkyoung/secscan/internal/adapter/llm/http"
	"github.com/bkyoung/secscan/internal/usecase/scan"
)

// ScanLogger adapts llmhttp.Logger to the scan.Logger interface, so the
// pipeline stages share the same structured logging infrastructure as the
// LLM HTTP clients.
type ScanLogger struct {
	logger llmhttp.Logger
}

// NewScanLogger creates a new pipeline logger adapter.
func NewScanLogger(logger llmhttp.Logger) scan.Logger {
	return &ScanLogger{logger: logger}
}

// LogWarning logs a warning message with structured fields.
func (l *ScanLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogWarning(ctx, message, fields)
}

// LogInfo logs an informational message with structured fields.
func (l *ScanLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogInfo(ctx, message, fields)
}
