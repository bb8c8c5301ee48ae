package scan

import "context"

// Logger provides structured logging for the scan stage. Warnings cover
// recoverable conditions like oversized chunks and failed chunk analyses.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (NopLogger) LogInfo(context.Context, string, map[string]interface{})   {}
