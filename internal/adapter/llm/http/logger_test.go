package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/secscan/internal/adapter/llm/http"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestDefaultLogger_RedactAPIKey(t *testing.T) {
	logger := http.NewDefaultLogger(http.LogLevelInfo, http.LogFormatHuman, true)

	assert.Equal(t, "[REDACTED-cdef]", logger.RedactAPIKey("sk-1234567890abcdef"))
	assert.Equal(t, "[REDACTED]", logger.RedactAPIKey("abcd"))

	plain := http.NewDefaultLogger(http.LogLevelInfo, http.LogFormatHuman, false)
	assert.Equal(t, "sk-1234567890abcdef", plain.RedactAPIKey("sk-1234567890abcdef"))
}

func TestDefaultLogger_LogWarning_Human(t *testing.T) {
	buf := captureLog(t)
	logger := http.NewDefaultLogger(http.LogLevelInfo, http.LogFormatHuman, true)

	logger.LogWarning(context.Background(), "failed to save run", map[string]interface{}{
		"runID":    "run-123",
		"provider": "openai",
		"error":    "database connection failed",
	})

	output := buf.String()
	assert.Contains(t, output, "[WARN]")
	assert.Contains(t, output, "failed to save run")
	assert.Contains(t, output, "runID=run-123")
	assert.Contains(t, output, "provider=openai")
	assert.Contains(t, output, "error=database connection failed")
}

func TestDefaultLogger_LogInfo_JSON(t *testing.T) {
	buf := captureLog(t)
	logger := http.NewDefaultLogger(http.LogLevelInfo, http.LogFormatJSON, true)

	logger.LogInfo(context.Background(), "scan completed", map[string]interface{}{
		"runID":    "run-456",
		"provider": "anthropic",
		"findings": 3,
	})

	output := buf.String()
	jsonStart := strings.Index(output, "{")
	require.NotEqual(t, -1, jsonStart, "should contain JSON")

	var logData map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output[jsonStart:]), &logData))

	assert.Equal(t, "info", logData["level"])
	assert.Equal(t, "scan completed", logData["message"])
	assert.Equal(t, "run-456", logData["runID"])
	assert.Equal(t, "anthropic", logData["provider"])
	assert.Equal(t, float64(3), logData["findings"])
	assert.Contains(t, logData, "timestamp")
}

func TestDefaultLogger_LogWarning_RespectsLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  http.LogLevel
		shouldLog bool
	}{
		{"debug level logs warnings", http.LogLevelDebug, true},
		{"info level logs warnings", http.LogLevelInfo, true},
		{"error level skips warnings", http.LogLevelError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			logger := http.NewDefaultLogger(tt.logLevel, http.LogFormatHuman, true)
			logger.LogWarning(context.Background(), "test warning", map[string]interface{}{"key": "value"})

			if tt.shouldLog {
				assert.Contains(t, buf.String(), "test warning")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestDefaultLogger_LogWarning_EmptyFields(t *testing.T) {
	buf := captureLog(t)
	logger := http.NewDefaultLogger(http.LogLevelInfo, http.LogFormatHuman, true)

	logger.LogWarning(context.Background(), "simple warning", map[string]interface{}{})

	output := buf.String()
	assert.Contains(t, output, "[WARN]")
	assert.Contains(t, output, "simple warning")
	assert.NotContains(t, output, "=")
}
