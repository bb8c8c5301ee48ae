package config

import (
	"errors"
	"fmt"

	"github.com/bkyoung/secscan/internal/domain"
)

// ErrInvalidConfig wraps all validation failures so callers can treat any
// configuration problem as fatal before work starts.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the full application configuration. It is read once per
// run and shared by reference; nothing mutates it after Load.
type Config struct {
	Scan          ScanConfig                `yaml:"scan"`
	Triage        TriageConfig              `yaml:"triage"`
	Providers     map[string]ProviderConfig `yaml:"providers"`
	HTTP          HTTPConfig                `yaml:"http"`
	Discovery     DiscoveryConfig           `yaml:"discovery"`
	Output        OutputConfig              `yaml:"output"`
	Store         StoreConfig               `yaml:"store"`
	Redaction     RedactionConfig           `yaml:"redaction"`
	Observability ObservabilityConfig       `yaml:"observability"`
}

// ScanConfig configures the chunked analysis stage.
type ScanConfig struct {
	// Provider names the LLM provider used for the scan stage.
	Provider string `yaml:"provider"`

	// ConfidenceThreshold is the exclusive lower bound for reported
	// findings: a finding at exactly the threshold is dropped.
	ConfidenceThreshold int `yaml:"confidenceThreshold"`

	// Concurrency bounds the number of chunks analyzed in parallel.
	Concurrency int `yaml:"concurrency"`

	// ChunkLines is the maximum number of lines per chunk.
	ChunkLines int `yaml:"chunkLines"`

	// MaxParseRetries bounds repair attempts for unparsable model output.
	MaxParseRetries int `yaml:"maxParseRetries"`

	// TokenBudget, when positive, emits a warning for chunks whose
	// estimated token count exceeds it. It never fails the scan.
	TokenBudget int `yaml:"tokenBudget"`
}

// TriageConfig configures the agentic exploitability pass over
// high-confidence findings.
type TriageConfig struct {
	Enabled bool `yaml:"enabled"`

	// Provider names the LLM provider used for triage. Defaults to the
	// scan provider when empty.
	Provider string `yaml:"provider"`

	// MaxIterations bounds the tool-calling loop per finding.
	MaxIterations int `yaml:"maxIterations"`

	// Concurrency bounds parallel triage agents. Defaults to the scan
	// concurrency when zero.
	Concurrency int `yaml:"concurrency"`

	// MaxParseRetries bounds repair attempts for malformed agent payloads.
	MaxParseRetries int `yaml:"maxParseRetries"`

	// ToolTimeout is the per-tool-invocation timeout (duration string).
	ToolTimeout string `yaml:"toolTimeout"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`

	// HTTP overrides (optional, use global HTTP config if not set)
	Timeout    *string `yaml:"timeout,omitempty"`
	MaxRetries *int    `yaml:"maxRetries,omitempty"`
}

// HTTPConfig holds global HTTP client settings for provider calls.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// DiscoveryConfig controls which files are fed into the pipeline.
type DiscoveryConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	// MaxFileBytes skips files larger than this size. Zero means no limit.
	MaxFileBytes int64 `yaml:"maxFileBytes"`
}

// OutputConfig configures report writers.
type OutputConfig struct {
	Directory string   `yaml:"directory"`
	Formats   []string `yaml:"formats"` // "json", "sarif"
}

// StoreConfig configures the optional scan-history persistence layer.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RedactionConfig controls secret redaction of report output.
type RedactionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures request/response logging.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Level         string `yaml:"level"`  // debug, info, error
	Format        string `yaml:"format"` // json, human
	RedactAPIKeys bool   `yaml:"redactAPIKeys"`
}

// Validate enforces the fatal configuration invariants. A run must not start
// any work when the configuration is invalid.
func (c Config) Validate() error {
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("%w: scan.concurrency must be positive, got %d", ErrInvalidConfig, c.Scan.Concurrency)
	}
	if c.Scan.ChunkLines <= 0 {
		return fmt.Errorf("%w: scan.chunkLines must be positive, got %d", ErrInvalidConfig, c.Scan.ChunkLines)
	}
	if c.Scan.MaxParseRetries < 0 {
		return fmt.Errorf("%w: scan.maxParseRetries must not be negative, got %d", ErrInvalidConfig, c.Scan.MaxParseRetries)
	}
	if c.Scan.ConfidenceThreshold < 0 || c.Scan.ConfidenceThreshold > domain.MaxConfidence {
		return fmt.Errorf("%w: scan.confidenceThreshold must be in [0,%d], got %d",
			ErrInvalidConfig, domain.MaxConfidence, c.Scan.ConfidenceThreshold)
	}
	if c.Triage.Enabled {
		if c.Triage.MaxIterations <= 0 {
			return fmt.Errorf("%w: triage.maxIterations must be positive, got %d", ErrInvalidConfig, c.Triage.MaxIterations)
		}
		if c.Triage.Concurrency < 0 {
			return fmt.Errorf("%w: triage.concurrency must not be negative, got %d", ErrInvalidConfig, c.Triage.Concurrency)
		}
	}
	for _, format := range c.Output.Formats {
		switch format {
		case "json", "sarif":
		default:
			return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, format)
		}
	}
	return nil
}

// TriageConcurrency returns the effective triage concurrency, inheriting the
// scan limit when unset.
func (c Config) TriageConcurrency() int {
	if c.Triage.Concurrency > 0 {
		return c.Triage.Concurrency
	}
	return c.Scan.Concurrency
}

// TriageProvider returns the effective triage provider name.
func (c Config) TriageProvider() string {
	if c.Triage.Provider != "" {
		return c.Triage.Provider
	}
	return c.Scan.Provider
}
