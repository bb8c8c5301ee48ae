package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Scan: ScanConfig{
			Provider:            "static",
			ConfidenceThreshold: 6,
			Concurrency:         4,
			ChunkLines:          500,
			MaxParseRetries:     2,
		},
		Triage: TriageConfig{
			Enabled:       true,
			MaxIterations: 10,
		},
		Output: OutputConfig{Formats: []string{"json", "sarif"}},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }},
		{"negative concurrency", func(c *Config) { c.Scan.Concurrency = -1 }},
		{"zero chunk lines", func(c *Config) { c.Scan.ChunkLines = 0 }},
		{"negative parse retries", func(c *Config) { c.Scan.MaxParseRetries = -1 }},
		{"threshold above range", func(c *Config) { c.Scan.ConfidenceThreshold = 11 }},
		{"threshold below range", func(c *Config) { c.Scan.ConfidenceThreshold = -1 }},
		{"zero triage iterations", func(c *Config) { c.Triage.MaxIterations = 0 }},
		{"unknown output format", func(c *Config) { c.Output.Formats = []string{"xml"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "error should wrap ErrInvalidConfig: %v", err)
		})
	}
}

func TestValidateIgnoresTriageWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Triage.Enabled = false
	cfg.Triage.MaxIterations = 0
	assert.NoError(t, cfg.Validate())
}

func TestTriageDefaultsInheritScan(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 4, cfg.TriageConcurrency())
	assert.Equal(t, "static", cfg.TriageProvider())

	cfg.Triage.Concurrency = 2
	cfg.Triage.Provider = "anthropic"
	assert.Equal(t, 2, cfg.TriageConcurrency())
	assert.Equal(t, "anthropic", cfg.TriageProvider())
}
