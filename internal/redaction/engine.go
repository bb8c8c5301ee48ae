// Package redaction performs regex-based secret detection and replacement.
// A security scan routinely carries real credentials through the pipeline,
// in chunk excerpts and finding descriptions, and none of them may reach a
// report file or run history.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Engine replaces detected secrets with stable placeholders. The same secret
// always maps to the same placeholder, so two findings quoting one credential
// stay correlatable after redaction.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine creates an engine with the default secret patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// Redact scans input for secrets and replaces each with its placeholder.
func (e *Engine) Redact(input string) (string, error) {
	result := input
	placeholders := make(map[string]string)

	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(result, -1) {
			if _, seen := placeholders[match]; seen {
				continue
			}
			placeholders[match] = placeholder(match)
		}
	}

	for secret, replacement := range placeholders {
		result = strings.ReplaceAll(result, secret, replacement)
	}

	return result, nil
}

// IsRedacted reports whether the content contains redaction placeholders.
func (e *Engine) IsRedacted(content string) bool {
	return strings.Contains(content, "<REDACTED:")
}

// placeholder derives a stable marker from the secret's hash. Eight hex
// characters keep placeholders short while making collisions unlikely
// within one report.
func placeholder(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(hash[:])[:8])
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// OpenAI API keys
		`sk-[a-zA-Z0-9\-]{20,}`,
		// Anthropic API keys
		`sk-ant-[a-zA-Z0-9\-]{20,}`,
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		// AWS secret keys (high-entropy value near an aws marker)
		`aws.{0,20}?['\"][0-9a-zA-Z/+]{40}['\"]`,
		// GitHub tokens
		`gh[posr]_[a-zA-Z0-9]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// JWTs
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// PEM private keys
		`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`,
		// Slack tokens
		`xox[baprs]-[a-zA-Z0-9\-]{10,}`,
		// Bearer tokens
		`Bearer\s+[a-zA-Z0-9_\-\.]+`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
