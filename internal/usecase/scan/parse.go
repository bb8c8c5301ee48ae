package scan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bkyoung/secscan/internal/domain"
)

// fencePattern matches JSON wrapped in markdown code fences, which models
// emit despite instructions not to.
var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON pulls the JSON payload out of raw model text. Fenced blocks
// win; otherwise the first balanced object or array is taken.
func ExtractJSON(text string) (string, error) {
	if matches := fencePattern.FindStringSubmatch(text); len(matches) > 1 {
		candidate := strings.TrimSpace(matches[1])
		if candidate != "" {
			return candidate, nil
		}
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("empty response")
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return trimmed, nil
	}

	// Prose around the payload: take the outermost balanced object.
	if extracted := balancedSlice(trimmed, '{', '}'); extracted != "" {
		return extracted, nil
	}
	if extracted := balancedSlice(trimmed, '[', ']'); extracted != "" {
		return extracted, nil
	}
	return "", fmt.Errorf("no JSON payload in response")
}

// balancedSlice returns the first balanced region delimited by open/close,
// ignoring delimiters inside JSON strings.
func balancedSlice(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// rawFinding is the wire shape the model reports findings in.
type rawFinding struct {
	Category    string `json:"category"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	Description string `json:"description"`
	Confidence  int    `json:"confidence"`
	Excerpt     string `json:"excerpt"`
}

type findingsEnvelope struct {
	Findings []rawFinding `json:"findings"`
}

// ParseFindings converts raw model text into domain findings for one chunk.
// A malformed payload is an error so the caller can run a repair attempt;
// individually odd fields are normalized instead of failing the chunk.
func ParseFindings(text string, chunk domain.Chunk) ([]domain.Finding, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var envelope findingsEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		// Some models emit the bare array without the envelope.
		var bare []rawFinding
		if arrErr := json.Unmarshal([]byte(payload), &bare); arrErr != nil {
			return nil, fmt.Errorf("unmarshal findings: %w", err)
		}
		envelope.Findings = bare
	}

	findings := make([]domain.Finding, 0, len(envelope.Findings))
	for _, raw := range envelope.Findings {
		if strings.TrimSpace(raw.Description) == "" {
			continue
		}

		lineStart := raw.LineStart
		lineEnd := raw.LineEnd
		if lineStart <= 0 {
			lineStart = chunk.StartLine
		}
		if lineEnd < lineStart {
			lineEnd = lineStart
		}

		confidence := raw.Confidence
		if confidence < domain.MinConfidence {
			confidence = domain.MinConfidence
		}
		if confidence > domain.MaxConfidence {
			confidence = domain.MaxConfidence
		}

		findings = append(findings, domain.NewFinding(domain.FindingInput{
			Category:    domain.NormalizeCategory(raw.Category),
			File:        chunk.Path,
			LineStart:   lineStart,
			LineEnd:     lineEnd,
			Description: strings.TrimSpace(raw.Description),
			Confidence:  confidence,
			Excerpt:     raw.Excerpt,
		}))
	}
	return findings, nil
}
