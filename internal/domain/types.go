package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Confidence scores are reported by the model on a 1-10 scale.
const (
	MinConfidence = 1
	MaxConfidence = 10
)

// SourceUnit is one discovered file: identity, full content, and a detected
// language tag. Immutable once read.
type SourceUnit struct {
	Path     string
	Content  string
	Language string
}

// TotalLines returns the number of lines in the unit's content.
// An empty unit has zero lines.
func (u SourceUnit) TotalLines() int {
	if u.Content == "" {
		return 0
	}
	n := strings.Count(u.Content, "\n") + 1
	if strings.HasSuffix(u.Content, "\n") {
		n--
	}
	return n
}

// Lines returns the unit's content split into lines. The trailing empty
// element produced by a final newline is dropped.
func (u SourceUnit) Lines() []string {
	if u.Content == "" {
		return nil
	}
	lines := strings.Split(u.Content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(u.Content, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Chunk is a 1-based inclusive line-range slice of one SourceUnit, submitted
// as a single analysis request. Chunks are value objects scoped to one scan.
type Chunk struct {
	Path      string
	Language  string
	StartLine int
	EndLine   int
	Content   string
}

// LineCount returns the number of lines covered by the chunk.
func (c Chunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// Numbered renders the chunk content with 1-based absolute line numbers for
// prompt rendering, so the model reports locations in file coordinates.
func (c Chunk) Numbered() string {
	var sb strings.Builder
	for i, line := range strings.Split(strings.TrimSuffix(c.Content, "\n"), "\n") {
		fmt.Fprintf(&sb, "%5d | %s\n", c.StartLine+i, line)
	}
	return sb.String()
}

// Finding is one reported issue instance. Findings are immutable; triage
// produces a replacement carrying the original fields plus a TriageResult.
type Finding struct {
	ID          string        `json:"id"`
	Category    string        `json:"category"`
	File        string        `json:"file"`
	LineStart   int           `json:"lineStart"`
	LineEnd     int           `json:"lineEnd"`
	Description string        `json:"description"`
	Confidence  int           `json:"confidence"`
	Excerpt     string        `json:"excerpt,omitempty"`
	Triage      *TriageResult `json:"triage,omitempty"`
}

// FindingInput captures the information required to create a Finding.
type FindingInput struct {
	Category    string
	File        string
	LineStart   int
	LineEnd     int
	Description string
	Confidence  int
	Excerpt     string
}

// NewFinding constructs a Finding with a deterministic ID derived from its
// identifying fields.
func NewFinding(input FindingInput) Finding {
	return Finding{
		ID:          hashFinding(input),
		Category:    input.Category,
		File:        input.File,
		LineStart:   input.LineStart,
		LineEnd:     input.LineEnd,
		Description: input.Description,
		Confidence:  input.Confidence,
		Excerpt:     input.Excerpt,
	}
}

func hashFinding(input FindingInput) string {
	payload := fmt.Sprintf("%s|%s|%d|%d|%s",
		input.Category,
		input.File,
		input.LineStart,
		input.LineEnd,
		input.Description,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// WithTriage returns a copy of the finding carrying the triage result.
// The original finding is never mutated in place.
func (f Finding) WithTriage(result TriageResult) Finding {
	out := f
	out.Triage = &result
	return out
}

// Overlaps reports whether two findings cover intersecting line ranges in
// the same file.
func (f Finding) Overlaps(other Finding) bool {
	if f.File != other.File {
		return false
	}
	return f.LineStart <= other.LineEnd && other.LineStart <= f.LineEnd
}

// ToolInvocation records one round of the triage loop: the requested tool,
// its parameters, and the textual result fed back to the model.
type ToolInvocation struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
	Output string         `json:"output"`
}

// TriageResult is the exploitability verdict attached to a finding by the
// triage agent. Inconclusive marks findings whose iteration budget ran out
// before the model produced a verdict.
type TriageResult struct {
	Exploitable  bool             `json:"exploitable"`
	Confidence   int              `json:"confidence"`
	Explanation  string           `json:"explanation"`
	TracePath    []string         `json:"tracePath,omitempty"`
	Trace        []ToolInvocation `json:"trace,omitempty"`
	Inconclusive bool             `json:"inconclusive,omitempty"`
}
