package domain

import (
	"strings"
	"testing"
)

func TestSourceUnitTotalLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"single line no newline", "package main", 1},
		{"single line with newline", "package main\n", 1},
		{"three lines", "a\nb\nc\n", 3},
		{"trailing blank line", "a\nb\n\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := SourceUnit{Path: "f.go", Content: tt.content}
			if got := u.TotalLines(); got != tt.want {
				t.Errorf("TotalLines() = %d, want %d", got, tt.want)
			}
			if got := len(u.Lines()); got != tt.want {
				t.Errorf("len(Lines()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewFindingDeterministicID(t *testing.T) {
	input := FindingInput{
		Category:    CategoryInjection,
		File:        "api/handler.go",
		LineStart:   10,
		LineEnd:     12,
		Description: "user input concatenated into SQL query",
		Confidence:  8,
	}

	a := NewFinding(input)
	b := NewFinding(input)
	if a.ID != b.ID {
		t.Errorf("same input produced different IDs: %s vs %s", a.ID, b.ID)
	}

	input.LineStart = 11
	c := NewFinding(input)
	if a.ID == c.ID {
		t.Error("different line range produced identical ID")
	}

	// Confidence does not participate in identity: the same issue reported
	// with different scores must dedupe to one finding.
	input.LineStart = 10
	input.Confidence = 3
	d := NewFinding(input)
	if a.ID != d.ID {
		t.Error("confidence changed the finding ID")
	}
}

func TestFindingWithTriageDoesNotMutate(t *testing.T) {
	orig := NewFinding(FindingInput{Category: CategoryAuth, File: "a.go", LineStart: 1, LineEnd: 2, Description: "x", Confidence: 9})

	triaged := orig.WithTriage(TriageResult{Exploitable: true, Confidence: 9, Explanation: "confirmed"})

	if orig.Triage != nil {
		t.Error("WithTriage mutated the original finding")
	}
	if triaged.Triage == nil || !triaged.Triage.Exploitable {
		t.Error("triage result not attached to the copy")
	}
	if triaged.ID != orig.ID {
		t.Error("triage changed the finding identity")
	}
}

func TestFindingOverlaps(t *testing.T) {
	base := Finding{File: "a.go", LineStart: 10, LineEnd: 20}

	tests := []struct {
		name  string
		other Finding
		want  bool
	}{
		{"identical", Finding{File: "a.go", LineStart: 10, LineEnd: 20}, true},
		{"partial overlap", Finding{File: "a.go", LineStart: 18, LineEnd: 25}, true},
		{"touching boundary", Finding{File: "a.go", LineStart: 20, LineEnd: 30}, true},
		{"disjoint", Finding{File: "a.go", LineStart: 21, LineEnd: 30}, false},
		{"different file", Finding{File: "b.go", LineStart: 10, LineEnd: 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkNumbered(t *testing.T) {
	c := Chunk{Path: "a.go", StartLine: 41, EndLine: 42, Content: "x := 1\ny := 2\n"}
	out := c.Numbered()

	if !strings.Contains(out, "41 | x := 1") {
		t.Errorf("missing absolute line number, got:\n%s", out)
	}
	if !strings.Contains(out, "42 | y := 2") {
		t.Errorf("missing second line, got:\n%s", out)
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := NormalizeCategory("injection"); got != CategoryInjection {
		t.Errorf("got %q", got)
	}
	if got := NormalizeCategory("SQL Injection (CWE-89)"); got != CategoryOther {
		t.Errorf("free-form category not normalized, got %q", got)
	}
}
