package scan

import (
	"testing"

	"github.com/bkyoung/secscan/internal/domain"
)

func mkFinding(category, file string, start, end, confidence int, desc string) domain.Finding {
	return domain.NewFinding(domain.FindingInput{
		Category:    category,
		File:        file,
		LineStart:   start,
		LineEnd:     end,
		Description: desc,
		Confidence:  confidence,
	})
}

func TestFilterByConfidenceExclusiveBound(t *testing.T) {
	findings := []domain.Finding{
		mkFinding("injection", "a.go", 1, 1, 5, "below"),
		mkFinding("injection", "a.go", 2, 2, 6, "at threshold"),
		mkFinding("injection", "a.go", 3, 3, 7, "above"),
	}

	out := FilterByConfidence(findings, 6)
	if len(out) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(out))
	}
	if out[0].Confidence != 7 {
		t.Errorf("wrong finding kept: %+v", out[0])
	}
}

func TestFilterByConfidenceZeroThreshold(t *testing.T) {
	findings := []domain.Finding{mkFinding("auth", "a.go", 1, 1, 1, "min confidence")}
	if out := FilterByConfidence(findings, 0); len(out) != 1 {
		t.Errorf("threshold 0 should pass confidence 1, got %d findings", len(out))
	}
}

func TestDeduplicateOverlappingSameCategory(t *testing.T) {
	findings := []domain.Finding{
		mkFinding("injection", "a.go", 10, 20, 6, "seen from chunk one"),
		mkFinding("injection", "a.go", 18, 25, 9, "seen from chunk two"),
	}

	out := Deduplicate(findings)
	if len(out) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(out))
	}
	if out[0].Confidence != 9 {
		t.Errorf("highest confidence must survive, got %d", out[0].Confidence)
	}
}

func TestDeduplicateDistinctCategoriesKept(t *testing.T) {
	findings := []domain.Finding{
		mkFinding("injection", "a.go", 10, 20, 6, "sql"),
		mkFinding("xss", "a.go", 10, 20, 6, "same lines, different issue"),
	}
	if out := Deduplicate(findings); len(out) != 2 {
		t.Fatalf("distinct categories collapsed: %+v", out)
	}
}

func TestDeduplicateDifferentFilesKept(t *testing.T) {
	findings := []domain.Finding{
		mkFinding("injection", "a.go", 10, 20, 6, "sql"),
		mkFinding("injection", "b.go", 10, 20, 6, "sql"),
	}
	if out := Deduplicate(findings); len(out) != 2 {
		t.Fatalf("findings in different files collapsed: %+v", out)
	}
}

func TestDeduplicateNonOverlappingKept(t *testing.T) {
	findings := []domain.Finding{
		mkFinding("injection", "a.go", 10, 20, 6, "first"),
		mkFinding("injection", "a.go", 21, 30, 6, "adjacent, not overlapping"),
	}
	if out := Deduplicate(findings); len(out) != 2 {
		t.Fatalf("adjacent ranges collapsed: %+v", out)
	}
}

func TestDeduplicateTieKeepsFirst(t *testing.T) {
	first := mkFinding("injection", "a.go", 10, 20, 6, "first reported")
	second := mkFinding("injection", "a.go", 15, 25, 6, "second reported")

	out := Deduplicate([]domain.Finding{first, second})
	if len(out) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(out))
	}
	if out[0].ID != first.ID {
		t.Errorf("tie should keep the earlier finding")
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	findings := []domain.Finding{
		mkFinding("injection", "a.go", 10, 20, 6, "a"),
		mkFinding("injection", "a.go", 18, 25, 9, "b"),
		mkFinding("xss", "b.go", 1, 2, 7, "c"),
		mkFinding("auth", "a.go", 100, 110, 8, "d"),
	}

	once := Deduplicate(findings)
	twice := Deduplicate(once)

	if len(once) != len(twice) {
		t.Fatalf("not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("finding %d changed on second pass", i)
		}
	}
}
