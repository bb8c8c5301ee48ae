package scan

import (
	"strings"
	"testing"

	"github.com/bkyoung/secscan/internal/domain"
)

func unitWithLines(path string, n int) domain.SourceUnit {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("line\n")
	}
	return domain.SourceUnit{Path: path, Content: b.String(), Language: "go"}
}

func TestSplitUnitCoversEveryLine(t *testing.T) {
	unit := unitWithLines("app.go", 1200)
	chunks := SplitUnit(unit, 500)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	wantRanges := [][2]int{{1, 500}, {501, 1000}, {1001, 1200}}
	for i, want := range wantRanges {
		if chunks[i].StartLine != want[0] || chunks[i].EndLine != want[1] {
			t.Errorf("chunk %d range = [%d,%d], want [%d,%d]",
				i, chunks[i].StartLine, chunks[i].EndLine, want[0], want[1])
		}
	}

	// Contiguous, no gaps or overlap.
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartLine != chunks[i-1].EndLine+1 {
			t.Errorf("gap between chunk %d and %d", i-1, i)
		}
	}

	total := 0
	for _, c := range chunks {
		total += c.LineCount()
	}
	if total != 1200 {
		t.Errorf("chunks cover %d lines, want 1200", total)
	}
}

func TestSplitUnitSmallFile(t *testing.T) {
	unit := unitWithLines("tiny.go", 10)
	chunks := SplitUnit(unit, 500)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 10 {
		t.Errorf("chunk range = [%d,%d], want [1,10]", chunks[0].StartLine, chunks[0].EndLine)
	}
	if chunks[0].Path != "tiny.go" || chunks[0].Language != "go" {
		t.Errorf("chunk identity not carried: %+v", chunks[0])
	}
}

func TestSplitUnitExactMultiple(t *testing.T) {
	chunks := SplitUnit(unitWithLines("even.go", 1000), 500)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].EndLine != 1000 {
		t.Errorf("last chunk ends at %d, want 1000", chunks[1].EndLine)
	}
}

func TestSplitUnitNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		chunks := SplitUnit(unitWithLines("a.go", 40), size)
		if len(chunks) != 1 {
			t.Fatalf("size %d: expected 1 chunk, got %d", size, len(chunks))
		}
		if chunks[0].StartLine != 1 || chunks[0].EndLine != 40 {
			t.Errorf("size %d: chunk range = [%d,%d], want [1,40]", size, chunks[0].StartLine, chunks[0].EndLine)
		}
	}
}

func TestSplitUnitEmpty(t *testing.T) {
	chunks := SplitUnit(domain.SourceUnit{Path: "empty.go"}, 500)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty unit, got %d", len(chunks))
	}
}

func TestSplitUnitsPreservesOrder(t *testing.T) {
	units := []domain.SourceUnit{
		unitWithLines("a.go", 600),
		unitWithLines("b.go", 100),
	}
	chunks := SplitUnits(units, 500)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Path != "a.go" || chunks[1].Path != "a.go" || chunks[2].Path != "b.go" {
		t.Errorf("chunk order broken: %s, %s, %s", chunks[0].Path, chunks[1].Path, chunks[2].Path)
	}
}
