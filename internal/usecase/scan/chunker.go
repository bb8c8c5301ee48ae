package scan

import (
	"strings"

	"github.com/bkyoung/secscan/internal/domain"
)

// SplitUnit divides a source unit into chunks of at most maxLines lines.
// Every line of the unit lands in exactly one chunk, in order, and line
// numbers stay in file coordinates. An empty unit produces no chunks.
func SplitUnit(unit domain.SourceUnit, maxLines int) []domain.Chunk {
	lines := unit.Lines()
	if len(lines) == 0 {
		return nil
	}
	// Non-positive sizes would stall the loop below; fall back to one
	// chunk covering the whole unit.
	if maxLines <= 0 {
		maxLines = len(lines)
	}

	chunks := make([]domain.Chunk, 0, (len(lines)+maxLines-1)/maxLines)
	for start := 0; start < len(lines); start += maxLines {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, domain.Chunk{
			Path:      unit.Path,
			Language:  unit.Language,
			StartLine: start + 1,
			EndLine:   end,
			Content:   strings.Join(lines[start:end], "\n") + "\n",
		})
	}
	return chunks
}

// SplitUnits chunks every unit, preserving unit order.
func SplitUnits(units []domain.SourceUnit, maxLines int) []domain.Chunk {
	var chunks []domain.Chunk
	for _, unit := range units {
		chunks = append(chunks, SplitUnit(unit, maxLines)...)
	}
	return chunks
}
