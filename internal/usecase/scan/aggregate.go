package scan

import "github.com/bkyoung/secscan/internal/domain"

// Deduplicate collapses findings that report the same issue: same category,
// same file, overlapping line ranges. The highest-confidence instance of
// each group survives, at its original position. Chunk boundaries split
// issues across chunks; this merges them back.
//
// The operation is idempotent: running it over its own output changes
// nothing.
func Deduplicate(findings []domain.Finding) []domain.Finding {
	if len(findings) <= 1 {
		return findings
	}

	removed := make([]bool, len(findings))
	for i := 0; i < len(findings); i++ {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(findings); j++ {
			if removed[j] {
				continue
			}
			if findings[i].Category != findings[j].Category {
				continue
			}
			if !findings[i].Overlaps(findings[j]) {
				continue
			}
			// Ties keep the earlier finding.
			if findings[j].Confidence > findings[i].Confidence {
				removed[i] = true
				break
			}
			removed[j] = true
		}
	}

	out := make([]domain.Finding, 0, len(findings))
	for i, f := range findings {
		if !removed[i] {
			out = append(out, f)
		}
	}
	return out
}
