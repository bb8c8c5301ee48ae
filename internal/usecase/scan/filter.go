package scan

import "github.com/bkyoung/secscan/internal/domain"

// FilterByConfidence drops findings at or below the threshold. The bound is
// exclusive: a finding at exactly the threshold does not pass. Order is
// preserved.
func FilterByConfidence(findings []domain.Finding, threshold int) []domain.Finding {
	out := make([]domain.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Confidence > threshold {
			out = append(out, f)
		}
	}
	return out
}
