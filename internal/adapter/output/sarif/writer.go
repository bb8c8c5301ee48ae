// Package sarif writes scan reports in SARIF 2.1.0 for code-scanning
// integrations.
package sarif

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/bkyoung/secscan/internal/domain"
	"github.com/bkyoung/secscan/internal/usecase/workflow"
)

const informationURI = "https://github.com/bkyoung/secscan"

// Writer implements the workflow.ReportWriter port in SARIF format.
type Writer struct {
	outputDir string
	now       func() time.Time
}

// NewWriter creates a SARIF writer targeting the given directory.
func NewWriter(outputDir string, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{outputDir: outputDir, now: now}
}

// Write persists the report and returns the written path.
func (w *Writer) Write(ctx context.Context, report workflow.Report) (string, error) {
	doc, err := sarif.New(sarif.Version210)
	if err != nil {
		return "", fmt.Errorf("create sarif report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(report.Tool, informationURI)

	seenRules := make(map[string]bool)
	for _, finding := range report.Findings {
		ruleID := finding.Category
		if ruleID == "" {
			ruleID = domain.CategoryOther
		}
		if !seenRules[ruleID] {
			run.AddRule(ruleID).
				WithDescription(categoryDescription(ruleID)).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: "warning",
				})
			seenRules[ruleID] = true
		}

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(finding.File)).
				WithRegion(sarif.NewRegion().
					WithStartLine(finding.LineStart).
					WithEndLine(finding.LineEnd)),
		)

		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(resultMessage(finding))).
			WithLevel(resultLevel(finding)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}

	doc.AddRun(run)

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("secscan-%s.sarif", w.now().UTC().Format("20060102-150405")))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create sarif file: %w", err)
	}
	defer file.Close()

	if err := doc.PrettyWrite(file); err != nil {
		return "", fmt.Errorf("write sarif: %w", err)
	}
	return path, nil
}

// resultMessage renders the finding description, with the triage verdict
// appended when present.
func resultMessage(finding domain.Finding) string {
	message := finding.Description
	if message == "" {
		message = "No description provided"
	}
	if finding.Triage == nil {
		return message
	}
	switch {
	case finding.Triage.Inconclusive:
		return message + " [triage inconclusive]"
	case finding.Triage.Exploitable:
		return fmt.Sprintf("%s [triage: exploitable, confidence %d/10] %s",
			message, finding.Triage.Confidence, finding.Triage.Explanation)
	default:
		return fmt.Sprintf("%s [triage: not exploitable, confidence %d/10] %s",
			message, finding.Triage.Confidence, finding.Triage.Explanation)
	}
}

// resultLevel maps confidence and triage outcome onto SARIF levels.
func resultLevel(finding domain.Finding) string {
	if finding.Triage != nil && !finding.Triage.Inconclusive {
		if finding.Triage.Exploitable {
			return "error"
		}
		return "note"
	}
	if finding.Confidence >= 8 {
		return "error"
	}
	return "warning"
}

func categoryDescription(category string) string {
	switch category {
	case domain.CategoryInjection:
		return "Injection of untrusted input into an interpreter"
	case domain.CategoryAuth:
		return "Missing or broken authentication or authorization"
	case domain.CategoryCrypto:
		return "Weak or misused cryptography"
	case domain.CategoryPathTraversal:
		return "Filesystem access outside the intended directory"
	case domain.CategoryXSS:
		return "Unescaped output reaching a browser context"
	case domain.CategorySecrets:
		return "Credentials or secrets embedded in source"
	case domain.CategoryDeserialization:
		return "Unsafe deserialization of untrusted data"
	default:
		return "Security finding"
	}
}

var _ workflow.ReportWriter = (*Writer)(nil)
