// Package workflow composes the full analysis pipeline: discovery, chunked
// scanning, confidence filtering, exploitability triage, and aggregation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bkyoung/secscan/internal/config"
	"github.com/bkyoung/secscan/internal/domain"
	"github.com/bkyoung/secscan/internal/usecase/scan"
	"github.com/bkyoung/secscan/internal/usecase/triage"
)

// Discoverer enumerates the source units to analyze.
type Discoverer interface {
	Discover(ctx context.Context) ([]domain.SourceUnit, error)
}

// ReportWriter persists a finished report and returns the written path.
type ReportWriter interface {
	Write(ctx context.Context, report Report) (string, error)
}

// Store persists run history.
type Store interface {
	SaveRun(ctx context.Context, report Report) error
	Close() error
}

// Redactor strips secrets from finding text before it leaves the pipeline.
type Redactor interface {
	Redact(input string) (string, error)
}

// Summary carries the run-level accounting reported alongside findings.
type Summary struct {
	FilesScanned     int                `json:"filesScanned"`
	ChunksTotal      int                `json:"chunksTotal"`
	ChunksFailed     int                `json:"chunksFailed"`
	Failures         []scan.ChunkFailure `json:"failures,omitempty"`
	FindingsRaw      int                `json:"findingsRaw"`
	FindingsReported int                `json:"findingsReported"`
	Triaged          int                `json:"triaged"`
	Inconclusive     int                `json:"inconclusive"`

	// Incomplete is set when cancellation stopped the run before every
	// chunk or finding was processed.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Report is the final output of one run.
type Report struct {
	Tool       string           `json:"tool"`
	Provider   string           `json:"provider"`
	Root       string           `json:"root"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Findings   []domain.Finding `json:"findings"`
	Summary    Summary          `json:"summary"`
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg        config.Config
	discoverer Discoverer
	stage      *scan.Stage
	triager    triage.Triager
	writers    []ReportWriter
	store      Store
	redactor   Redactor
	logger     scan.Logger
	provider   string
	root       string
	now        func() time.Time
}

// RunnerOptions carries the constructor dependencies.
type RunnerOptions struct {
	Config     config.Config
	Discoverer Discoverer
	Stage      *scan.Stage
	Triager    triage.Triager // nil when triage is disabled
	Writers    []ReportWriter
	Store      Store    // nil when persistence is disabled
	Redactor   Redactor // nil when redaction is disabled
	Logger     scan.Logger
	Provider   string
	Root       string
	Now        func() time.Time
}

// NewRunner constructs a Runner. Config must already be validated.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = scan.NopLogger{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:        opts.Config,
		discoverer: opts.Discoverer,
		stage:      opts.Stage,
		triager:    opts.Triager,
		writers:    opts.Writers,
		store:      opts.Store,
		redactor:   opts.Redactor,
		logger:     logger,
		provider:   opts.Provider,
		root:       opts.Root,
		now:        now,
	}
}

// Run executes the pipeline end to end. On cancellation the partial report
// is returned with Summary.Incomplete set, alongside the context error, so
// callers can still persist what completed.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{
		Tool:      "secscan",
		Provider:  r.provider,
		Root:      r.root,
		StartedAt: r.now(),
	}

	units, err := r.discoverer.Discover(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Summary.Incomplete = true
			report.FinishedAt = r.now()
			return report, err
		}
		return report, fmt.Errorf("discover: %w", err)
	}
	report.Summary.FilesScanned = len(units)

	r.logger.LogInfo(ctx, "starting scan", map[string]interface{}{
		"files":    len(units),
		"provider": r.provider,
	})

	scanResult, scanErr := r.stage.Run(ctx, units)
	report.Summary.ChunksTotal = scanResult.ChunksTotal
	report.Summary.ChunksFailed = len(scanResult.Failures)
	report.Summary.Failures = scanResult.Failures
	report.Summary.FindingsRaw = len(scanResult.Findings)

	findings := scan.FilterByConfidence(scanResult.Findings, r.cfg.Scan.ConfidenceThreshold)

	if scanErr != nil {
		// Cancellation mid-scan: skip triage, report what completed.
		report.Summary.Incomplete = true
		report.Findings = r.redactFindings(ctx, scan.Deduplicate(findings))
		report.Summary.FindingsReported = len(report.Findings)
		report.FinishedAt = r.now()
		return report, scanErr
	}

	if r.cfg.Triage.Enabled && r.triager != nil && len(findings) > 0 {
		results, triageErr := r.triager.TriageBatch(ctx, findings)
		for i := range findings {
			if i >= len(results) {
				break
			}
			findings[i] = findings[i].WithTriage(results[i])
			report.Summary.Triaged++
			if results[i].Inconclusive {
				report.Summary.Inconclusive++
			}
		}
		if triageErr != nil {
			report.Summary.Incomplete = true
			report.Findings = r.redactFindings(ctx, scan.Deduplicate(findings))
			report.Summary.FindingsReported = len(report.Findings)
			report.FinishedAt = r.now()
			return report, triageErr
		}
	}

	report.Findings = r.redactFindings(ctx, scan.Deduplicate(findings))
	report.Summary.FindingsReported = len(report.Findings)
	report.FinishedAt = r.now()

	for _, writer := range r.writers {
		path, err := writer.Write(ctx, report)
		if err != nil {
			return report, fmt.Errorf("write report: %w", err)
		}
		r.logger.LogInfo(ctx, "report written", map[string]interface{}{"path": path})
	}

	if r.store != nil {
		if err := r.store.SaveRun(ctx, report); err != nil {
			// History persistence never fails the run.
			r.logger.LogWarning(ctx, "failed to persist run", map[string]interface{}{"error": err.Error()})
		}
	}

	return report, nil
}

// redactFindings strips secrets from every text field that reaches a report
// file or the run history. A redaction failure keeps the original text and
// logs a warning rather than dropping the finding.
func (r *Runner) redactFindings(ctx context.Context, findings []domain.Finding) []domain.Finding {
	if r.redactor == nil {
		return findings
	}
	for i := range findings {
		findings[i].Description = r.redactText(ctx, findings[i].Description)
		findings[i].Excerpt = r.redactText(ctx, findings[i].Excerpt)
		if findings[i].Triage != nil {
			triage := *findings[i].Triage
			triage.Explanation = r.redactText(ctx, triage.Explanation)
			if len(triage.Trace) > 0 {
				// The struct copy still shares the Trace backing array
				// with the result the triager returned.
				trace := make([]domain.ToolInvocation, len(triage.Trace))
				copy(trace, triage.Trace)
				for j := range trace {
					trace[j].Output = r.redactText(ctx, trace[j].Output)
				}
				triage.Trace = trace
			}
			findings[i].Triage = &triage
		}
	}
	return findings
}

func (r *Runner) redactText(ctx context.Context, text string) string {
	if text == "" {
		return text
	}
	redacted, err := r.redactor.Redact(text)
	if err != nil {
		r.logger.LogWarning(ctx, "redaction failed", map[string]interface{}{"error": err.Error()})
		return text
	}
	return redacted
}
