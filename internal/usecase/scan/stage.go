package scan

import (
	"context"
	"sort"
	"sync"

	"github.com/bkyoung/secscan/internal/adapter/llm"
	"github.com/bkyoung/secscan/internal/domain"
)

// ChunkFailure records one chunk whose analysis did not complete. Failed
// chunks never abort the run; they are reported alongside the findings so
// partial coverage is visible.
type ChunkFailure struct {
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Error     string `json:"error"`
}

// Result is the output of the scan stage over one set of units.
type Result struct {
	Findings    []domain.Finding
	Failures    []ChunkFailure
	ChunksTotal int
}

// Options configures a scan stage run.
type Options struct {
	Concurrency     int
	ChunkLines      int
	MaxParseRetries int
	MaxTokens       int

	// TokenBudget, when positive, logs a warning for chunks whose estimated
	// token count exceeds it.
	TokenBudget int
}

// Stage fans chunks out to the model under a concurrency bound and merges
// the results deterministically.
type Stage struct {
	step   *AnalysisStep
	opts   Options
	logger Logger

	// estimateTokens is swappable for tests; defaults to the tiktoken
	// based estimator.
	estimateTokens func(string) int
}

// NewStage constructs a scan stage backed by the given generator.
func NewStage(generator llm.Generator, opts Options, logger Logger) *Stage {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Stage{
		step:           NewAnalysisStep(generator, opts.MaxParseRetries, opts.MaxTokens),
		opts:           opts,
		logger:         logger,
		estimateTokens: llm.EstimateTokens,
	}
}

// Run chunks the units and analyzes every chunk. Results are identical for
// identical model output regardless of completion order: findings are
// grouped by chunk position, then sorted by file and start line with a
// stable sort so same-position findings keep their reported order.
func (s *Stage) Run(ctx context.Context, units []domain.SourceUnit) (Result, error) {
	chunks := SplitUnits(units, s.opts.ChunkLines)
	result := Result{ChunksTotal: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	if s.opts.TokenBudget > 0 {
		for _, chunk := range chunks {
			if est := s.estimateTokens(chunk.Content); est > s.opts.TokenBudget {
				s.logger.LogWarning(ctx, "chunk exceeds token budget", map[string]interface{}{
					"file":            chunk.Path,
					"lines":           chunk.LineCount(),
					"estimatedTokens": est,
					"budget":          s.opts.TokenBudget,
				})
			}
		}
	}

	type chunkOutcome struct {
		findings []domain.Finding
		failure  *ChunkFailure
	}

	outcomes := make([]chunkOutcome, len(chunks))
	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk domain.Chunk) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = chunkOutcome{failure: &ChunkFailure{
					Path:      chunk.Path,
					StartLine: chunk.StartLine,
					EndLine:   chunk.EndLine,
					Error:     ctx.Err().Error(),
				}}
				return
			}

			findings, err := s.step.AnalyzeChunk(ctx, chunk)
			if err != nil {
				outcomes[i] = chunkOutcome{failure: &ChunkFailure{
					Path:      chunk.Path,
					StartLine: chunk.StartLine,
					EndLine:   chunk.EndLine,
					Error:     err.Error(),
				}}
				return
			}
			outcomes[i] = chunkOutcome{findings: findings}
		}(i, chunk)
	}
	wg.Wait()

	// Merge in chunk order first so the stable sort below has a
	// deterministic input sequence.
	for i, outcome := range outcomes {
		if outcome.failure != nil {
			result.Failures = append(result.Failures, *outcome.failure)
			s.logger.LogWarning(ctx, "chunk analysis failed", map[string]interface{}{
				"file":  chunks[i].Path,
				"start": chunks[i].StartLine,
				"end":   chunks[i].EndLine,
				"error": outcome.failure.Error,
			})
			continue
		}
		result.Findings = append(result.Findings, outcome.findings...)
	}

	sort.SliceStable(result.Findings, func(a, b int) bool {
		if result.Findings[a].File != result.Findings[b].File {
			return result.Findings[a].File < result.Findings[b].File
		}
		return result.Findings[a].LineStart < result.Findings[b].LineStart
	})

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
