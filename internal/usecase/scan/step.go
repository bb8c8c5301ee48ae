package scan

import (
	"context"
	"fmt"

	"github.com/bkyoung/secscan/internal/adapter/llm"
	"github.com/bkyoung/secscan/internal/domain"
)

// AnalysisStep runs one chunk through the model and parses the result.
// Transport problems surface directly from the provider client, which
// handles its own backoff; this layer only retries malformed output, with
// a repair prompt carrying the previous response and parse error.
type AnalysisStep struct {
	generator       llm.Generator
	maxParseRetries int
	maxTokens       int
}

// NewAnalysisStep constructs the step. maxParseRetries bounds repair
// attempts beyond the initial call.
func NewAnalysisStep(generator llm.Generator, maxParseRetries, maxTokens int) *AnalysisStep {
	return &AnalysisStep{
		generator:       generator,
		maxParseRetries: maxParseRetries,
		maxTokens:       maxTokens,
	}
}

// AnalyzeChunk analyzes a single chunk. When every repair attempt fails the
// error carries the final parse failure; the last raw response never leaks
// into results.
func (s *AnalysisStep) AnalyzeChunk(ctx context.Context, chunk domain.Chunk) ([]domain.Finding, error) {
	prompt := BuildChunkPrompt(chunk)

	var lastParseErr error
	for attempt := 0; attempt <= s.maxParseRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := s.generator.Generate(ctx, llm.GenerateRequest{
			System:    SystemPrompt,
			Prompt:    prompt,
			MaxTokens: s.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("analyze %s:%d-%d: %w", chunk.Path, chunk.StartLine, chunk.EndLine, err)
		}

		findings, parseErr := ParseFindings(resp.Text, chunk)
		if parseErr == nil {
			return findings, nil
		}

		lastParseErr = parseErr
		prompt = BuildRepairPrompt(chunk, resp.Text, parseErr)
	}

	return nil, fmt.Errorf("analyze %s:%d-%d: unparsable output after %d attempts: %w",
		chunk.Path, chunk.StartLine, chunk.EndLine, s.maxParseRetries+1, lastParseErr)
}
