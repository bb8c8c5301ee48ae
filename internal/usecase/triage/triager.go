// Package triage defines the ports for the exploitability triage pass.
// High-confidence findings go through an investigating agent that can read
// the codebase before rendering a verdict; implementations live in the
// adapter layer.
package triage

import (
	"context"

	"github.com/bkyoung/secscan/internal/domain"
)

// Triager renders exploitability verdicts for findings.
type Triager interface {
	// Triage investigates a single finding. A finding whose investigation
	// cannot reach a verdict comes back with Inconclusive set rather than
	// an error; errors are reserved for cancellation and fatal conditions.
	Triage(ctx context.Context, finding domain.Finding) (domain.TriageResult, error)

	// TriageBatch investigates findings, potentially in parallel, and
	// returns results in input order. One finding's failure never stops
	// the rest of the batch.
	TriageBatch(ctx context.Context, findings []domain.Finding) ([]domain.TriageResult, error)
}

// GrepMatch is one line matching a workspace search.
type GrepMatch struct {
	File    string
	Line    int
	Content string
}

// Workspace gives the triage agent read access to the scanned codebase.
// All paths are relative to the scan root; implementations must reject
// traversal outside it.
type Workspace interface {
	// ReadFile returns the contents of a file.
	ReadFile(path string) ([]byte, error)

	// FileExists reports whether a regular file exists at the path.
	FileExists(path string) bool

	// Grep searches for a regex pattern. With no paths it searches the
	// whole workspace.
	Grep(pattern string, paths ...string) ([]GrepMatch, error)

	// ListFiles returns every regular file path in the workspace.
	ListFiles() ([]string, error)
}
