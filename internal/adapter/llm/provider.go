package llm

import "context"

// Generator is the single port every provider client implements. The scan
// stage and the triage agent both talk to models exclusively through it.
type Generator interface {
	// Name identifies the provider in logs and summaries.
	Name() string

	// Generate performs one model call. Implementations handle transport
	// retries internally; the returned error is terminal for the call.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}
