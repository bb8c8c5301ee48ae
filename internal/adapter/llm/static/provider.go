// Package static provides a scripted model implementation for tests and
// dry runs. It never touches the network: responses are supplied up front
// and replayed in order.
package static

import (
	"context"
	"sync"

	"github.com/bkyoung/secscan/internal/adapter/llm"
)

// Provider replays a fixed sequence of responses. Once the script is
// exhausted the last response repeats, so a single canned response works
// for any number of calls. Safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []llm.GenerateRequest
}

// NewProvider creates a provider that replays the given responses.
func NewProvider(responses ...string) *Provider {
	return &Provider{responses: responses}
}

// WithErrors interleaves errors into the script. A non-nil error at
// position i is returned for call i instead of the response at that
// position. The slice may be shorter than the response script.
func (p *Provider) WithErrors(errs ...error) *Provider {
	p.errs = errs
	return p
}

// Name identifies the provider in logs and summaries.
func (p *Provider) Name() string { return "static" }

// Generate returns the next scripted response.
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.GenerateResponse{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.calls
	p.calls++
	p.prompts = append(p.prompts, req)

	if idx < len(p.errs) && p.errs[idx] != nil {
		return llm.GenerateResponse{}, p.errs[idx]
	}

	if len(p.responses) == 0 {
		return llm.GenerateResponse{Model: "static"}, nil
	}
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}

	text := p.responses[idx]
	return llm.GenerateResponse{
		Text:      text,
		TokensIn:  len(req.Prompt) / 4,
		TokensOut: len(text) / 4,
		Model:     "static",
	}, nil
}

// Calls reports how many times Generate has been invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Prompts returns a copy of every request seen so far, in order.
func (p *Provider) Prompts() []llm.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.GenerateRequest, len(p.prompts))
	copy(out, p.prompts)
	return out
}
