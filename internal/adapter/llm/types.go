// Package llm provides LLM provider adapters and shared request types.
package llm

// GenerateRequest is one prompt sent to a provider. The system prompt is
// optional; providers fall back to a neutral default.
type GenerateRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// GenerateResponse carries the raw model text plus usage accounting. Raw
// text never travels past the parse step of the calling stage.
type GenerateResponse struct {
	Text       string
	TokensIn   int
	TokensOut  int
	Model      string
	StopReason string
}
