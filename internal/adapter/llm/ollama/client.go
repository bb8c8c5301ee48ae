package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bkyoung/secscan/internal/adapter/llm"
	llmhttp "github.com/bkyoung/secscan/internal/adapter/llm/http"
)

const (
	defaultBaseURL = "http://localhost:11434"
	// Local models can be slow; give them room.
	defaultTimeout = 300 * time.Second
)

// GenerateRequest is the Ollama generate API request payload.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is the Ollama generate API response payload.
type GenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Client is an HTTP client for a local Ollama server.
type Client struct {
	model   string
	baseURL string
	client  *http.Client
	retry   llmhttp.RetryConfig
	logger  llmhttp.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default Ollama server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.client.Timeout = timeout }
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(rc llmhttp.RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithLogger attaches a request logger.
func WithLogger(l llmhttp.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new Ollama client.
func NewClient(model string, opts ...Option) *Client {
	c := &Client{
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		retry:   llmhttp.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the provider in logs and summaries.
func (c *Client) Name() string { return "ollama" }

// Generate sends a non-streaming request to the Ollama generate API.
func (c *Client) Generate(ctx context.Context, genReq llm.GenerateRequest) (llm.GenerateResponse, error) {
	reqBody := GenerateRequest{
		Model:  c.model,
		Prompt: genReq.Prompt,
		System: genReq.System,
		Stream: false,
	}
	if genReq.MaxTokens > 0 {
		reqBody.Options = map[string]any{"num_predict": genReq.MaxTokens}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/api/generate"
	start := time.Now()

	if c.logger != nil {
		c.logger.LogRequest(ctx, llmhttp.RequestLog{
			Provider:    "ollama",
			Model:       c.model,
			Timestamp:   start,
			PromptChars: len(genReq.Prompt),
		})
	}

	var resp *http.Response
	err = llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			return &llmhttp.Error{
				Type:      llmhttp.ErrTypeUnknown,
				Message:   reqErr.Error(),
				Retryable: false,
				Provider:  "ollama",
			}
		}
		req.Header.Set("Content-Type", "application/json")

		var callErr error
		resp, callErr = c.client.Do(req)
		if callErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Connection refused usually means the server is not running;
			// retrying does not help there but a busy server can recover.
			return llmhttp.NewServiceUnavailableError("ollama", callErr.Error())
		}

		if resp.StatusCode >= 400 {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return handleErrorResponse(resp.StatusCode, bodyBytes)
		}

		return nil
	}, c.retry)

	if err != nil {
		if c.logger != nil {
			c.logger.LogError(ctx, llmhttp.ErrorLog{
				Provider:  "ollama",
				Model:     c.model,
				Timestamp: time.Now(),
				Duration:  time.Since(start),
				Error:     err,
			})
		}
		return llm.GenerateResponse{}, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(bodyBytes, &genResp); err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}

	out := llm.GenerateResponse{
		Text:       genResp.Response,
		TokensIn:   genResp.PromptEvalCount,
		TokensOut:  genResp.EvalCount,
		Model:      genResp.Model,
		StopReason: genResp.DoneReason,
	}

	if c.logger != nil {
		c.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:   "ollama",
			Model:      out.Model,
			Timestamp:  time.Now(),
			Duration:   time.Since(start),
			TokensIn:   out.TokensIn,
			TokensOut:  out.TokensOut,
			StatusCode: resp.StatusCode,
			StopReason: out.StopReason,
		})
	}

	return out, nil
}

// handleErrorResponse maps HTTP status codes to typed errors.
func handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}

	switch statusCode {
	case http.StatusNotFound:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeModelNotFound,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "ollama",
		}
	case http.StatusBadRequest:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeInvalidRequest,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "ollama",
		}
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeServiceUnavailable,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   "ollama",
		}
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "ollama",
		}
	}
}
