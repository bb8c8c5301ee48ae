package anthropic

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
	defaultBaseURL          = "https://api.anthropic.com"
	defaultTimeout          = 120 * time.Second
	defaultAnthropicVersion = "2023-06-01"
	defaultMaxTokens        = 4096
)

// Client is an HTTP client for the Anthropic Messages API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	retry   llmhttp.RetryConfig
	logger  llmhttp.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
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

// NewClient creates a new Anthropic client.
func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
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
func (c *Client) Name() string { return "anthropic" }

// Generate sends a single-turn request to the Messages API and returns the
// raw model text. Transient failures (429, 5xx, 529 overloaded) are retried
// with exponential backoff before the error surfaces to the caller.
func (c *Client) Generate(ctx context.Context, genReq llm.GenerateRequest) (llm.GenerateResponse, error) {
	maxTokens := genReq.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	reqBody := MessagesRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "user", Content: genReq.Prompt},
		},
		System:    genReq.System,
		MaxTokens: maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/messages"
	start := time.Now()

	if c.logger != nil {
		c.logger.LogRequest(ctx, llmhttp.RequestLog{
			Provider:    "anthropic",
			Model:       c.model,
			Timestamp:   start,
			PromptChars: len(genReq.Prompt),
			APIKey:      c.apiKey,
		})
	}

	var resp *http.Response
	err = llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		// Rebuild the request for each attempt so the body reader is fresh.
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			return &llmhttp.Error{
				Type:      llmhttp.ErrTypeUnknown,
				Message:   reqErr.Error(),
				Retryable: false,
				Provider:  "anthropic",
			}
		}

		// Anthropic uses x-api-key instead of Authorization.
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", defaultAnthropicVersion)

		var callErr error
		resp, callErr = c.client.Do(req)
		if callErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return llmhttp.NewTimeoutError("anthropic", callErr.Error())
		}

		if resp.StatusCode >= 400 {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return handleErrorResponse(resp.StatusCode, bodyBytes)
		}

		return nil
	}, c.retry)

	if err != nil {
		c.logError(ctx, start, err)
		return llm.GenerateResponse{}, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var messagesResp MessagesResponse
	if err := json.Unmarshal(bodyBytes, &messagesResp); err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(messagesResp.Content) == 0 {
		return llm.GenerateResponse{}, fmt.Errorf("anthropic: no content in response")
	}

	var textParts []string
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	out := llm.GenerateResponse{
		Text:       strings.Join(textParts, ""),
		TokensIn:   messagesResp.Usage.InputTokens,
		TokensOut:  messagesResp.Usage.OutputTokens,
		Model:      messagesResp.Model,
		StopReason: messagesResp.StopReason,
	}

	if c.logger != nil {
		c.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:   "anthropic",
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

func (c *Client) logError(ctx context.Context, start time.Time, err error) {
	if c.logger == nil {
		return
	}
	entry := llmhttp.ErrorLog{
		Provider:  "anthropic",
		Model:     c.model,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Error:     err,
	}
	if httpErr, ok := err.(*llmhttp.Error); ok {
		entry.ErrorType = httpErr.Type
		entry.StatusCode = httpErr.StatusCode
		entry.Retryable = httpErr.Retryable
	}
	c.logger.LogError(ctx, entry)
}

// handleErrorResponse maps HTTP status codes to typed errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp ErrorResponse
	message := fmt.Sprintf("HTTP %d", statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeAuthentication,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "anthropic",
		}
	case http.StatusTooManyRequests:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeRateLimit,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   "anthropic",
		}
	case http.StatusBadRequest:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeInvalidRequest,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "anthropic",
		}
	case http.StatusNotFound:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeModelNotFound,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "anthropic",
		}
	case 529: // Anthropic-specific: overloaded
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeServiceUnavailable,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   "anthropic",
		}
	case http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeServiceUnavailable,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   "anthropic",
		}
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "anthropic",
		}
	}
}
