package openai

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
	defaultBaseURL   = "https://api.openai.com"
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 4096
)

// Client is an HTTP client for the OpenAI chat completions API.
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

// WithBaseURL sets a custom base URL (for testing or proxies).
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

// NewClient creates a new OpenAI client.
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
func (c *Client) Name() string { return "openai" }

// Generate sends a single-turn chat completion request and returns the raw
// model text. Transient failures are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, genReq llm.GenerateRequest) (llm.GenerateResponse, error) {
	maxTokens := genReq.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]Message, 0, 2)
	if genReq.System != "" {
		messages = append(messages, Message{Role: "system", Content: genReq.System})
	}
	messages = append(messages, Message{Role: "user", Content: genReq.Prompt})

	reqBody := ChatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	start := time.Now()

	if c.logger != nil {
		c.logger.LogRequest(ctx, llmhttp.RequestLog{
			Provider:    "openai",
			Model:       c.model,
			Timestamp:   start,
			PromptChars: len(genReq.Prompt),
			APIKey:      c.apiKey,
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
				Provider:  "openai",
			}
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var callErr error
		resp, callErr = c.client.Do(req)
		if callErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return llmhttp.NewTimeoutError("openai", callErr.Error())
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

	var chatResp ChatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return llm.GenerateResponse{}, fmt.Errorf("openai: no choices in response")
	}

	choice := chatResp.Choices[0]
	out := llm.GenerateResponse{
		Text:       choice.Message.Content,
		TokensIn:   chatResp.Usage.PromptTokens,
		TokensOut:  chatResp.Usage.CompletionTokens,
		Model:      chatResp.Model,
		StopReason: choice.FinishReason,
	}

	if c.logger != nil {
		c.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:   "openai",
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
		Provider:  "openai",
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
			Provider:   "openai",
		}
	case http.StatusTooManyRequests:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeRateLimit,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   "openai",
		}
	case http.StatusBadRequest:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeInvalidRequest,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "openai",
		}
	case http.StatusNotFound:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeModelNotFound,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "openai",
		}
	case http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeServiceUnavailable,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   "openai",
		}
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   "openai",
		}
	}
}
