// Package gemini provides a client for the Gemini generative language API
// with retry support. It covers the two surfaces this tool needs: the file
// store (upload + state polling) and text generation grounded on uploaded
// files.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits API response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Client is a Gemini API client with retry support.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// GenerateRequest defines a content generation request.
type GenerateRequest struct {
	// Prompt is the full instruction text sent as the user turn.
	Prompt string

	// Files are uploaded documents attached as context.
	Files []*File

	// Temperature controls randomness. nil uses the model default.
	Temperature *float64
}

// TokenUsage represents token consumption details for a generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse contains the generation result.
type GenerateResponse struct {
	// RequestID uniquely identifies this call for log correlation.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model that produced the response.
	Model string

	// Usage contains token consumption metrics when reported.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) ClientOption {
	return func(client *Client) {
		client.baseURL = strings.TrimSuffix(url, "/")
	}
}

// NewClient creates a Gemini client for the given model.
func NewClient(apiKey, model string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     DefaultBaseURL,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Allow time for long generations
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Generate sends a generation request, retrying transient failures with
// bounded backoff. The returned response carries the verbatim model text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	requestID := uuid.New().String()

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doGenerate(ctx, req)
		if err == nil {
			resp.RequestID = requestID
			return resp, nil
		}

		lastErr = err

		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Warn("Gemini request failed, retrying",
				"request_id", requestID,
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				// Continue to retry
			}
		}
	}

	return nil, fmt.Errorf("generation failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents thundering herd when multiple workers retry simultaneously.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// Add jitter: +/- 25% to prevent synchronized retries
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// generateContentRequest is the generateContent wire format.
type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MIMEType string `json:"mime_type,omitempty"`
	FileURI  string `json:"file_uri"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// generateContentResponse is the generateContent response wire format.
type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
			Role string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// doGenerate executes a single generateContent request.
func (c *Client) doGenerate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	parts := []part{{Text: req.Prompt}}
	for _, f := range req.Files {
		parts = append(parts, part{FileData: &fileData{
			MIMEType: f.MIMEType,
			FileURI:  f.URI,
		}})
	}

	body := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}
	if req.Temperature != nil {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("marshal request body: %w", err))
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	c.logger.Debug("Sending generation request",
		"model", c.model,
		"files", len(req.Files),
		"prompt_bytes", len(req.Prompt))

	respBody, err := c.doJSON(ctx, http.MethodPost, url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewFatalError(fmt.Errorf("parse generation response: %w", err))
	}

	if len(parsed.Candidates) == 0 {
		return nil, NewFatalError(fmt.Errorf("no candidates in response"))
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	return &GenerateResponse{
		Content: sb.String(),
		Model:   c.model,
		Usage: TokenUsage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
		FinishReason: parsed.Candidates[0].FinishReason,
	}, nil
}

// doJSON executes a single HTTP request and returns the response body.
// Extra headers beyond auth and content type are the caller's job.
func (c *Client) doJSON(ctx context.Context, method, url, contentType string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return respBody, nil
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("Gemini API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		// Rate limiting is transient
		return NewTransientError(err)
	case statusCode == http.StatusServiceUnavailable,
		statusCode == http.StatusBadGateway,
		statusCode == http.StatusGatewayTimeout:
		// Server errors are transient
		return NewTransientError(err)
	case statusCode >= 500:
		// Other 5xx errors are transient
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		// Auth errors are fatal
		return NewFatalError(err)
	case statusCode == http.StatusBadRequest:
		// Bad requests are fatal
		return NewFatalError(err)
	default:
		// Unknown errors default to fatal
		return NewFatalError(err)
	}
}
