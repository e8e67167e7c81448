// Package sheets provides a Google Sheets client covering the small surface
// this tool needs: worksheet metadata, column snapshot reads, and single-cell
// updates. Authentication uses a service account; the client is safe for
// concurrent use by multiple workers.
package sheets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
)

// maxResponseSize limits API response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultBaseURL is the public Sheets API endpoint.
const DefaultBaseURL = "https://sheets.googleapis.com"

// Scope is the OAuth scope required for reading and writing spreadsheets.
const Scope = "https://www.googleapis.com/auth/spreadsheets"

// RetryConfig holds retry configuration for Sheets requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per call.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults for Sheets requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Client is a Google Sheets API client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The client must inject
// authentication; use NewServiceAccountClient for the standard setup.
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

// NewClient creates a Sheets client. Callers are responsible for supplying
// an authenticated HTTP client via WithHTTPClient.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewServiceAccountClient creates a Sheets client authenticated with the
// service account key file at credentialsFile.
func NewServiceAccountClient(ctx context.Context, credentialsFile string, opts ...ClientOption) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	authClient := jwtConfig.Client(ctx)
	authClient.Timeout = 60 * time.Second

	opts = append([]ClientOption{WithHTTPClient(authClient)}, opts...)
	return NewClient(opts...), nil
}

// retryable reports whether an HTTP status code is worth retrying.
// Rate limits and server-side errors are transient; auth and bad-request
// errors are not.
func retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// doJSON executes an HTTP request with retry on transient failures and
// returns the response body.
func (c *Client) doJSON(ctx context.Context, method, url string, body func() (io.Reader, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		respBody, retryAgain, err := c.doOnce(ctx, method, url, body)
		if err == nil {
			return respBody, nil
		}

		lastErr = err
		if !retryAgain {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Warn("Sheets request failed, retrying",
				"method", method,
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

	return nil, fmt.Errorf("sheets request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// doOnce executes a single HTTP request. The second return value reports
// whether the failure is transient.
func (c *Client) doOnce(ctx context.Context, method, url string, body func() (io.Reader, error)) ([]byte, bool, error) {
	var reader io.Reader
	if body != nil {
		var err error
		reader, err = body()
		if err != nil {
			return nil, false, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, fmt.Errorf("create HTTP request: %w", err)
	}
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, true, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		bodyStr := string(respBody)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return nil, retryable(httpResp.StatusCode),
			fmt.Errorf("sheets API error (status %d): %s", httpResp.StatusCode, bodyStr)
	}

	return respBody, false, nil
}

// calculateBackoff computes exponential backoff duration with jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}
