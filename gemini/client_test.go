package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attestware/sheetcomply/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps retry tests quick.
func fastRetry() gemini.RetryConfig {
	return gemini.RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        5 * time.Millisecond,
	}
}

func successBody(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
					"role":  "model",
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]int{
			"promptTokenCount":     12,
			"candidatesTokenCount": 7,
			"totalTokenCount":      19,
		},
	}
}

func TestClient_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		contents := req["contents"].([]any)
		require.Len(t, contents, 1)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(successBody("Compliant - encryption at rest is covered"))
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-1.5-pro", gemini.WithBaseURL(server.URL))

	resp, err := client.Generate(context.Background(), gemini.GenerateRequest{
		Prompt: "Evaluate this requirement",
	})

	require.NoError(t, err)
	assert.Equal(t, "Compliant - encryption at rest is covered", resp.Content)
	assert.Equal(t, "gemini-1.5-pro", resp.Model)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Generate_AttachesFileParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text     string `json:"text"`
					FileData *struct {
						MIMEType string `json:"mime_type"`
						FileURI  string `json:"file_uri"`
					} `json:"file_data"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 3)

		assert.Equal(t, "Evaluate", req.Contents[0].Parts[0].Text)
		require.NotNil(t, req.Contents[0].Parts[1].FileData)
		assert.Equal(t, "application/pdf", req.Contents[0].Parts[1].FileData.MIMEType)
		assert.Equal(t, "files/soc2", req.Contents[0].Parts[1].FileData.FileURI)
		require.NotNil(t, req.Contents[0].Parts[2].FileData)
		assert.Equal(t, "files/iso", req.Contents[0].Parts[2].FileData.FileURI)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(successBody("ok"))
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-1.5-pro", gemini.WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), gemini.GenerateRequest{
		Prompt: "Evaluate",
		Files: []*gemini.File{
			{Name: "files/soc2", URI: "files/soc2", MIMEType: "application/pdf"},
			{Name: "files/iso", URI: "files/iso", MIMEType: "application/pdf"},
		},
	})
	require.NoError(t, err)
}

func TestClient_Generate_RetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32

	// Fails twice with 503, succeeds on the third attempt
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("temporarily unavailable"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(successBody("Success after retries"))
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-1.5-pro",
		gemini.WithBaseURL(server.URL),
		gemini.WithRetryConfig(fastRetry()))

	resp, err := client.Generate(context.Background(), gemini.GenerateRequest{Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "Success after retries", resp.Content)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Generate_ExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-1.5-pro",
		gemini.WithBaseURL(server.URL),
		gemini.WithRetryConfig(fastRetry()))

	_, err := client.Generate(context.Background(), gemini.GenerateRequest{Prompt: "hi"})

	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestClient_Generate_FatalErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key"))
	}))
	defer server.Close()

	client := gemini.NewClient("bad-key", "gemini-1.5-pro",
		gemini.WithBaseURL(server.URL),
		gemini.WithRetryConfig(fastRetry()))

	_, err := client.Generate(context.Background(), gemini.GenerateRequest{Prompt: "hi"})

	require.Error(t, err)
	assert.True(t, gemini.IsFatal(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Generate_EmptyPromptRejected(t *testing.T) {
	client := gemini.NewClient("test-key", "gemini-1.5-pro")

	_, err := client.Generate(context.Background(), gemini.GenerateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt is required")
}

func TestClient_Generate_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-1.5-pro",
		gemini.WithBaseURL(server.URL),
		gemini.WithRetryConfig(gemini.RetryConfig{
			MaxAttempts:       5,
			BackoffBase:       time.Minute,
			BackoffMultiplier: 2.0,
			MaxBackoff:        time.Minute,
		}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Generate(ctx, gemini.GenerateRequest{Prompt: "hi"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Generate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-1.5-pro", gemini.WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), gemini.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, gemini.IsFatal(err))
	assert.Contains(t, err.Error(), "no candidates")
}
