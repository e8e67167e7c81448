package runner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attestware/sheetcomply/gemini"
	"github.com/attestware/sheetcomply/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercises the runner against a real gemini.Client so the retry behavior
// of the whole Generate -> Write path is covered, not just the mock.
func TestRunner_TransientGenerationFailureEventuallySucceeds(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("overloaded"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]string{
							{"text": "Compliant - backups tested (Reference: soc2.pdf, Page 8)"},
						},
					},
					"finishReason": "STOP",
				},
			},
		})
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-1.5-pro",
		gemini.WithBaseURL(server.URL),
		gemini.WithRetryConfig(gemini.RetryConfig{
			MaxAttempts:       5,
			BackoffBase:       time.Millisecond,
			BackoffMultiplier: 1.0,
			MaxBackoff:        5 * time.Millisecond,
		}))

	sheet := newFakeSheet([]string{"Backups tested?"}, []string{""})

	r := runner.New(client, sheet, baseConfig(1))
	summary, err := r.Run(context.Background(), oneDocSet())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int32(3), attempts.Load(), "two transient failures then success")
	assert.Equal(t, "Compliant - backups tested (Reference: soc2.pdf, Page 8)", sheet.written()[2])
}
