// Package testutil provides test utilities for the gemini package.
// It includes mock implementations for testing generation interactions
// without a live API.
package testutil

import (
	"context"
	"sync"

	"github.com/attestware/sheetcomply/gemini"
)

// MockGenerator is a thread-safe mock content generator for testing.
// It captures every request passed to Generate() and returns configured
// responses.
//
// Usage:
//
//	// Deterministic per-request responses
//	mock := &MockGenerator{
//	    ResponseFunc: func(req gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
//	        return &gemini.GenerateResponse{Content: "answer for " + req.Prompt}, nil
//	    },
//	}
//
//	// Sequential responses
//	mock := &MockGenerator{
//	    Responses: []*gemini.GenerateResponse{
//	        {Content: "first"},
//	        {Content: "second"},
//	    },
//	}
//
//	// Error response
//	mock := &MockGenerator{
//	    Err: errors.New("rate limited"),
//	}
type MockGenerator struct {
	mu            sync.Mutex
	requests      []gemini.GenerateRequest
	callCount     int
	responseIndex int

	// ResponseFunc computes the response per request. Takes precedence
	// over Responses and Err when set.
	ResponseFunc func(req gemini.GenerateRequest) (*gemini.GenerateResponse, error)

	// Responses are returned in sequence.
	Responses []*gemini.GenerateResponse

	// Err is returned for every call (takes precedence over Responses).
	Err error
}

// Generate implements the generator contract used by the runner.
func (m *MockGenerator) Generate(_ context.Context, req gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	m.callCount++

	if m.ResponseFunc != nil {
		return m.ResponseFunc(req)
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if nothing configured
	return &gemini.GenerateResponse{Content: "", Model: "mock-model"}, nil
}

// CallCount returns the number of times Generate() was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns a copy of all captured requests.
func (m *MockGenerator) Requests() []gemini.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gemini.GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
