package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/newsrag/internal/config"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    baseURL,
		Model:      "gemini-2.5-flash",
		APIKey:     config.Secret("test-key"),
		MaxRetries: -1, // no retries in tests unless stated
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Model: "gemini-2.5-flash"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(Config{BaseURL: "http://localhost"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGenerateMissingKey(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost", Model: "gemini-2.5-flash"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")

		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"The answer "},{"text":"is 42."}]}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	answer, err := client.Generate(context.Background(), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", answer)
}

func TestGenerateRateLimited(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "http 429",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"code":429,"message":"slow down","status":"RESOURCE_EXHAUSTED"}}`,
		},
		{
			name:   "resource exhausted marker",
			status: http.StatusForbidden,
			body:   `{"error":{"code":403,"message":"daily limit","status":"RESOURCE_EXHAUSTED"}}`,
		},
		{
			name:   "quota message marker",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"Quota exceeded for model","status":"FAILED_PRECONDITION"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Generate(context.Background(), "hello")
			assert.ErrorIs(t, err, ErrRateLimited)
		})
	}
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"invalid argument","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Model:      "gemini-2.5-flash",
		APIKey:     config.Secret("test-key"),
		MaxRetries: 2,
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"recovered"}]}}]}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Model:      "gemini-2.5-flash",
		APIKey:     config.Secret("test-key"),
		MaxRetries: 2,
	})
	require.NoError(t, err)

	answer, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGenerateEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrGenerationFailed)
}
