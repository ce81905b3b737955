// Package embeddings provides embedding generation via the Jina API.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/newsrag/internal/config"
)

var (
	// ErrNotConfigured indicates a missing embedding credential.
	ErrNotConfigured = errors.New("embedding api key not configured")

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingFailed indicates a provider-side embedding failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 5 // requests per second
	defaultBurst     = 2
)

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the embedding API base URL (e.g. https://api.jina.ai/v1).
	BaseURL string

	// Model is the embedding model name.
	Model string

	// APIKey is the provider credential. Calls fail with ErrNotConfigured
	// when unset.
	APIKey config.Secret

	// Timeout bounds a single embedding request. Default: 30s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service generates embeddings over HTTP.
type Service struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewService creates a new embedding service with the given configuration.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Service{
		config:  cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

// Dimension returns the embedding dimension for the configured model.
func (s *Service) Dimension() int {
	return modelDimension(s.config.Model)
}

// modelDimension maps a model name to its output dimensionality.
func modelDimension(model string) int {
	switch model {
	case "jina-embeddings-v2-base-en", "jina-embeddings-v2-base-de":
		return 768
	case "jina-embeddings-v2-small-en":
		return 512
	case "jina-embeddings-v3":
		return 1024
	default:
		return 768
	}
}

// embedRequest is the request body for the embeddings endpoint.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the response body for the embeddings endpoint.
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDocuments generates one vector per input text, order-preserving.
//
// Provider failures propagate to the caller: a failed embedding call
// invalidates whatever operation depended on it, so it is never swallowed
// here.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	if !s.config.APIKey.IsSet() {
		return nil, ErrNotConfigured
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(embedRequest{Model: s.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey.Value())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrEmbeddingFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, truncate(respBody, 256))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrEmbeddingFailed, err)
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(parsed.Data), len(texts))
	}

	// The API reports an index per item; honor it rather than assuming
	// response order.
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", ErrEmbeddingFailed, i)
		}
	}

	return vectors, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
