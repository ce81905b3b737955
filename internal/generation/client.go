// Package generation wraps the Gemini generateContent API for grounded
// answer generation.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/newsrag/internal/config"
)

var (
	// ErrNotConfigured indicates a missing generation credential.
	ErrNotConfigured = errors.New("generation api key not configured")

	// ErrRateLimited indicates provider quota exhaustion (HTTP 429 or an
	// equivalent status marker). Callers handle this as a graceful degraded
	// response rather than a hard failure.
	ErrRateLimited = errors.New("generation quota exhausted")

	// ErrGenerationFailed indicates any other provider-side failure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 2
	defaultBaseBackoff = time.Second
	defaultRateLimit   = 2 // requests per second
	defaultBurst       = 1
)

// Config holds configuration for the generation client.
type Config struct {
	// BaseURL is the Gemini API base URL
	// (e.g. https://generativelanguage.googleapis.com).
	BaseURL string

	// Model is the generation model name.
	Model string

	// APIKey is the provider credential. Calls fail with ErrNotConfigured
	// when unset.
	APIKey config.Secret

	// Timeout bounds a single generation request. Default: 60s.
	Timeout time.Duration

	// MaxRetries is the retry count for transient (5xx, network) failures.
	// Rate-limit responses are never retried; they surface as ErrRateLimited.
	// Default: 2.
	MaxRetries int
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

// Client calls the Gemini generateContent endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a new generation client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	} else if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: maxRetries,
	}, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// retryableError marks transient failures worth retrying.
type retryableError struct {
	err error
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// Generate produces an answer for the given prompt.
//
// Quota exhaustion is classified as ErrRateLimited and returned immediately.
// Transient failures are retried with exponential backoff; anything that
// survives the retries wraps ErrGenerationFailed.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.config.APIKey.IsSet() {
		return "", ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		answer, err := c.doRequest(ctx, req)
		if err == nil {
			return answer, nil
		}

		lastErr = err
		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: max retries exceeded: %v", ErrGenerationFailed, lastErr)
}

func (c *Client) doRequest(ctx context.Context, req generateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.config.BaseURL, c.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.config.APIKey.Value())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || isQuotaExhausted(respBody) {
		return "", fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}

	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d)", resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("%w: api error (%d): %s", ErrGenerationFailed, resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: api error (%d)", ErrGenerationFailed, resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: parsing response: %v", ErrGenerationFailed, err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// isQuotaExhausted detects quota markers in non-429 error bodies. Gemini
// reports exhaustion as status RESOURCE_EXHAUSTED.
func isQuotaExhausted(body []byte) bool {
	var errResp apiError
	if err := json.Unmarshal(body, &errResp); err != nil {
		return false
	}
	return errResp.Error.Status == "RESOURCE_EXHAUSTED" ||
		strings.Contains(strings.ToLower(errResp.Error.Message), "quota")
}
