// Package vectorstore owns the Qdrant collection holding article chunks.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/news"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the collection's configured size. This is a hard failure, never
	// silently coerced.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUpsertFailed indicates a storage-side write failure.
	ErrUpsertFailed = errors.New("upsert failed")
)

// Config holds configuration for the Qdrant store.
type Config struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string

	// Port is the Qdrant gRPC port (not the 6333 REST port). Default: 6334.
	Port int

	// Collection is the collection holding chunk points.
	Collection string

	// VectorSize is the embedding dimensionality. Must match the embedder's
	// output dimensions.
	VectorSize uint64

	// Distance is the similarity metric. Default: Cosine.
	Distance qdrant.Distance

	// UseTLS enables TLS for the gRPC connection. Default: false.
	UseTLS bool

	// APIKey is the optional Qdrant API key.
	APIKey string

	// RequestTimeout bounds individual requests. Default: 30s.
	RequestTimeout time.Duration

	// MaxRetries is the retry count for transient failures. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial retry backoff, doubling per attempt.
	// Default: 1s.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 16MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 16 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// Store is a Qdrant-backed vector index over article chunks.
type Store struct {
	client *qdrant.Client
	config Config
	logger *logging.Logger
}

// NewStore connects to Qdrant and verifies the connection.
func NewStore(cfg Config, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	store := &Store{client: client, config: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	logger.Info(ctx, "qdrant connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
	)
	return store, nil
}

// Close closes the client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist yet. Server
// startup calls this so search works before the first ingestion run.
func (s *Store) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		return nil
	}
	return s.createCollection(ctx)
}

// Reset deletes the collection if present and recreates it empty. Used by
// ingestion to guarantee a clean rebuild; absence of the collection is not
// an error.
func (s *Store) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.config.Collection); err != nil {
			return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
		}
	}

	if err := s.createCollection(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "collection reset",
		zap.String("collection", s.config.Collection),
		zap.Uint64("vector_size", s.config.VectorSize),
	)
	return nil
}

func (s *Store) createCollection(ctx context.Context) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: s.config.Distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// Upsert writes each chunk's id, vector and payload as a point, overwriting
// any existing point with the same id. Empty input is a no-op. A chunk
// whose vector length differs from the collection size fails the whole call
// with ErrDimensionMismatch before anything is written.
func (s *Store) Upsert(ctx context.Context, chunks []news.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		if uint64(len(chunk.Vector)) != s.config.VectorSize {
			return fmt.Errorf("%w: chunk %s has %d dims, collection wants %d",
				ErrDimensionMismatch, chunk.ID, len(chunk.Vector), s.config.VectorSize)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: qdrant.NewValueMap(chunkPayload(chunk)),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	err := s.retryOperation(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpsertFailed, err)
	}

	s.logger.Debug(ctx, "chunks stored",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(chunks)),
	)
	return nil
}

// Search returns up to limit nearest points ordered by decreasing
// similarity. Failures degrade to an empty result set and are logged here:
// retrieval falling back to "no context" is preferred over failing the chat
// turn outright.
func (s *Store) Search(ctx context.Context, vector []float32, limit uint64) []SearchResult {
	qctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	points, err := s.client.Query(qctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		s.logger.Error(ctx, "vector search failed, degrading to empty context",
			zap.String("collection", s.config.Collection),
			zap.Error(err),
		)
		return nil
	}

	results := make([]SearchResult, len(points))
	for i, p := range points {
		results[i] = SearchResult{
			Score:   p.GetScore(),
			Payload: payloadFromPoint(p.GetPayload()),
		}
	}
	return results
}

// ListArticles scans up to maxPoints points and returns one summary per
// distinct title, first occurrence wins. Failures degrade to an empty list.
func (s *Store) ListArticles(ctx context.Context, maxPoints uint32) []news.ArticleSummary {
	qctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	points, err := s.client.Scroll(qctx, &qdrant.ScrollPoints{
		CollectionName: s.config.Collection,
		Limit:          qdrant.PtrOf(maxPoints),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		s.logger.Error(ctx, "article listing failed, returning empty",
			zap.String("collection", s.config.Collection),
			zap.Error(err),
		)
		return nil
	}

	seen := make(map[string]bool, len(points))
	summaries := make([]news.ArticleSummary, 0, len(points))
	for _, p := range points {
		payload := payloadFromPoint(p.GetPayload())
		if payload.Title == "" || seen[payload.Title] {
			continue
		}
		seen[payload.Title] = true
		summaries = append(summaries, news.ArticleSummary{
			Title:   payload.Title,
			Source:  payload.Source,
			Snippet: snippet(payload.Text, 100),
		})
	}
	return summaries
}

// snippet returns the first n bytes of text without splitting a rune.
func snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := text[:n]
	for len(cut) > 0 && !isRuneStart(text[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// retryOperation retries an operation with exponential backoff.
func (s *Store) retryOperation(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		if lastErr = operation(); lastErr == nil {
			if attempt > 0 {
				s.logger.Info(ctx, "operation recovered after retries",
					zap.Int("attempts", attempt),
				)
			}
			return nil
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
