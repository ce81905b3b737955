// Package ingest rebuilds the vector index from the configured feeds.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/chunker"
	"github.com/fyrsmithlabs/newsrag/internal/feeds"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/news"
)

// Index is the write-side capability the pipeline needs from the vector
// store.
type Index interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, chunks []news.Chunk) error
}

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Fetcher supplies raw articles for a feed source.
type Fetcher interface {
	Fetch(ctx context.Context, source feeds.Source) ([]news.Article, error)
}

// Config holds pipeline configuration.
type Config struct {
	// WindowSize is the chunk size in words. Default: 500.
	WindowSize int

	// BatchSize is the number of chunks embedded and stored per batch.
	// Default: 20.
	BatchSize int

	// BatchPause is the pacing delay between batches, respecting upstream
	// rate limits. Default: 500ms.
	BatchPause time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.WindowSize == 0 {
		c.WindowSize = chunker.DefaultWindowSize
	}
	if c.BatchSize == 0 {
		c.BatchSize = 20
	}
	if c.BatchPause == 0 {
		c.BatchPause = 500 * time.Millisecond
	}
}

// Stats summarizes an ingestion run.
type Stats struct {
	Feeds         int
	Articles      int
	Chunks        int
	StoredChunks  int
	FailedBatches int
}

// Pipeline drives reset, fetch, chunk, embed and store.
//
// A run always wipes the collection first, so re-running from scratch yields
// a consistent rebuild. Running two ingestions concurrently against the same
// collection races on the reset; avoiding that is the caller's
// responsibility.
type Pipeline struct {
	index    Index
	embedder Embedder
	fetcher  Fetcher
	logger   *logging.Logger
	config   Config
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(index Index, embedder Embedder, fetcher Fetcher, logger *logging.Logger, cfg Config) (*Pipeline, error) {
	if index == nil || embedder == nil || fetcher == nil {
		return nil, fmt.Errorf("index, embedder and fetcher are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.ApplyDefaults()
	return &Pipeline{
		index:    index,
		embedder: embedder,
		fetcher:  fetcher,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Run executes a full rebuild: reset the collection, fetch and chunk every
// feed, then embed and store the chunks in paced batches. A failing feed or
// batch is logged and skipped; the run continues with the rest. Only a
// failed reset or a cancelled context aborts the run.
func (p *Pipeline) Run(ctx context.Context, sources []feeds.Source) (Stats, error) {
	var stats Stats

	if err := p.index.Reset(ctx); err != nil {
		return stats, fmt.Errorf("resetting index: %w", err)
	}

	var allChunks []news.Chunk
	for _, source := range sources {
		articles, err := p.fetcher.Fetch(ctx, source)
		if err != nil {
			p.logger.Error(ctx, "feed fetch failed, skipping",
				zap.String("source", source.Source),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			continue
		}

		stats.Feeds++
		stats.Articles += len(articles)
		for _, article := range articles {
			allChunks = append(allChunks, chunker.Split(article, p.config.WindowSize)...)
		}
	}
	stats.Chunks = len(allChunks)

	p.logger.Info(ctx, "chunking complete",
		zap.Int("feeds", stats.Feeds),
		zap.Int("articles", stats.Articles),
		zap.Int("chunks", stats.Chunks),
	)

	for start := 0; start < len(allChunks); start += p.config.BatchSize {
		if start > 0 {
			// Pacing between batches.
			select {
			case <-time.After(p.config.BatchPause):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}

		end := start + p.config.BatchSize
		if end > len(allChunks) {
			end = len(allChunks)
		}
		batch := allChunks[start:end]

		if err := p.processBatch(ctx, batch); err != nil {
			stats.FailedBatches++
			p.logger.Error(ctx, "batch failed, skipping",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			continue
		}
		stats.StoredChunks += len(batch)
	}

	p.logger.Info(ctx, "ingestion complete",
		zap.Int("stored_chunks", stats.StoredChunks),
		zap.Int("failed_batches", stats.FailedBatches),
	)
	return stats, nil
}

// processBatch embeds the batch texts, assigns the vectors back onto the
// chunks in order, and stores them.
func (p *Pipeline) processBatch(ctx context.Context, batch []news.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	for i := range batch {
		batch[i].Vector = vectors[i]
	}

	if err := p.index.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("storing batch: %w", err)
	}
	return nil
}
