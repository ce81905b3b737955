package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/newsrag/internal/feeds"
	"github.com/fyrsmithlabs/newsrag/internal/news"
)

type fakeIndex struct {
	resetErr  error
	upsertErr func(batch []news.Chunk) error

	ops      []string
	upserted []news.Chunk
}

func (f *fakeIndex) Reset(context.Context) error {
	f.ops = append(f.ops, "reset")
	return f.resetErr
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []news.Chunk) error {
	f.ops = append(f.ops, "upsert")
	if f.upsertErr != nil {
		if err := f.upsertErr(chunks); err != nil {
			return err
		}
	}
	f.upserted = append(f.upserted, chunks...)
	return nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text))}
	}
	return vectors, nil
}

type fakeFetcher struct {
	articles map[string][]news.Article
	errs     map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, source feeds.Source) ([]news.Article, error) {
	if err := f.errs[source.Source]; err != nil {
		return nil, err
	}
	return f.articles[source.Source], nil
}

// article produces an article whose content splits into exactly n chunks of
// the given window size.
func article(title string, words int) news.Article {
	return news.Article{
		Title:   title,
		Link:    "https://example.com/" + title,
		Content: strings.TrimSpace(strings.Repeat("word ", words)),
		Source:  "Test",
	}
}

func testConfig() Config {
	return Config{WindowSize: 10, BatchSize: 4, BatchPause: time.Millisecond}
}

func TestRunResetsBeforeStoring(t *testing.T) {
	index := &fakeIndex{}
	fetcher := &fakeFetcher{articles: map[string][]news.Article{
		"Test": {article("a", 10)},
	}}
	pipe, err := NewPipeline(index, &fakeEmbedder{}, fetcher, nil, testConfig())
	require.NoError(t, err)

	stats, err := pipe.Run(context.Background(), []feeds.Source{{URL: "u", Source: "Test"}})
	require.NoError(t, err)

	require.NotEmpty(t, index.ops)
	assert.Equal(t, "reset", index.ops[0])
	assert.Equal(t, Stats{Feeds: 1, Articles: 1, Chunks: 1, StoredChunks: 1}, stats)
}

func TestRunAbortsOnResetFailure(t *testing.T) {
	resetErr := errors.New("qdrant unavailable")
	index := &fakeIndex{resetErr: resetErr}
	pipe, err := NewPipeline(index, &fakeEmbedder{}, &fakeFetcher{}, nil, testConfig())
	require.NoError(t, err)

	_, err = pipe.Run(context.Background(), []feeds.Source{{URL: "u", Source: "Test"}})
	require.ErrorIs(t, err, resetErr)
	assert.Equal(t, []string{"reset"}, index.ops)
}

func TestRunBatchesAndPreservesOrder(t *testing.T) {
	index := &fakeIndex{}
	// 30 words with window 10 => 3 chunks per article, 9 total, batch size
	// 4 => batches of 4, 4, 1.
	fetcher := &fakeFetcher{articles: map[string][]news.Article{
		"Test": {article("a", 30), article("b", 30), article("c", 30)},
	}}
	pipe, err := NewPipeline(index, &fakeEmbedder{}, fetcher, nil, testConfig())
	require.NoError(t, err)

	stats, err := pipe.Run(context.Background(), []feeds.Source{{URL: "u", Source: "Test"}})
	require.NoError(t, err)

	assert.Equal(t, Stats{Feeds: 1, Articles: 3, Chunks: 9, StoredChunks: 9}, stats)
	assert.Equal(t, []string{"reset", "upsert", "upsert", "upsert"}, index.ops)

	require.Len(t, index.upserted, 9)
	for i, chunk := range index.upserted {
		assert.Equal(t, i%3, chunk.Metadata.ChunkIndex, "chunk %d", i)
		require.Len(t, chunk.Vector, 1)
		assert.Equal(t, float32(len(chunk.Text)), chunk.Vector[0])
	}
}

func TestRunSkipsFailedBatch(t *testing.T) {
	calls := 0
	index := &fakeIndex{upsertErr: func([]news.Chunk) error {
		calls++
		if calls == 2 {
			return errors.New("write timeout")
		}
		return nil
	}}
	fetcher := &fakeFetcher{articles: map[string][]news.Article{
		"Test": {article("a", 30), article("b", 30), article("c", 30)},
	}}
	pipe, err := NewPipeline(index, &fakeEmbedder{}, fetcher, nil, testConfig())
	require.NoError(t, err)

	stats, err := pipe.Run(context.Background(), []feeds.Source{{URL: "u", Source: "Test"}})
	require.NoError(t, err)

	// 9 chunks in batches of 4/4/1; the second batch is lost.
	assert.Equal(t, 9, stats.Chunks)
	assert.Equal(t, 5, stats.StoredChunks)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Len(t, index.upserted, 5)
}

func TestRunSkipsFailedFeed(t *testing.T) {
	index := &fakeIndex{}
	fetcher := &fakeFetcher{
		articles: map[string][]news.Article{"Good": {article("a", 10)}},
		errs:     map[string]error{"Bad": errors.New("connection refused")},
	}
	pipe, err := NewPipeline(index, &fakeEmbedder{}, fetcher, nil, testConfig())
	require.NoError(t, err)

	stats, err := pipe.Run(context.Background(), []feeds.Source{
		{URL: "bad", Source: "Bad"},
		{URL: "good", Source: "Good"},
	})
	require.NoError(t, err)

	assert.Equal(t, Stats{Feeds: 1, Articles: 1, Chunks: 1, StoredChunks: 1}, stats)
}

func TestRunEmbeddingFailureCountsBatch(t *testing.T) {
	index := &fakeIndex{}
	fetcher := &fakeFetcher{articles: map[string][]news.Article{
		"Test": {article("a", 10)},
	}}
	pipe, err := NewPipeline(index, &fakeEmbedder{err: fmt.Errorf("jina down")}, fetcher, nil, testConfig())
	require.NoError(t, err)

	stats, err := pipe.Run(context.Background(), []feeds.Source{{URL: "u", Source: "Test"}})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FailedBatches)
	assert.Zero(t, stats.StoredChunks)
	assert.Empty(t, index.upserted)
}

func TestRunEmptySources(t *testing.T) {
	index := &fakeIndex{}
	pipe, err := NewPipeline(index, &fakeEmbedder{}, &fakeFetcher{}, nil, testConfig())
	require.NoError(t, err)

	stats, err := pipe.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Equal(t, []string{"reset"}, index.ops)
}

func TestNewPipelineRequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(nil, nil, nil, nil, Config{})
	require.Error(t, err)
}
