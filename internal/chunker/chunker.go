// Package chunker splits articles into fixed-size word windows for embedding.
package chunker

import (
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/newsrag/internal/news"
	"github.com/fyrsmithlabs/newsrag/internal/normalize"
)

// DefaultWindowSize is the number of words per chunk when none is configured.
const DefaultWindowSize = 500

// Split normalizes the article content and groups it into windows of
// windowSize whitespace-delimited words. The final window keeps the
// remainder even if it is a single word. An article that normalizes to
// zero words produces no chunks.
//
// Chunk indexes form the contiguous sequence 0..n-1, and joining the chunk
// texts with single spaces in index order reconstructs the normalized
// content exactly. Split has no side effects.
func Split(article news.Article, windowSize int) []news.Chunk {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	content := normalize.Clean(article.Content)
	if content == "" {
		return nil
	}
	words := strings.Fields(content)

	articleID := uuid.NewString()
	chunks := make([]news.Chunk, 0, (len(words)+windowSize-1)/windowSize)

	for start := 0; start < len(words); start += windowSize {
		end := start + windowSize
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, news.Chunk{
			ID:   uuid.NewString(),
			Text: strings.Join(words[start:end], " "),
			Metadata: news.ChunkMetadata{
				ArticleID:  articleID,
				Title:      article.Title,
				URL:        article.Link,
				PubDate:    article.PubDate,
				Source:     article.Source,
				ChunkIndex: start / windowSize,
			},
		})
	}

	return chunks
}
