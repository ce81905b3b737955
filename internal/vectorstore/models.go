package vectorstore

import (
	"github.com/qdrant/go-client/qdrant"

	"github.com/fyrsmithlabs/newsrag/internal/news"
)

// Payload is what a stored point carries besides its vector: the chunk
// metadata merged with the chunk text.
type Payload struct {
	news.ChunkMetadata
	Text string
}

// SearchResult is one similarity hit, produced transiently per query.
type SearchResult struct {
	Score   float32
	Payload Payload
}

// Reference projects a result back to its source article.
func (r SearchResult) Reference() news.Reference {
	return news.Reference{
		Title:  r.Payload.Title,
		URL:    r.Payload.URL,
		Source: r.Payload.Source,
	}
}

// payload field names as stored in Qdrant.
const (
	fieldArticleID  = "articleId"
	fieldTitle      = "title"
	fieldURL        = "url"
	fieldPubDate    = "pubDate"
	fieldSource     = "source"
	fieldChunkIndex = "chunkIndex"
	fieldText       = "text"
)

// chunkPayload flattens a chunk into a Qdrant payload map.
func chunkPayload(chunk news.Chunk) map[string]any {
	return map[string]any{
		fieldArticleID:  chunk.Metadata.ArticleID,
		fieldTitle:      chunk.Metadata.Title,
		fieldURL:        chunk.Metadata.URL,
		fieldPubDate:    chunk.Metadata.PubDate,
		fieldSource:     chunk.Metadata.Source,
		fieldChunkIndex: int64(chunk.Metadata.ChunkIndex),
		fieldText:       chunk.Text,
	}
}

// payloadFromPoint rebuilds a Payload from a stored point's value map.
func payloadFromPoint(values map[string]*qdrant.Value) Payload {
	return Payload{
		ChunkMetadata: news.ChunkMetadata{
			ArticleID:  values[fieldArticleID].GetStringValue(),
			Title:      values[fieldTitle].GetStringValue(),
			URL:        values[fieldURL].GetStringValue(),
			PubDate:    values[fieldPubDate].GetStringValue(),
			Source:     values[fieldSource].GetStringValue(),
			ChunkIndex: int(values[fieldChunkIndex].GetIntegerValue()),
		},
		Text: values[fieldText].GetStringValue(),
	}
}
