// Package news defines the domain types shared across the ingestion and
// retrieval pipeline.
package news

// Article is a single fetched news article. Articles are produced by the
// feed fetcher and consumed by the chunker; they are immutable once built.
type Article struct {
	// Title is the article headline.
	Title string

	// Link is the canonical article URL and serves as the unique
	// source identifier.
	Link string

	// Content is the raw article text, possibly containing markup.
	Content string

	// PubDate is the publication date as reported by the feed. Optional.
	PubDate string

	// Source is the human-readable feed name (e.g. "BBC World"). Optional.
	Source string
}

// ChunkMetadata carries the provenance of a chunk back to its article.
type ChunkMetadata struct {
	ArticleID  string `json:"articleId"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	PubDate    string `json:"pubDate,omitempty"`
	Source     string `json:"source,omitempty"`
	ChunkIndex int    `json:"chunkIndex"`
}

// Chunk is a bounded-size slice of an article's normalized text. It is the
// unit of embedding and retrieval. The vector is nil until the chunk has been
// embedded; once stored it is never updated in place.
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
	Vector   []float32
}

// Reference points a chat answer back at the article a retrieved chunk
// came from. Returned to callers in rank order, best match first.
type Reference struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// ArticleSummary is the reduced projection returned by the article listing
// endpoint, deduplicated by title.
type ArticleSummary struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}
