// Package config provides configuration loading for newsragd.
//
// Configuration is loaded from environment variables, optionally layered on
// top of a YAML file, with hardcoded defaults for everything except the
// provider credentials.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete newsragd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Redis      RedisConfig      `koanf:"redis"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Generation GenerationConfig `koanf:"generation"`
	Chat       ChatConfig       `koanf:"chat"`
	Ingest     IngestConfig     `koanf:"ingest"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP listen port. Default: 3000.
	Port int `koanf:"port"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error. Default: info.
	Level string `koanf:"level"`

	// Format selects the encoder: "json" or "console". Default: json.
	Format string `koanf:"format"`
}

// QdrantConfig holds vector store connection configuration.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (not the 6333 REST port). Default: 6334.
	Port int `koanf:"port"`

	// Collection is the collection holding article chunks.
	// Default: "news_articles".
	Collection string `koanf:"collection"`

	// VectorSize is the embedding dimensionality. Must match the embedding
	// model's output. Default: 768 (jina-embeddings-v2-base-en).
	VectorSize uint64 `koanf:"vector_size"`

	// UseTLS enables TLS for the gRPC connection. Default: false.
	UseTLS bool `koanf:"use_tls"`

	// APIKey is the optional Qdrant API key.
	APIKey Secret `koanf:"api_key"`
}

// RedisConfig holds conversation store configuration.
type RedisConfig struct {
	// URL is the Redis connection URL. Default: "redis://localhost:6379".
	URL string `koanf:"url"`

	// SessionTTL is the sliding inactivity window after which a session's
	// history expires. Default: 24h.
	SessionTTL Duration `koanf:"session_ttl"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// BaseURL is the embedding API base URL.
	// Default: "https://api.jina.ai/v1".
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model. Default: "jina-embeddings-v2-base-en".
	Model string `koanf:"model"`

	// APIKey is the embedding provider credential. Required for calls;
	// missing keys fail at the gateway, not silently.
	APIKey Secret `koanf:"api_key"`
}

// GenerationConfig holds generative model configuration.
type GenerationConfig struct {
	// BaseURL is the Gemini API base URL.
	// Default: "https://generativelanguage.googleapis.com".
	BaseURL string `koanf:"base_url"`

	// Model is the generation model. Default: "gemini-2.5-flash".
	Model string `koanf:"model"`

	// APIKey is the generation provider credential.
	APIKey Secret `koanf:"api_key"`
}

// ChatConfig holds orchestrator configuration.
type ChatConfig struct {
	// TopK is the number of chunks retrieved per question. Default: 3.
	TopK int `koanf:"top_k"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	// WindowSize is the chunk size in words. Default: 500.
	WindowSize int `koanf:"window_size"`

	// BatchSize is the number of chunks embedded and stored per batch.
	// Default: 20.
	BatchSize int `koanf:"batch_size"`

	// BatchPause is the pacing delay between batches. Default: 500ms.
	BatchPause Duration `koanf:"batch_pause"`

	// Feeds is the set of RSS feeds to ingest. Defaults to a small
	// technology/world news set.
	Feeds []FeedConfig `koanf:"feeds"`
}

// FeedConfig identifies one RSS feed.
type FeedConfig struct {
	URL    string `koanf:"url"`
	Source string `koanf:"source"`
}

// applyDefaults fills unset fields with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "news_articles"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 768
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379"
	}
	if cfg.Redis.SessionTTL == 0 {
		cfg.Redis.SessionTTL = Duration(24 * time.Hour)
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.jina.ai/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "jina-embeddings-v2-base-en"
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-2.5-flash"
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 3
	}
	if cfg.Ingest.WindowSize == 0 {
		cfg.Ingest.WindowSize = 500
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 20
	}
	if cfg.Ingest.BatchPause == 0 {
		cfg.Ingest.BatchPause = Duration(500 * time.Millisecond)
	}
	if len(cfg.Ingest.Feeds) == 0 {
		cfg.Ingest.Feeds = DefaultFeeds()
	}
}

// DefaultFeeds returns the default ingestion feed set.
func DefaultFeeds() []FeedConfig {
	return []FeedConfig{
		{URL: "http://feeds.bbci.co.uk/news/technology/rss.xml", Source: "BBC Technology"},
		{URL: "http://feeds.bbci.co.uk/news/world/rss.xml", Source: "BBC World"},
		{URL: "https://techcrunch.com/feed/", Source: "TechCrunch"},
	}
}

// Validate checks the configuration for structural errors. Missing provider
// credentials are not a validation error here: the gateways fail their calls
// predictably instead, so the server can still serve history and listing
// endpoints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant collection is required")
	}
	if c.Qdrant.VectorSize == 0 {
		return fmt.Errorf("qdrant vector size is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis url is required")
	}
	if c.Chat.TopK <= 0 {
		return fmt.Errorf("chat top_k must be > 0, got %d", c.Chat.TopK)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest batch size must be > 0, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.WindowSize <= 0 {
		return fmt.Errorf("ingest window size must be > 0, got %d", c.Ingest.WindowSize)
	}
	return nil
}
