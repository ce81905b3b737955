package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "news_articles", cfg.Qdrant.Collection)
	assert.Equal(t, uint64(768), cfg.Qdrant.VectorSize)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.SessionTTL.Duration())
	assert.Equal(t, "jina-embeddings-v2-base-en", cfg.Embedding.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.Generation.Model)
	assert.Equal(t, 3, cfg.Chat.TopK)
	assert.Equal(t, 500, cfg.Ingest.WindowSize)
	assert.Equal(t, 20, cfg.Ingest.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.BatchPause.Duration())
	assert.Len(t, cfg.Ingest.Feeds, 3)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8088")
	t.Setenv("QDRANT_VECTOR_SIZE", "1024")
	t.Setenv("QDRANT_COLLECTION", "test_articles")
	t.Setenv("EMBEDDING_API_KEY", "jina-secret")
	t.Setenv("REDIS_SESSION_TTL", "1h")
	t.Setenv("CHAT_TOP_K", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, uint64(1024), cfg.Qdrant.VectorSize)
	assert.Equal(t, "test_articles", cfg.Qdrant.Collection)
	assert.Equal(t, "jina-secret", cfg.Embedding.APIKey.Value())
	assert.Equal(t, time.Hour, cfg.Redis.SessionTTL.Duration())
	assert.Equal(t, 5, cfg.Chat.TopK)
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9000
chat:
  top_k: 4
ingest:
  feeds:
    - url: https://example.com/rss.xml
      source: Example News
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env wins over file; file wins over defaults.
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Chat.TopK)
	require.Len(t, cfg.Ingest.Feeds, 1)
	assert.Equal(t, "Example News", cfg.Ingest.Feeds[0].Source)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad logging format", key: "LOGGING_FORMAT", value: "xml"},
		{name: "negative top_k", key: "CHAT_TOP_K", value: "-1"},
		{name: "zero batch size", key: "INGEST_BATCH_SIZE", value: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestEnvTransformIgnoresUnknownSections(t *testing.T) {
	assert.Equal(t, "", envTransform("PATH"))
	assert.Equal(t, "", envTransform("HOME_DIR"))
	assert.Equal(t, "server.port", envTransform("SERVER_PORT"))
	assert.Equal(t, "ingest.batch_pause", envTransform("INGEST_BATCH_PAUSE"))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(out))

	empty := Secret("")
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("-1s")))
	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
