// Newsragd is a retrieval-augmented news chat backend.
//
// It ingests news articles from RSS feeds into a Qdrant vector collection
// and answers user questions over HTTP by retrieving relevant passages and
// prompting a generative model with them.
//
// Configuration is loaded from environment variables, optionally layered on
// a YAML file. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	newsragd
//
//	# Rebuild the vector index from the configured feeds
//	newsragd ingest
//
//	# Configure via environment
//	SERVER_PORT=8080 QDRANT_HOST=qdrant.internal newsragd
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/chat"
	"github.com/fyrsmithlabs/newsrag/internal/config"
	"github.com/fyrsmithlabs/newsrag/internal/conversation"
	"github.com/fyrsmithlabs/newsrag/internal/embeddings"
	"github.com/fyrsmithlabs/newsrag/internal/feeds"
	"github.com/fyrsmithlabs/newsrag/internal/generation"
	httpapi "github.com/fyrsmithlabs/newsrag/internal/http"
	"github.com/fyrsmithlabs/newsrag/internal/ingest"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "version":
		printVersion()
		return
	case "serve", "ingest":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fmt.Fprintf(os.Stderr, "\nUsage:\n")
		fmt.Fprintf(os.Stderr, "  newsragd           Start the HTTP server\n")
		fmt.Fprintf(os.Stderr, "  newsragd ingest    Rebuild the vector index from the configured feeds\n")
		fmt.Fprintf(os.Stderr, "  newsragd version   Show version information\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch command {
	case "ingest":
		err = runIngest(ctx, cfg, logger)
	default:
		err = runServe(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error(ctx, "exiting with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("newsragd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// runServe wires the chat stack and serves HTTP until the context is
// cancelled, then shuts down gracefully.
func runServe(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info(ctx, "starting newsragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("collection", cfg.Qdrant.Collection),
	)
	warnMissingCredentials(ctx, cfg, logger)

	store, err := conversation.NewRedisStore(cfg.Redis.URL, cfg.Redis.SessionTTL.Duration())
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}

	index, err := newVectorStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	generator, err := generation.NewClient(generation.Config{
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		APIKey:  cfg.Generation.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating generation client: %w", err)
	}

	chatSvc, err := chat.NewService(store, embedder, index, generator,
		logger.Named("chat"), chat.Config{TopK: cfg.Chat.TopK})
	if err != nil {
		return fmt.Errorf("creating chat service: %w", err)
	}

	server, err := httpapi.NewServer(chatSvc, store, index,
		logger.Named("http"), httpapi.Config{Port: cfg.Server.Port})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info(context.Background(), "shutdown complete")
	return nil
}

// runIngest rebuilds the vector collection from the configured feeds.
func runIngest(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info(ctx, "starting ingestion",
		zap.String("collection", cfg.Qdrant.Collection),
		zap.Int("feeds", len(cfg.Ingest.Feeds)),
	)
	warnMissingCredentials(ctx, cfg, logger)

	index, err := newVectorStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer index.Close()

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	fetcher := feeds.NewFetcher(feeds.Config{}, logger.Named("feeds"))

	pipeline, err := ingest.NewPipeline(index, embedder, fetcher,
		logger.Named("ingest"), ingest.Config{
			WindowSize: cfg.Ingest.WindowSize,
			BatchSize:  cfg.Ingest.BatchSize,
			BatchPause: cfg.Ingest.BatchPause.Duration(),
		})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	sources := make([]feeds.Source, len(cfg.Ingest.Feeds))
	for i, feed := range cfg.Ingest.Feeds {
		sources[i] = feeds.Source{URL: feed.URL, Source: feed.Source}
	}

	stats, err := pipeline.Run(ctx, sources)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	logger.Info(ctx, "ingestion finished",
		zap.Int("feeds", stats.Feeds),
		zap.Int("articles", stats.Articles),
		zap.Int("chunks", stats.Chunks),
		zap.Int("stored_chunks", stats.StoredChunks),
		zap.Int("failed_batches", stats.FailedBatches),
	)
	return nil
}

// newVectorStore builds the Qdrant store from configuration.
func newVectorStore(cfg *config.Config, logger *logging.Logger) (*vectorstore.Store, error) {
	return vectorstore.NewStore(vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		Collection: cfg.Qdrant.Collection,
		VectorSize: cfg.Qdrant.VectorSize,
		UseTLS:     cfg.Qdrant.UseTLS,
		APIKey:     cfg.Qdrant.APIKey.Value(),
	}, logger.Named("vectorstore"))
}

// warnMissingCredentials flags unset provider keys at startup. The server
// still runs: history and listing endpoints work without them, and the
// gateways fail their calls predictably.
func warnMissingCredentials(ctx context.Context, cfg *config.Config, logger *logging.Logger) {
	if !cfg.Embedding.APIKey.IsSet() {
		logger.Warn(ctx, "embedding api key is not set, embedding calls will fail")
	}
	if !cfg.Generation.APIKey.IsSet() {
		logger.Warn(ctx, "generation api key is not set, generation calls will fail")
	}
}
