// Package chat orchestrates a retrieval-augmented chat turn: persist the
// user message, embed it, retrieve context, generate a grounded answer and
// persist it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/conversation"
	"github.com/fyrsmithlabs/newsrag/internal/generation"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/news"
	"github.com/fyrsmithlabs/newsrag/internal/vectorstore"
)

// ErrInvalidInput indicates a missing session id or message.
var ErrInvalidInput = errors.New("sessionId and message are required")

// FallbackAnswer is the phrase the model is instructed to use when the
// retrieved context does not contain the answer.
const FallbackAnswer = "I couldn't find relevant news about that in my database."

// RateLimitReply is returned when the generation provider reports quota
// exhaustion. It is ephemeral: it is never persisted to the session history.
const RateLimitReply = "I'm handling a lot of questions right now and hit my usage limit. Please try again in a minute."

const contextSeparator = "\n\n"

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchIndex retrieves the most similar stored chunks. Implementations
// degrade to an empty result set on failure.
type SearchIndex interface {
	Search(ctx context.Context, vector []float32, limit uint64) []vectorstore.SearchResult
}

// Generator produces an answer for a grounded prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Reply      string
	References []news.Reference
}

// Config holds orchestrator configuration.
type Config struct {
	// TopK is the number of chunks retrieved per question. Default: 3.
	TopK int
}

// Service runs chat turns.
//
// Turns for different sessions are fully independent. Concurrent turns on
// the same session have no ordering guarantee: message interleaving in the
// history is possible and accepted; callers wanting strict ordering must
// serialize their own requests.
type Service struct {
	store     conversation.Store
	embedder  Embedder
	index     SearchIndex
	generator Generator
	logger    *logging.Logger
	topK      uint64
}

// NewService wires the orchestrator's collaborators.
func NewService(store conversation.Store, embedder Embedder, index SearchIndex, generator Generator, logger *logging.Logger, cfg Config) (*Service, error) {
	if store == nil || embedder == nil || index == nil || generator == nil {
		return nil, fmt.Errorf("store, embedder, index and generator are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		index:     index,
		generator: generator,
		logger:    logger,
		topK:      uint64(topK),
	}, nil
}

// HandleTurn runs one chat turn for the session.
//
// The user message is persisted before anything else, so it survives any
// downstream failure. Quota exhaustion from the generator short-circuits
// into an advisory reply with no references; the advisory is not persisted.
// Any other embedding or generation failure propagates to the caller.
func (s *Service) HandleTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidInput
	}

	if err := s.store.Append(ctx, sessionID, conversation.NewMessage(conversation.RoleUser, message)); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, []string{message})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results := s.index.Search(ctx, vectors[0], s.topK)

	contextTexts := make([]string, len(results))
	references := make([]news.Reference, len(results))
	for i, r := range results {
		contextTexts[i] = r.Payload.Text
		references[i] = r.Reference()
	}

	prompt := buildPrompt(strings.Join(contextTexts, contextSeparator), message)

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, generation.ErrRateLimited) {
			s.logger.Warn(ctx, "generation rate limited, returning advisory reply",
				zap.String("session_id", sessionID),
			)
			return &TurnResult{Reply: RateLimitReply, References: []news.Reference{}}, nil
		}
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	if err := s.store.Append(ctx, sessionID, conversation.NewMessage(conversation.RoleBot, answer)); err != nil {
		return nil, fmt.Errorf("persisting bot message: %w", err)
	}

	s.logger.Debug(ctx, "chat turn complete",
		zap.String("session_id", sessionID),
		zap.Int("retrieved", len(results)),
	)
	return &TurnResult{Reply: answer, References: references}, nil
}

// buildPrompt composes the grounded prompt: fixed instruction header, the
// retrieved context block, then the raw user message.
func buildPrompt(contextBlock, message string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful news assistant.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString(`1. If the user asks a general question (e.g. "Hi", "Who are you?", "How can you help?"), answer politely describing yourself as a news assistant.` + "\n")
	sb.WriteString("2. For specific questions, answer based ONLY on the provided context below.\n")
	sb.WriteString(fmt.Sprintf("3. If the answer is not in the context, say %q.\n", FallbackAnswer))
	sb.WriteString("4. Keep answers short and factual.\n\n")
	sb.WriteString("Context:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nUser Query: ")
	sb.WriteString(message)
	return sb.String()
}
