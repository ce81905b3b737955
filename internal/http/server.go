// Package http provides the HTTP API for newsrag.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/chat"
	"github.com/fyrsmithlabs/newsrag/internal/conversation"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/news"
)

// articleScanLimit caps how many stored chunks the articles endpoint scans.
const articleScanLimit = 100

// ChatService runs one retrieval-augmented chat turn.
type ChatService interface {
	HandleTurn(ctx context.Context, sessionID, message string) (*chat.TurnResult, error)
}

// HistoryStore reads and clears per-session conversation history.
type HistoryStore interface {
	History(ctx context.Context, sessionID string) ([]conversation.Message, error)
	Clear(ctx context.Context, sessionID string) error
}

// ArticleLister lists distinct stored articles. Implementations degrade to
// an empty slice on index failure.
type ArticleLister interface {
	ListArticles(ctx context.Context, maxPoints uint32) []news.ArticleSummary
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the HTTP endpoints for newsrag.
type Server struct {
	echo     *echo.Echo
	chats    ChatService
	history  HistoryStore
	articles ArticleLister
	logger   *logging.Logger
	config   Config
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(chats ChatService, history HistoryStore, articles ArticleLister, logger *logging.Logger, cfg Config) (*Server, error) {
	if chats == nil || history == nil || articles == nil {
		return nil, fmt.Errorf("chat service, history store and article lister are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		chats:    chats,
		history:  history,
		articles: articles,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/chat/:sessionId/history", s.handleHistory)
	api.DELETE("/chat/:sessionId", s.handleClearSession)
	api.GET("/articles", s.handleArticles)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs a chat turn. Validation failures map to 400, anything else
// to a generic 500; upstream details never reach the caller.
func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.chats.HandleTurn(ctx, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, chat.ErrInvalidInput.Error())
		}
		s.logger.Error(ctx, "chat turn failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Reply:      result.Reply,
		References: result.References,
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("sessionId")

	messages, err := s.history.History(ctx, sessionID)
	if err != nil {
		s.logger.Error(ctx, "history lookup failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if messages == nil {
		messages = []conversation.Message{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{History: messages})
}

func (s *Server) handleClearSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("sessionId")

	if err := s.history.Clear(ctx, sessionID); err != nil {
		s.logger.Error(ctx, "session clear failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.NoContent(http.StatusNoContent)
}

// handleArticles lists distinct stored articles. The lister degrades to an
// empty slice on index failure, so this endpoint never 500s.
func (s *Server) handleArticles(c echo.Context) error {
	summaries := s.articles.ListArticles(c.Request().Context(), articleScanLimit)
	if summaries == nil {
		summaries = []news.ArticleSummary{}
	}
	return c.JSON(http.StatusOK, ArticlesResponse{
		Count:    len(summaries),
		Articles: summaries,
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
