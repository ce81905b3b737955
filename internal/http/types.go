// Package http provides the HTTP API for newsrag.
package http

import (
	"github.com/fyrsmithlabs/newsrag/internal/conversation"
	"github.com/fyrsmithlabs/newsrag/internal/news"
)

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatResponse is the response body for POST /api/chat.
type ChatResponse struct {
	Reply      string           `json:"reply"`
	References []news.Reference `json:"references"`
}

// HistoryResponse is the response body for GET /api/chat/:sessionId/history.
type HistoryResponse struct {
	History []conversation.Message `json:"history"`
}

// ArticlesResponse is the response body for GET /api/articles.
type ArticlesResponse struct {
	Count    int                   `json:"count"`
	Articles []news.ArticleSummary `json:"articles"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
