package ports

import (
	"context"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

// ChatService is the inbound contract for the chat pipeline.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error)
}

// CacheAdmin exposes cache maintenance to operators.
type CacheAdmin interface {
	Warm(entries []domain.CacheEntry) int
	Invalidate(pattern string) int
	Stats() domain.CacheStats
	TopQueries(n int) []domain.CacheEntry
}

// KnowledgeIngestor loads knowledge-base sources into the vector store.
type KnowledgeIngestor interface {
	IngestSource(ctx context.Context, sourceKey string) (*domain.IngestReport, error)
	SyncAll(ctx context.Context) ([]domain.IngestReport, error)
}

// SessionAdmin lets a user forget a conversation.
type SessionAdmin interface {
	DeleteSession(ctx context.Context, userID, sessionID string) (int64, error)
}
