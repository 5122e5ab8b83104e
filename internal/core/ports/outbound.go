package ports

import (
	"context"
	"io"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

// Embedder builds vectors for knowledge chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns at most n candidates ordered by ascending distance.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, n int) ([]domain.Candidate, error)
}

// LexicalIndex performs keyword retrieval alongside the vector path.
type LexicalIndex interface {
	SearchLexical(ctx context.Context, queryText string, n int) ([]domain.Candidate, error)
}

// KnowledgeIndexer writes knowledge chunks into the vector store.
type KnowledgeIndexer interface {
	IndexChunks(ctx context.Context, chunks []domain.KnowledgeChunk, vectors [][]float32) error
	DeleteBySource(ctx context.Context, sourceKey string) error
}

// TextGenerator is a synchronous LLM completion.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnswerGenerator produces the user-facing answer grounded on ranked contexts.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, contexts []domain.Candidate) (string, error)
}

// ConversationHistory persists chat turns per user session.
type ConversationHistory interface {
	RecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]domain.Message, error)
	AppendTurn(ctx context.Context, message domain.Message) error
}

// ResponseCache short-circuits the pipeline for repeated or paraphrased queries.
type ResponseCache interface {
	Get(ctx context.Context, query string, embedding []float32, conversationContext string) (*domain.CacheEntry, domain.CacheTier, error)
	Set(ctx context.Context, entry domain.CacheEntry) error
	Invalidate(pattern string) int
	Stats() domain.CacheStats
	TopQueries(n int) []domain.CacheEntry
}

// ObjectStorage lists and opens knowledge-base sources.
type ObjectStorage interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor turns a raw source into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, key string, body io.Reader) (string, error)
}

// Chunker splits text into retrieval-sized chunks.
type Chunker interface {
	Split(text string) []string
}

// IngestQueue carries knowledge re-ingestion requests to the worker.
type IngestQueue interface {
	PublishIngestRequested(ctx context.Context, sourceKey string) error
	SubscribeIngestRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// CacheInvalidationBus fans cache invalidations out to every API replica.
type CacheInvalidationBus interface {
	PublishCacheInvalidated(ctx context.Context, pattern string) error
	SubscribeCacheInvalidated(ctx context.Context, handler func(context.Context, string) error) error
}

// ChatObserver receives pipeline telemetry.
type ChatObserver interface {
	ObserveCacheLookup(tier domain.CacheTier)
	ObserveStage(stage string, seconds float64)
	ObserveRetrieval(candidates int)
	ObserveFallback(reason domain.FallbackReason)
	ObserveChat(result *domain.ChatResult)
}
