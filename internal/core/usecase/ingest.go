package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/ports"
)

// KnowledgeIngestUseCase loads knowledge-base sources into the vector store
// and announces the change so cached answers are dropped.
type KnowledgeIngestUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	indexer   ports.KnowledgeIndexer
	bus       ports.CacheInvalidationBus
	logger    *slog.Logger
}

func NewKnowledgeIngestUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	indexer ports.KnowledgeIndexer,
	bus ports.CacheInvalidationBus,
	logger *slog.Logger,
) *KnowledgeIngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeIngestUseCase{
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		indexer:   indexer,
		bus:       bus,
		logger:    logger,
	}
}

func (uc *KnowledgeIngestUseCase) IngestSource(ctx context.Context, sourceKey string) (*domain.IngestReport, error) {
	report, err := uc.ingest(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	uc.announce(ctx)
	return report, nil
}

// SyncAll ingests every source and keeps going past failed ones.
func (uc *KnowledgeIngestUseCase) SyncAll(ctx context.Context) ([]domain.IngestReport, error) {
	keys, err := uc.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	reports := make([]domain.IngestReport, 0, len(keys))
	var errs []error
	for _, key := range keys {
		report, err := uc.ingest(ctx, key)
		if err != nil {
			uc.logger.Error("knowledge_ingest_failed", "source_key", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		reports = append(reports, *report)
	}
	if len(reports) > 0 {
		uc.announce(ctx)
	}
	return reports, errors.Join(errs...)
}

func (uc *KnowledgeIngestUseCase) ingest(ctx context.Context, sourceKey string) (*domain.IngestReport, error) {
	sourceKey = strings.TrimSpace(sourceKey)
	if sourceKey == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest source", errors.New("source key is required"))
	}

	text, err := uc.extractText(ctx, sourceKey)
	if err != nil {
		return nil, err
	}

	texts := uc.chunker.Split(text)
	if len(texts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk source", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts)),
		)
	}

	if err := uc.indexer.DeleteBySource(ctx, sourceKey); err != nil {
		return nil, fmt.Errorf("delete previous chunks: %w", err)
	}
	chunks := buildKnowledgeChunks(sourceKey, texts)
	if err := uc.indexer.IndexChunks(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("index chunks in vector db: %w", err)
	}

	uc.logger.Info("knowledge_ingested", "source_key", sourceKey, "chunks", len(chunks))
	return &domain.IngestReport{SourceKey: sourceKey, Chunks: len(chunks)}, nil
}

func (uc *KnowledgeIngestUseCase) extractText(ctx context.Context, sourceKey string) (string, error) {
	body, err := uc.storage.Open(ctx, sourceKey)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer body.Close()

	text, err := uc.extractor.Extract(ctx, sourceKey, body)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

// announce clears cached answers everywhere; an empty pattern means all.
func (uc *KnowledgeIngestUseCase) announce(ctx context.Context) {
	if uc.bus == nil {
		return
	}
	if err := uc.bus.PublishCacheInvalidated(ctx, ""); err != nil {
		uc.logger.Warn("cache_invalidation_publish_failed", "error", err)
	}
}

func buildKnowledgeChunks(sourceKey string, texts []string) []domain.KnowledgeChunk {
	base := sourceMetadata(sourceKey)
	chunks := make([]domain.KnowledgeChunk, 0, len(texts))
	for i, text := range texts {
		meta := make(map[string]any, len(base)+3)
		for k, v := range base {
			meta[k] = v
		}
		lower := strings.ToLower(text)
		meta[domain.MetaHasLinks] = strings.Contains(lower, "http://") || strings.Contains(lower, "https://")
		meta[domain.MetaHasArticles] = strings.Contains(lower, "article")
		meta[domain.MetaChunkIndex] = i

		chunks = append(chunks, domain.KnowledgeChunk{
			ID:        fmt.Sprintf("%s#%d", sourceKey, i),
			SourceKey: sourceKey,
			Index:     i,
			Text:      text,
			Metadata:  meta,
		})
	}
	return chunks
}

// sourceMetadata derives provenance from the key: the first directory names
// the source, the file name the topic and the extension the document type.
func sourceMetadata(sourceKey string) map[string]any {
	clean := path.Clean(strings.ReplaceAll(sourceKey, "\\", "/"))
	source := "knowledge_base"
	if dir, _, found := strings.Cut(clean, "/"); found && dir != "" && dir != "." {
		source = dir
	}

	file := path.Base(clean)
	ext := strings.ToLower(path.Ext(file))
	topic := strings.TrimSuffix(file, path.Ext(file))
	topic = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(topic))

	docType := "article"
	switch ext {
	case ".xlsx":
		docType = "qa_pair"
	case ".pdf":
		docType = "comprehensive_guide"
	case ".html", ".htm":
		docType = "kb_article"
	}

	return map[string]any{
		domain.MetaSourceKey: sourceKey,
		domain.MetaSource:    source,
		domain.MetaTopic:     strings.TrimSpace(topic),
		domain.MetaDocType:   docType,
	}
}
