package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

type storageFake struct {
	files map[string]string
}

func (f *storageFake) List(context.Context) ([]string, error) {
	keys := make([]string, 0, len(f.files))
	for k := range f.files {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type passthroughExtractor struct{}

func (passthroughExtractor) Extract(_ context.Context, _ string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	return string(raw), err
}

type lineChunker struct{}

func (lineChunker) Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

type indexerFake struct {
	deleted []string
	chunks  []domain.KnowledgeChunk
	err     error
}

func (f *indexerFake) IndexChunks(_ context.Context, chunks []domain.KnowledgeChunk, _ [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *indexerFake) DeleteBySource(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type busFake struct {
	published []string
}

func (f *busFake) PublishCacheInvalidated(_ context.Context, pattern string) error {
	f.published = append(f.published, pattern)
	return nil
}

func (f *busFake) SubscribeCacheInvalidated(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestIngestSourceIndexesChunksWithMetadata(t *testing.T) {
	storage := &storageFake{files: map[string]string{
		"zobot/password_reset.xlsx": "Open https://portal.example.com\nChoose Forgot Password",
	}}
	indexer := &indexerFake{}
	bus := &busFake{}
	uc := NewKnowledgeIngestUseCase(storage, passthroughExtractor{}, lineChunker{}, lengthEmbedderFake{}, indexer, bus, nil)

	report, err := uc.IngestSource(context.Background(), "zobot/password_reset.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Chunks != 2 || len(indexer.chunks) != 2 {
		t.Fatalf("expected 2 chunks, got report=%d indexed=%d", report.Chunks, len(indexer.chunks))
	}
	if len(indexer.deleted) != 1 || indexer.deleted[0] != "zobot/password_reset.xlsx" {
		t.Fatalf("expected previous chunks deleted, got %v", indexer.deleted)
	}

	first := indexer.chunks[0]
	if first.ID != "zobot/password_reset.xlsx#0" {
		t.Fatalf("unexpected chunk id %q", first.ID)
	}
	if first.Metadata[domain.MetaSource] != "zobot" || first.Metadata[domain.MetaTopic] != "password reset" || first.Metadata[domain.MetaDocType] != "qa_pair" {
		t.Fatalf("unexpected metadata %+v", first.Metadata)
	}
	if first.Metadata[domain.MetaHasLinks] != true || indexer.chunks[1].Metadata[domain.MetaHasLinks] != false {
		t.Fatalf("expected link flag per chunk")
	}
	if len(bus.published) != 1 || bus.published[0] != "" {
		t.Fatalf("expected clear-all invalidation, got %v", bus.published)
	}
}

func TestIngestSourceRejectsEmptyText(t *testing.T) {
	storage := &storageFake{files: map[string]string{"empty.txt": "   "}}
	uc := NewKnowledgeIngestUseCase(storage, passthroughExtractor{}, lineChunker{}, lengthEmbedderFake{}, &indexerFake{}, nil, nil)

	_, err := uc.IngestSource(context.Background(), "empty.txt")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	storage := &storageFake{files: map[string]string{
		"good.txt":  "line one\nline two",
		"empty.txt": "",
	}}
	indexer := &indexerFake{}
	bus := &busFake{}
	uc := NewKnowledgeIngestUseCase(storage, passthroughExtractor{}, lineChunker{}, lengthEmbedderFake{}, indexer, bus, nil)

	reports, err := uc.SyncAll(context.Background())
	if err == nil {
		t.Fatalf("expected joined error for empty source")
	}
	if len(reports) != 1 || reports[0].SourceKey != "good.txt" {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected a single invalidation after sync, got %d", len(bus.published))
	}
}

func TestIngestSourcePropagatesIndexError(t *testing.T) {
	storage := &storageFake{files: map[string]string{"kb.txt": "content"}}
	uc := NewKnowledgeIngestUseCase(storage, passthroughExtractor{}, lineChunker{}, lengthEmbedderFake{}, &indexerFake{err: errors.New("qdrant down")}, nil, nil)

	if _, err := uc.IngestSource(context.Background(), "kb.txt"); err == nil {
		t.Fatalf("expected index error")
	}
}

func TestSourceMetadataDefaults(t *testing.T) {
	meta := sourceMetadata("Remote-Desktop.md")
	if meta[domain.MetaSource] != "knowledge_base" || meta[domain.MetaTopic] != "remote desktop" || meta[domain.MetaDocType] != "article" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}
