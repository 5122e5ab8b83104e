package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_TOP_K_PER_QUERY", "")
	t.Setenv("RAG_FUSION_RRF_K", "")
	t.Setenv("RAG_HYBRID_ALPHA", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CACHE_SIMILARITY_THRESHOLD", "")

	cfg := Load()
	if cfg.RAGTopKPerQuery != 10 {
		t.Fatalf("expected default top k per query 10, got %d", cfg.RAGTopKPerQuery)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default fusion rrf k 60, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGHybridAlpha != 0.7 {
		t.Fatalf("expected default hybrid alpha 0.7, got %v", cfg.RAGHybridAlpha)
	}
	if cfg.CacheTTL != time.Hour {
		t.Fatalf("expected default cache ttl 1h, got %s", cfg.CacheTTL)
	}
	if cfg.CacheSimilarityThreshold != 0.95 {
		t.Fatalf("expected default similarity threshold 0.95, got %v", cfg.CacheSimilarityThreshold)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RAG_FUSION_RRF_K", "75")
	t.Setenv("RAG_HYBRID_ALPHA", "0.5")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("QDRANT_LEXICAL_ENABLED", "false")

	cfg := Load()
	if cfg.RAGFusionRRFK != 75 {
		t.Fatalf("expected fusion rrf k 75, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGHybridAlpha != 0.5 {
		t.Fatalf("expected hybrid alpha 0.5, got %v", cfg.RAGHybridAlpha)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("expected cache ttl 15m, got %s", cfg.CacheTTL)
	}
	if cfg.QdrantLexicalEnabled {
		t.Fatalf("expected lexical search disabled")
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("CACHE_MAX_SIZE", "lots")
	t.Setenv("CACHE_TTL", "forever")
	t.Setenv("FALLBACK_LOW_CONFIDENCE", "low")

	cfg := Load()
	if cfg.CacheMaxSize != 1000 || cfg.CacheTTL != time.Hour || cfg.FallbackLowConfidence != 0.3 {
		t.Fatalf("expected defaults for malformed values, got %d %s %v", cfg.CacheMaxSize, cfg.CacheTTL, cfg.FallbackLowConfidence)
	}
}

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write tuning: %v", err)
	}
	return path
}

func TestLoadTuningOverridesOnlySetFields(t *testing.T) {
	path := writeTuning(t, `
cache:
  similarity_threshold: 0.9
  ttl: 30m
retrieval:
  rrf_k: 40
fallback:
  medium_confidence: 0.55
`)
	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning() error = %v", err)
	}

	cfg := Load()
	cfg.RAGHybridAlpha = 0.7
	tuning.Apply(&cfg)
	if cfg.CacheSimilarityThreshold != 0.9 || cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("expected cache overrides, got %v %s", cfg.CacheSimilarityThreshold, cfg.CacheTTL)
	}
	if cfg.RAGFusionRRFK != 40 || cfg.FallbackMediumConfidence != 0.55 {
		t.Fatalf("expected retrieval and fallback overrides, got %d %v", cfg.RAGFusionRRFK, cfg.FallbackMediumConfidence)
	}
	if cfg.RAGHybridAlpha != 0.7 {
		t.Fatalf("expected unset fields untouched, got %v", cfg.RAGHybridAlpha)
	}
}

func TestLoadTuningRejectsUnknownKeys(t *testing.T) {
	path := writeTuning(t, "cache:\n  similarity: 0.9\n")
	if _, err := LoadTuning(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestLoadTuningRejectsOutOfRangeValues(t *testing.T) {
	path := writeTuning(t, "retrieval:\n  hybrid_alpha: 1.5\n")
	_, err := LoadTuning(path)
	if err == nil || !strings.Contains(err.Error(), "retrieval.hybrid_alpha") {
		t.Fatalf("expected range error naming the key, got %v", err)
	}
}

func TestLoadTuningAcceptsEmptyFile(t *testing.T) {
	if _, err := LoadTuning(writeTuning(t, "")); err != nil {
		t.Fatalf("expected empty tuning file to be accepted, got %v", err)
	}
}
