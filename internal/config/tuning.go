package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds optional numeric overrides. Nil fields keep the env value.
type Tuning struct {
	Cache struct {
		SimilarityThreshold *float64       `yaml:"similarity_threshold"`
		TTL                 *time.Duration `yaml:"ttl"`
		MaxSize             *int           `yaml:"max_size"`
	} `yaml:"cache"`
	Retrieval struct {
		TopKPerQuery       *int     `yaml:"top_k_per_query"`
		HydeTopK           *int     `yaml:"hyde_top_k"`
		RerankTopK         *int     `yaml:"rerank_top_k"`
		RRFK               *int     `yaml:"rrf_k"`
		HybridAlpha        *float64 `yaml:"hybrid_alpha"`
		DiversityThreshold *float64 `yaml:"diversity_threshold"`
	} `yaml:"retrieval"`
	Rerank struct {
		BaseWeight    *float64 `yaml:"base_weight"`
		LexicalWeight *float64 `yaml:"lexical_weight"`
		PhraseWeight  *float64 `yaml:"phrase_weight"`
		LengthWeight  *float64 `yaml:"length_weight"`
	} `yaml:"rerank"`
	Fallback struct {
		VeryLowConfidence *float64 `yaml:"very_low_confidence"`
		LowConfidence     *float64 `yaml:"low_confidence"`
		MediumConfidence  *float64 `yaml:"medium_confidence"`
		MinContextQuality *float64 `yaml:"min_context_quality"`
	} `yaml:"fallback"`
}

// LoadTuning parses a tuning file, rejecting unknown keys.
func LoadTuning(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return t, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

// Apply copies every set override into cfg.
func (t Tuning) Apply(cfg *Config) {
	setFloat(&cfg.CacheSimilarityThreshold, t.Cache.SimilarityThreshold)
	setDuration(&cfg.CacheTTL, t.Cache.TTL)
	setInt(&cfg.CacheMaxSize, t.Cache.MaxSize)

	setInt(&cfg.RAGTopKPerQuery, t.Retrieval.TopKPerQuery)
	setInt(&cfg.RAGHydeTopK, t.Retrieval.HydeTopK)
	setInt(&cfg.RAGRerankTopK, t.Retrieval.RerankTopK)
	setInt(&cfg.RAGFusionRRFK, t.Retrieval.RRFK)
	setFloat(&cfg.RAGHybridAlpha, t.Retrieval.HybridAlpha)
	setFloat(&cfg.RAGDiversityThreshold, t.Retrieval.DiversityThreshold)

	setFloat(&cfg.RerankBaseWeight, t.Rerank.BaseWeight)
	setFloat(&cfg.RerankLexicalWeight, t.Rerank.LexicalWeight)
	setFloat(&cfg.RerankPhraseWeight, t.Rerank.PhraseWeight)
	setFloat(&cfg.RerankLengthWeight, t.Rerank.LengthWeight)

	setFloat(&cfg.FallbackVeryLowConfidence, t.Fallback.VeryLowConfidence)
	setFloat(&cfg.FallbackLowConfidence, t.Fallback.LowConfidence)
	setFloat(&cfg.FallbackMediumConfidence, t.Fallback.MediumConfidence)
	setFloat(&cfg.FallbackMinContextQuality, t.Fallback.MinContextQuality)
}

func (t Tuning) validate() error {
	unit := map[string]*float64{
		"cache.similarity_threshold":    t.Cache.SimilarityThreshold,
		"retrieval.hybrid_alpha":        t.Retrieval.HybridAlpha,
		"retrieval.diversity_threshold": t.Retrieval.DiversityThreshold,
		"fallback.very_low_confidence":  t.Fallback.VeryLowConfidence,
		"fallback.low_confidence":       t.Fallback.LowConfidence,
		"fallback.medium_confidence":    t.Fallback.MediumConfidence,
		"fallback.min_context_quality":  t.Fallback.MinContextQuality,
	}
	for key, v := range unit {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be within [0,1], got %v", key, *v)
		}
	}
	positive := map[string]*int{
		"cache.max_size":            t.Cache.MaxSize,
		"retrieval.top_k_per_query": t.Retrieval.TopKPerQuery,
		"retrieval.hyde_top_k":      t.Retrieval.HydeTopK,
		"retrieval.rerank_top_k":    t.Retrieval.RerankTopK,
		"retrieval.rrf_k":           t.Retrieval.RRFK,
	}
	for key, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, *v)
		}
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
