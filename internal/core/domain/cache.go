package domain

import "time"

type CacheMetadata struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type CacheEntry struct {
	Key                 string        `json:"key"`
	Query               string        `json:"query"`
	Response            string        `json:"response"`
	ContextDocs         []Candidate   `json:"context_docs,omitempty"`
	Metadata            CacheMetadata `json:"metadata"`
	ConversationContext string        `json:"conversation_context,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	HitCount            int           `json:"hit_count"`
	Embedding           []float32     `json:"-"`
}

type CacheStats struct {
	ExactHits      int64   `json:"exact_hits"`
	SemanticHits   int64   `json:"semantic_hits"`
	Misses         int64   `json:"misses"`
	Evictions      int64   `json:"evictions"`
	Size           int     `json:"size"`
	SimilaritySize int     `json:"similarity_size"`
	HitRate        float64 `json:"hit_rate"`
}

// CacheTier names the lookup path that produced a cache result.
type CacheTier string

const (
	CacheTierExact    CacheTier = "exact"
	CacheTierSemantic CacheTier = "semantic"
	CacheTierMiss     CacheTier = "miss"
)
