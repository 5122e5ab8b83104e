package domain

import "strings"

// Metadata keys written by ingestion and read by the reranker.
const (
	MetaSource      = "source"
	MetaSourceKey   = "source_key"
	MetaTopic       = "topic"
	MetaDocType     = "doc_type"
	MetaHasLinks    = "has_links"
	MetaHasArticles = "has_articles"
	MetaChunkIndex  = "chunk_index"
)

// LexicalOnlyDistance marks a candidate found only by keyword search. It
// carries no vector evidence, so its similarity is 0.
const LexicalOnlyDistance = 1.0

// Candidate is a single retrieved passage. Fusion and reranking fill the
// derived score fields.
type Candidate struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Distance float64        `json:"distance"`

	// LexicalScore is the raw sparse-search score. It never feeds Distance.
	LexicalScore float64 `json:"lexical_score,omitempty"`

	VariantIndex int  `json:"-"`
	HydeResult   bool `json:"hyde_result,omitempty"`

	RRFScore       float64 `json:"rrf_score,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	LexicalOverlap float64 `json:"lexical_overlap,omitempty"`
	PhraseMatch    bool    `json:"phrase_match,omitempty"`
}

// Similarity converts distance to a [0,1] similarity.
func (c Candidate) Similarity() float64 {
	s := 1 - c.Distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func (c Candidate) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	switch v := c.Metadata[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func (c Candidate) MetaBool(key string) bool {
	if c.Metadata == nil {
		return false
	}
	switch v := c.Metadata[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// RankedContext is a candidate as returned to chat callers.
type RankedContext struct {
	Candidate
	Rank       int     `json:"rank"`
	Confidence float64 `json:"confidence"`
}

// RetrievalResult keeps per-variant groups intact so fusion can rank within each group.
type RetrievalResult struct {
	Groups  [][]Candidate
	Lexical []Candidate
}

// Pooled flattens all groups in variant order.
func (r RetrievalResult) Pooled() []Candidate {
	total := 0
	for _, g := range r.Groups {
		total += len(g)
	}
	out := make([]Candidate, 0, total)
	for _, g := range r.Groups {
		out = append(out, g...)
	}
	return out
}

func (r RetrievalResult) Empty() bool {
	for _, g := range r.Groups {
		if len(g) > 0 {
			return false
		}
	}
	return len(r.Lexical) == 0
}
