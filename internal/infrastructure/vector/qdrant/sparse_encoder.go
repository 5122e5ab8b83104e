package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	defaultDocK    = 1.2
	queryK         = 1.2
	topicBoost     = 1.5
	maxSparseTerms = 256
)

// docTypeK is the term-frequency saturation per knowledge-base document type.
// Short Q&A pairs keep repeated terms meaningful; long guides saturate early.
var docTypeK = map[string]float64{
	"qa_pair":             1.6,
	"kb_article":          1.2,
	"article":             1.2,
	"comprehensive_guide": 0.9,
}

// Support-query filler that would otherwise match every article.
var sparseStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "can": {}, "do": {}, "does": {}, "for": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "the": {}, "to": {}, "what": {}, "with": {}, "you": {}, "your": {},
}

// encodeSparseDocument weighs a chunk's terms for keyword search. Topic words
// count topicBoost times a body occurrence; the doc type picks the saturation.
func encodeSparseDocument(text string, metadata map[string]any) sparseVector {
	termFreq := make(map[uint32]float64, 64)
	appendTermFreq(termFreq, tokenizeAlphaNum(text), 1.0)

	topic, _ := metadata[domain.MetaTopic].(string)
	appendTermFreq(termFreq, tokenizeAlphaNum(topic), topicBoost)

	k := defaultDocK
	if docType, _ := metadata[domain.MetaDocType].(string); docType != "" {
		if v, ok := docTypeK[strings.ToLower(docType)]; ok {
			k = v
		}
	}
	return termFreqToSparse(termFreq, k)
}

func encodeSparseQuery(query string) sparseVector {
	termFreq := make(map[uint32]float64, 32)
	appendTermFreq(termFreq, tokenizeAlphaNum(query), 1.0)
	return termFreqToSparse(termFreq, queryK)
}

func appendTermFreq(dst map[uint32]float64, tokens []string, tokenWeight float64) {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, stop := sparseStopwords[token]; stop {
			continue
		}
		dst[hashToken(token)] += tokenWeight
	}
}

// termFreqToSparse keeps the maxSparseTerms heaviest terms, ordered by index.
func termFreqToSparse(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > maxSparseTerms {
		sort.Slice(indices, func(i, j int) bool {
			if tf[indices[i]] != tf[indices[j]] {
				return tf[indices[i]] > tf[indices[j]]
			}
			return indices[i] < indices[j]
		})
		indices = indices[:maxSparseTerms]
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tfValue := tf[idx]
		weight := (tfValue * (k + 1.0)) / (tfValue + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}

	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
