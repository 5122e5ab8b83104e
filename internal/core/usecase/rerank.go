package usecase

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

// RerankWeights holds the signal weights and boost factors of the reranker.
type RerankWeights struct {
	Base      float64
	Lexical   float64
	Phrase    float64
	Length    float64
	Threshold float64 // diversity: max Jaccard similarity between kept texts
}

func DefaultRerankWeights() RerankWeights {
	return RerankWeights{
		Base:      0.5,
		Lexical:   0.3,
		Phrase:    0.2,
		Length:    0.2,
		Threshold: 0.85,
	}
}

var authoritativeSources = []string{"acebuddy_chatbot", "zobot"}

type Reranker struct {
	weights RerankWeights
}

func NewReranker(weights RerankWeights) *Reranker {
	def := DefaultRerankWeights()
	if weights.Threshold <= 0 || weights.Threshold > 1 {
		weights.Threshold = def.Threshold
	}
	if weights.Base == 0 && weights.Lexical == 0 && weights.Phrase == 0 && weights.Length == 0 {
		weights.Base, weights.Lexical, weights.Phrase, weights.Length = def.Base, def.Lexical, def.Phrase, def.Length
	}
	return &Reranker{weights: weights}
}

// Rerank scores candidates against the query, sorts them and drops
// near-duplicates. The result holds at most topK candidates.
func (r *Reranker) Rerank(query string, candidates []domain.Candidate, topK int, applyMetadataBoost bool) []domain.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTokens := toTokenSet(queryLower)
	ideal := idealDocLength(len(strings.Fields(queryLower)))

	scored := make([]domain.Candidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		c := &scored[i]
		textLower := strings.ToLower(c.Text)

		base := math.Max(0, 1-c.Distance)
		c.LexicalOverlap = tokenOverlap(queryTokens, toTokenSet(textLower))
		c.PhraseMatch = queryLower != "" && strings.Contains(textLower, queryLower)

		score := r.weights.Base*base + r.weights.Lexical*c.LexicalOverlap
		if c.PhraseMatch {
			score += r.weights.Phrase
		}
		score += r.weights.Length * lengthAlignment(len(strings.Fields(c.Text)), ideal)

		if applyMetadataBoost {
			score *= metadataBoost(queryLower, *c)
		}
		c.RelevanceScore = score
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})

	diverse := diversityFilter(scored, r.weights.Threshold, topK*2)
	return trimCandidates(diverse, topK)
}

func idealDocLength(queryWords int) int {
	switch {
	case queryWords < 5:
		return 100
	case queryWords < 10:
		return 200
	default:
		return 300
	}
}

func lengthAlignment(docWords, ideal int) float64 {
	if ideal <= 0 {
		return 0
	}
	diff := math.Abs(float64(docWords - ideal))
	return math.Max(0, 1-diff/float64(ideal))
}

func metadataBoost(queryLower string, c domain.Candidate) float64 {
	boost := 1.0

	source := strings.ToLower(c.MetaString(domain.MetaSource))
	switch {
	case containsAny(source, authoritativeSources):
		boost *= 1.15
	case strings.Contains(source, "official_docs"):
		boost *= 1.10
	}

	docType := strings.ToLower(c.MetaString(domain.MetaDocType))
	switch {
	case strings.Contains(queryLower, "how") && strings.Contains(docType, "qa_pair"):
		boost *= 1.10
	case strings.Contains(docType, "comprehensive"):
		boost *= 1.05
	}

	if topic := strings.ToLower(strings.TrimSpace(c.MetaString(domain.MetaTopic))); topic != "" && strings.Contains(queryLower, topic) {
		boost *= 1.20
	}
	if c.MetaBool(domain.MetaHasLinks) {
		boost *= 1.05
	}
	if c.MetaBool(domain.MetaHasArticles) {
		boost *= 1.05
	}
	return boost
}

// diversityFilter keeps the first candidate and then every candidate whose
// token Jaccard similarity to all kept ones is below threshold.
func diversityFilter(sorted []domain.Candidate, threshold float64, maxSelected int) []domain.Candidate {
	if len(sorted) == 0 {
		return nil
	}
	if maxSelected <= 0 {
		maxSelected = len(sorted)
	}

	selected := make([]domain.Candidate, 0, maxSelected)
	selectedTokens := make([]map[string]struct{}, 0, maxSelected)
	for _, c := range sorted {
		if len(selected) >= maxSelected {
			break
		}
		tokens := whitespaceTokenSet(c.Text)
		redundant := false
		for _, kept := range selectedTokens {
			if jaccardSimilarity(tokens, kept) >= threshold {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		selected = append(selected, c)
		selectedTokens = append(selectedTokens, tokens)
	}
	return selected
}

// jaccardSimilarity is 0 when both sets are empty.
func jaccardSimilarity(a, b map[string]struct{}) float64 {
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenOverlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := doc[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func whitespaceTokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
