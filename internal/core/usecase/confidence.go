package usecase

import (
	"strings"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

var (
	attributionPhrases = []string{"according to", "based on", "as mentioned"}
	hedgingWords       = []string{"maybe", "might", "not sure"}
)

// responseConfidence is a heuristic trust score for a generated answer.
func responseConfidence(response string, contextDocs []domain.Candidate) float64 {
	confidence := 0.5
	lower := strings.ToLower(response)

	if len(response) >= 50 {
		confidence += 0.1
	}
	if len(contextDocs) >= 3 {
		confidence += 0.2
	}
	if containsAny(lower, attributionPhrases) {
		confidence += 0.1
	}
	if !containsAny(lower, hedgingWords) {
		confidence += 0.1
	}
	return clamp01(confidence)
}

// contextQuality is the similarity of the top candidate, or 0 without context.
func contextQuality(contextDocs []domain.Candidate) float64 {
	if len(contextDocs) == 0 {
		return 0
	}
	return contextDocs[0].Similarity()
}

func overallConfidence(heuristic, quality float64, hasContext bool) float64 {
	if !hasContext {
		return clamp01(heuristic)
	}
	return clamp01((heuristic + quality) / 2)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
