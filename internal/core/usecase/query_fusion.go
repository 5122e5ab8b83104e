package usecase

import (
	"math"
	"sort"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

const (
	defaultRRFK        = 60
	defaultHybridAlpha = 0.7
)

type fusionAccumulator struct {
	order []string
	byKey map[string]*domain.Candidate
}

func newFusionAccumulator(capacity int) *fusionAccumulator {
	return &fusionAccumulator{
		order: make([]string, 0, capacity),
		byKey: make(map[string]*domain.Candidate, capacity),
	}
}

func (a *fusionAccumulator) add(c domain.Candidate, score float64) {
	key := candidateKey(c)
	current, ok := a.byKey[key]
	if !ok {
		c.RRFScore = score
		a.byKey[key] = &c
		a.order = append(a.order, key)
		return
	}
	current.RRFScore += score
	mergeCandidate(current, c)
}

// addLexical folds in a keyword hit. An existing candidate keeps its vector
// distance; a new one enters without vector evidence.
func (a *fusionAccumulator) addLexical(c domain.Candidate, score float64) {
	if current, ok := a.byKey[candidateKey(c)]; ok {
		current.RRFScore += score
		current.LexicalScore = math.Max(current.LexicalScore, c.LexicalScore)
		return
	}
	c.Distance = domain.LexicalOnlyDistance
	a.add(c, score)
}

func (a *fusionAccumulator) sorted() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RRFScore > out[j].RRFScore
	})
	return out
}

// reciprocalRankFusion merges per-variant ranked lists. Each candidate at
// 1-based rank r in a group contributes 1/(k+r).
func reciprocalRankFusion(groups [][]domain.Candidate, k int) []domain.Candidate {
	if k <= 0 {
		k = defaultRRFK
	}
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	acc := newFusionAccumulator(total)
	for _, group := range groups {
		seen := make(map[string]struct{}, len(group))
		for rank, c := range group {
			key := candidateKey(c)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			acc.add(c, 1.0/float64(k+rank+1))
		}
	}
	return acc.sorted()
}

// hybridFusion weights reciprocal ranks of a semantic and a lexical list.
// Distances come from the semantic list only.
func hybridFusion(semantic, lexical []domain.Candidate, alpha float64) []domain.Candidate {
	if alpha < 0 || alpha > 1 {
		alpha = defaultHybridAlpha
	}

	acc := newFusionAccumulator(len(semantic) + len(lexical))
	addList := func(list []domain.Candidate, weight float64, add func(domain.Candidate, float64)) {
		seen := make(map[string]struct{}, len(list))
		for rank, c := range list {
			key := candidateKey(c)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			add(c, weight/float64(rank+1))
		}
	}
	addList(semantic, alpha, acc.add)
	addList(lexical, 1-alpha, acc.addLexical)
	return acc.sorted()
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

func candidateKey(c domain.Candidate) string {
	if c.ID != "" {
		return c.ID
	}
	return "text:" + c.Text
}

// mergeCandidate keeps first-seen display data and the best distance.
func mergeCandidate(current *domain.Candidate, other domain.Candidate) {
	if other.Distance < current.Distance {
		current.Distance = other.Distance
	}
	if current.Text == "" && other.Text != "" {
		current.Text = other.Text
	}
	if len(current.Metadata) == 0 && len(other.Metadata) > 0 {
		current.Metadata = other.Metadata
	}
	if !other.HydeResult {
		current.HydeResult = false
	}
}
