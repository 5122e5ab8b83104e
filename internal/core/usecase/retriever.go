package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/ports"
)

const (
	maxRetrievalVariants = 3
	minHydeLength        = 20
	defaultTopKPerQuery  = 10
	defaultHydeTopK      = 5
)

type RetrievalPlan struct {
	Variants     []string
	HydeDocument string
	Expanded     string
	TopKPerQuery int
}

// MultiStrategyRetriever runs one vector search for each of the first three
// query variants, an optional HyDE search and an optional lexical search.
type MultiStrategyRetriever struct {
	embedder    ports.Embedder
	index       ports.VectorIndex
	lexical     ports.LexicalIndex
	hydeTopK    int
	callTimeout time.Duration
	logger      *slog.Logger
}

func NewMultiStrategyRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	lexical ports.LexicalIndex,
	hydeTopK int,
	callTimeout time.Duration,
	logger *slog.Logger,
) *MultiStrategyRetriever {
	if hydeTopK <= 0 {
		hydeTopK = defaultHydeTopK
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStrategyRetriever{
		embedder:    embedder,
		index:       index,
		lexical:     lexical,
		hydeTopK:    hydeTopK,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

type searchJob struct {
	text string
	n    int
	hyde bool
}

// Retrieve never fails: a failed variant contributes an empty group.
func (r *MultiStrategyRetriever) Retrieve(ctx context.Context, plan RetrievalPlan) domain.RetrievalResult {
	topK := plan.TopKPerQuery
	if topK <= 0 {
		topK = defaultTopKPerQuery
	}

	jobs := make([]searchJob, 0, maxRetrievalVariants+1)
	for i, v := range plan.Variants {
		if i == maxRetrievalVariants {
			break
		}
		jobs = append(jobs, searchJob{text: v, n: topK})
	}
	if len(plan.HydeDocument) > minHydeLength {
		jobs = append(jobs, searchJob{text: plan.HydeDocument, n: r.hydeTopK, hyde: true})
	}

	groups := make([][]domain.Candidate, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			candidates, err := r.searchVariant(gctx, job)
			if err != nil {
				r.logger.Warn("retrieval_variant_failed",
					"variant_index", i,
					"hyde", job.hyde,
					"error", domain.WrapError(domain.ErrRetrieval, "search variant", err),
				)
				return nil
			}
			for j := range candidates {
				candidates[j].VariantIndex = i
				candidates[j].HydeResult = job.hyde
			}
			groups[i] = candidates
			return nil
		})
	}

	var lexical []domain.Candidate
	if r.lexical != nil && plan.Expanded != "" {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.callTimeout)
			defer cancel()
			out, err := r.lexical.SearchLexical(callCtx, plan.Expanded, topK)
			if err != nil {
				r.logger.Warn("retrieval_lexical_failed", "error", domain.WrapError(domain.ErrRetrieval, "search lexical", err))
				return nil
			}
			lexical = out
			return nil
		})
	}
	_ = g.Wait()

	return domain.RetrievalResult{Groups: groups, Lexical: lexical}
}

func (r *MultiStrategyRetriever) searchVariant(ctx context.Context, job searchJob) ([]domain.Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	vector, err := r.embedder.EmbedQuery(callCtx, job.text)
	if err != nil {
		return nil, err
	}
	return r.index.Search(callCtx, vector, job.n)
}
