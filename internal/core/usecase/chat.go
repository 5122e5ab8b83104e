package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/ports"
)

const (
	defaultRerankTopK   = 5
	defaultHistoryLimit = 10
	promptContextLimit  = 3
	anonymousUserID     = "anonymous"

	generationFailedAnswer = "I'm sorry, an answer could not be generated right now."
)

type ChatOptions struct {
	TopKPerQuery      int
	RerankTopK        int
	RRFK              int
	HybridAlpha       float64
	HistoryLimit      int
	EmbedTimeout      time.Duration
	GenerationTimeout time.Duration
	CacheEnabled      bool
}

type ChatDependencies struct {
	Embedder  ports.Embedder
	Optimizer *QueryOptimizer
	Retriever *MultiStrategyRetriever
	Reranker  *Reranker
	Generator ports.AnswerGenerator
	Fallback  *FallbackPolicy
	Cache     ports.ResponseCache       // optional
	History   ports.ConversationHistory // optional
	Observer  ports.ChatObserver        // optional
}

// ChatUseCase wires cache, optimizer, retrieval, fusion, rerank, generation
// and fallback into one request flow.
type ChatUseCase struct {
	deps   ChatDependencies
	opts   ChatOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewChatUseCase(deps ChatDependencies, opts ChatOptions, logger *slog.Logger) *ChatUseCase {
	if opts.TopKPerQuery <= 0 {
		opts.TopKPerQuery = defaultTopKPerQuery
	}
	if opts.RerankTopK <= 0 {
		opts.RerankTopK = defaultRerankTopK
	}
	if opts.RRFK <= 0 {
		opts.RRFK = defaultRRFK
	}
	if opts.HybridAlpha <= 0 || opts.HybridAlpha > 1 {
		opts.HybridAlpha = defaultHybridAlpha
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 30 * time.Second
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 60 * time.Second
	}
	if deps.Reranker == nil {
		deps.Reranker = NewReranker(DefaultRerankWeights())
	}
	if deps.Fallback == nil {
		deps.Fallback = NewFallbackPolicy(DefaultFallbackThresholds(), DefaultEscalationContacts())
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	start := uc.now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("query is required"))
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = anonymousUserID
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = fmt.Sprintf("%s_%d", userID, start.Unix())
	}

	history := uc.loadHistory(ctx, req.UseHistory, userID, sessionID)
	conversationContext := buildConversationContext(history)

	var queryEmbedding []float32
	if uc.cacheEnabled() {
		queryEmbedding = uc.embedQuery(ctx, query)
		if result := uc.lookupCache(ctx, query, queryEmbedding, conversationContext); result != nil {
			result.SessionID = sessionID
			result.ProcessingTimeMS = elapsedMS(uc.now(), start)
			uc.deps.Observer.ObserveChat(result)
			return result, nil
		}
	}

	intent, intentConfidence := ClassifyIntent(query)

	stageStart := uc.now()
	plan := RetrievalPlan{
		Variants:     []string{query},
		Expanded:     query,
		TopKPerQuery: uc.opts.TopKPerQuery,
	}
	optimized := false
	if req.EnhanceQuery && uc.deps.Optimizer != nil {
		opt := uc.deps.Optimizer.Optimize(ctx, query, intent, history)
		plan.Variants = opt.MultiQueries
		plan.HydeDocument = opt.HypotheticalDocument
		plan.Expanded = opt.Expanded
		optimized = true
	}
	uc.deps.Observer.ObserveStage("optimize", uc.now().Sub(stageStart).Seconds())

	stageStart = uc.now()
	retrieved := uc.deps.Retriever.Retrieve(ctx, plan)
	uc.deps.Observer.ObserveRetrieval(len(retrieved.Pooled()) + len(retrieved.Lexical))
	uc.deps.Observer.ObserveStage("retrieve", uc.now().Sub(stageStart).Seconds())

	stageStart = uc.now()
	fused := reciprocalRankFusion(retrieved.Groups, uc.opts.RRFK)
	// Keyword hits only re-rank a non-empty vector pool.
	if len(fused) > 0 && len(retrieved.Lexical) > 0 {
		fused = hybridFusion(fused, retrieved.Lexical, uc.opts.HybridAlpha)
	}
	contexts := uc.deps.Reranker.Rerank(query, fused, uc.opts.RerankTopK, true)
	uc.deps.Observer.ObserveStage("rerank", uc.now().Sub(stageStart).Seconds())

	stageStart = uc.now()
	answer, genErr := uc.generate(ctx, query, contexts)
	uc.deps.Observer.ObserveStage("generate", uc.now().Sub(stageStart).Seconds())

	heuristic := responseConfidence(answer, contexts)
	quality := contextQuality(contexts)
	confidence := overallConfidence(heuristic, quality, len(contexts) > 0)

	result := &domain.ChatResult{
		SessionID:         sessionID,
		Intent:            intent,
		IntentConfidence:  intentConfidence,
		Contexts:          rankContexts(contexts),
		OverallConfidence: confidence,
		OptimizationUsed:  optimized,
		RerankingUsed:     len(contexts) > 0,
	}

	if genErr != nil || uc.deps.Fallback.ShouldFallback(confidence, quality, answer) {
		partial := answer
		if genErr != nil {
			partial = ""
		}
		decision := uc.deps.Fallback.BuildFallback(query, intent, confidence, partial, contexts)
		result.Answer = decision.Answer
		result.FallbackUsed = true
		result.Fallback = &decision
		uc.deps.Observer.ObserveFallback(decision.Reason)
		uc.logger.Info("fallback_applied",
			"session_id", sessionID,
			"reason", decision.Reason,
			"confidence", confidence,
			"context_quality", quality,
		)
	} else {
		result.Answer = uc.deps.Fallback.EnhanceLowConfidence(answer, confidence, buildSuggestions(intent, contexts))
		uc.storeInCache(ctx, query, queryEmbedding, conversationContext, result, contexts)
	}

	uc.appendConversation(ctx, userID, sessionID, query, result.Answer)

	result.ProcessingTimeMS = elapsedMS(uc.now(), start)
	uc.deps.Observer.ObserveChat(result)
	return result, nil
}

func (uc *ChatUseCase) cacheEnabled() bool {
	return uc.opts.CacheEnabled && uc.deps.Cache != nil
}

func (uc *ChatUseCase) embedQuery(ctx context.Context, query string) []float32 {
	callCtx, cancel := context.WithTimeout(ctx, uc.opts.EmbedTimeout)
	defer cancel()

	vector, err := uc.deps.Embedder.EmbedQuery(callCtx, query)
	if err != nil {
		uc.logger.Warn("cache_embed_failed", "error", domain.WrapError(domain.ErrCache, "embed query", err))
		return nil
	}
	return vector
}

func (uc *ChatUseCase) lookupCache(ctx context.Context, query string, embedding []float32, conversationContext string) *domain.ChatResult {
	entry, tier, err := uc.deps.Cache.Get(ctx, query, embedding, conversationContext)
	if err != nil {
		uc.logger.Warn("cache_lookup_failed", "error", domain.WrapError(domain.ErrCache, "get", err))
		uc.deps.Observer.ObserveCacheLookup(domain.CacheTierMiss)
		return nil
	}
	uc.deps.Observer.ObserveCacheLookup(tier)
	if entry == nil {
		return nil
	}

	uc.logger.Info("chat_cache_hit", "tier", tier, "hit_count", entry.HitCount)
	_, intentConfidence := ClassifyIntent(query)
	return &domain.ChatResult{
		Answer:            entry.Response,
		Intent:            entry.Metadata.Intent,
		IntentConfidence:  intentConfidence,
		Contexts:          rankContexts(entry.ContextDocs),
		OverallConfidence: entry.Metadata.Confidence,
		CacheHit:          true,
	}
}

func (uc *ChatUseCase) storeInCache(
	ctx context.Context,
	query string,
	embedding []float32,
	conversationContext string,
	result *domain.ChatResult,
	contexts []domain.Candidate,
) {
	if !uc.cacheEnabled() {
		return
	}
	if embedding == nil {
		embedding = uc.embedQuery(ctx, query)
	}
	err := uc.deps.Cache.Set(ctx, domain.CacheEntry{
		Query:       query,
		Response:    result.Answer,
		ContextDocs: contexts,
		Metadata: domain.CacheMetadata{
			Intent:     result.Intent,
			Confidence: result.OverallConfidence,
		},
		ConversationContext: conversationContext,
		Embedding:           embedding,
	})
	if err != nil {
		uc.logger.Warn("cache_store_failed", "error", domain.WrapError(domain.ErrCache, "set", err))
	}
}

func (uc *ChatUseCase) generate(ctx context.Context, query string, contexts []domain.Candidate) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.opts.GenerationTimeout)
	defer cancel()

	answer, err := uc.deps.Generator.GenerateAnswer(callCtx, query, trimCandidates(contexts, promptContextLimit))
	if err != nil {
		err = domain.WrapError(domain.ErrGeneration, "generate answer", err)
		uc.logger.Error("answer_generation_failed", "error", err)
		return generationFailedAnswer, err
	}
	return answer, nil
}

func (uc *ChatUseCase) loadHistory(ctx context.Context, useHistory bool, userID, sessionID string) []domain.Message {
	if !useHistory || uc.deps.History == nil {
		return nil
	}
	history, err := uc.deps.History.RecentTurns(ctx, userID, sessionID, uc.opts.HistoryLimit)
	if err != nil {
		uc.logger.Warn("conversation_history_failed", "session_id", sessionID, "error", err)
		return nil
	}
	return history
}

func (uc *ChatUseCase) appendConversation(ctx context.Context, userID, sessionID, query, answer string) {
	if uc.deps.History == nil {
		return
	}
	for _, msg := range []domain.Message{
		{UserID: userID, SessionID: sessionID, Role: domain.RoleUser, Content: query},
		{UserID: userID, SessionID: sessionID, Role: domain.RoleAssistant, Content: answer},
	} {
		msg.CreatedAt = uc.now().UTC()
		if err := uc.deps.History.AppendTurn(ctx, msg); err != nil {
			uc.logger.Warn("conversation_append_failed", "session_id", sessionID, "role", msg.Role, "error", err)
			return
		}
	}
}

// buildConversationContext joins the contents of the last two turns.
func buildConversationContext(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}
	tail := history
	if len(tail) > 2 {
		tail = tail[len(tail)-2:]
	}
	parts := make([]string, 0, len(tail))
	for _, msg := range tail {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "|")
}

func rankContexts(candidates []domain.Candidate) []domain.RankedContext {
	out := make([]domain.RankedContext, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, domain.RankedContext{
			Candidate:  c,
			Rank:       i + 1,
			Confidence: c.Similarity(),
		})
	}
	return out
}

func elapsedMS(now, start time.Time) float64 {
	return float64(now.Sub(start).Microseconds()) / 1000.0
}

type noopObserver struct{}

func (noopObserver) ObserveCacheLookup(domain.CacheTier)   {}
func (noopObserver) ObserveStage(string, float64)          {}
func (noopObserver) ObserveRetrieval(int)                  {}
func (noopObserver) ObserveFallback(domain.FallbackReason) {}
func (noopObserver) ObserveChat(*domain.ChatResult)        {}
