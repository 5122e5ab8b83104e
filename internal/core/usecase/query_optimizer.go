package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/ports"
)

const (
	maxMultiQueries      = 5
	maxLLMParaphrases    = 2
	minVariantLength     = 5
	historyScanWindow    = 4
	maxContextEntities   = 2
	maxExtractedEntities = 5
)

var (
	ambiguityPattern = regexp.MustCompile(`(?i)\b(it|this|that|the issue|the problem)\b`)
	howToPrefix      = regexp.MustCompile(`(?i)how to|how do i`)
	conjunctionSplit = regexp.MustCompile(`(?i)\band\b|\bthen\b|\bafter\b`)
	alternativeLabel = regexp.MustCompile(`^(?:Alternative \d+:|[\d\-*.]+)`)

	entityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(QuickBooks|Sage|ProSeries|Drake|Lacerte|ATX|Office 365)\b`),
		regexp.MustCompile(`(?i)\b(server|VM|instance|machine)\b`),
		regexp.MustCompile(`(?i)\b(password|credentials|login)\b`),
		regexp.MustCompile(`(?i)\b(disk|storage|memory|RAM)\b`),
		regexp.MustCompile(`(?i)\b(printer|scanner|UniPrint)\b`),
		regexp.MustCompile(`(?i)\b(RDP|connection|access)\b`),
	}

	complexityIndicators = []string{
		" and ", " then ", " after ", " while ", " also ",
		"multiple", "several", "step", "process",
	}

	synonyms = map[string]string{
		"reset":      "change",
		"password":   "credentials",
		"server":     "machine",
		"upgrade":    "update",
		"issue":      "problem",
		"slow":       "sluggish",
		"connection": "connectivity",
		"storage":    "disk",
		"memory":     "RAM",
		"backup":     "snapshot",
	}
)

// QueryOptimizer expands one user query into retrieval-oriented variants.
// The generator is optional; without it only rule-based variants are produced.
type QueryOptimizer struct {
	generator  ports.TextGenerator
	llmTimeout time.Duration
	logger     *slog.Logger
}

func NewQueryOptimizer(generator ports.TextGenerator, llmTimeout time.Duration, logger *slog.Logger) *QueryOptimizer {
	if logger == nil {
		logger = slog.Default()
	}
	if llmTimeout <= 0 {
		llmTimeout = 20 * time.Second
	}
	return &QueryOptimizer{
		generator:  generator,
		llmTimeout: llmTimeout,
		logger:     logger,
	}
}

func (o *QueryOptimizer) Optimize(ctx context.Context, query, intent string, history []domain.Message) domain.QueryOptimizationResult {
	result := domain.QueryOptimizationResult{
		Original:     query,
		Rewritten:    query,
		MultiQueries: []string{query},
		Expanded:     query,
	}

	if len(history) > 0 {
		result.Rewritten = rewriteAmbiguous(query, history)
	}

	var paraphrases []string
	if o.generator != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			out, err := o.paraphrase(gctx, result.Rewritten)
			if err != nil {
				o.logger.Warn("query_paraphrase_failed", "error", domain.WrapError(domain.ErrOptimization, "paraphrase", err))
				return nil
			}
			paraphrases = out
			return nil
		})
		g.Go(func() error {
			doc, err := o.hypotheticalDocument(gctx, result.Rewritten)
			if err != nil {
				o.logger.Warn("query_hyde_failed", "error", domain.WrapError(domain.ErrOptimization, "hyde", err))
				return nil
			}
			result.HypotheticalDocument = doc
			return nil
		})
		_ = g.Wait()
	}

	candidates := make([]string, 0, 2+3+len(paraphrases))
	candidates = append(candidates, result.Rewritten)
	candidates = append(candidates, templateVariants(result.Rewritten, intent)...)
	candidates = append(candidates, paraphrases...)
	result.MultiQueries = dedupeVariants(query, candidates, maxMultiQueries)

	result.Expanded = expandSynonyms(result.Rewritten)
	if isComplexQuery(query) {
		result.DecomposedSubQueries = decomposeQuery(result.Rewritten)
	}

	o.logger.Debug("query_optimized",
		"query", result.Rewritten,
		"variants", len(result.MultiQueries),
		"sub_queries", len(result.DecomposedSubQueries),
		"hyde", result.HypotheticalDocument != "",
	)
	return result
}

func (o *QueryOptimizer) paraphrase(ctx context.Context, query string) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()

	raw, err := o.generator.Generate(callCtx, buildParaphrasePrompt(query))
	if err != nil {
		return nil, err
	}
	return parseAlternatives(raw, maxLLMParaphrases), nil
}

func (o *QueryOptimizer) hypotheticalDocument(ctx context.Context, query string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()

	raw, err := o.generator.Generate(callCtx, buildHydePrompt(query))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func buildParaphrasePrompt(query string) string {
	return "Generate 2 alternative ways to ask this question. Keep them concise and focused.\n\n" +
		"Original: " + query + "\n\nAlternative 1:\nAlternative 2:"
}

func buildHydePrompt(query string) string {
	return "Generate a brief, factual answer to this IT support question.\n" +
		"Keep it concise (2-3 sentences) and professional.\n\n" +
		"Question: " + query + "\n\nAnswer:"
}

func parseAlternatives(raw string, limit int) []string {
	out := make([]string, 0, limit)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "Alternative") && !hasAnyPrefix(line, "1.", "2.", "-", "*") {
			continue
		}
		cleaned := strings.TrimSpace(alternativeLabel.ReplaceAllString(line, ""))
		if len(cleaned) > minVariantLength {
			out = append(out, cleaned)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// rewriteAmbiguous appends entities from the most recent user turn that
// mentions any, when the query leans on a pronoun.
func rewriteAmbiguous(query string, history []domain.Message) string {
	if !ambiguityPattern.MatchString(query) {
		return query
	}

	start := len(history) - historyScanWindow
	if start < 0 {
		start = 0
	}
	for i := len(history) - 1; i >= start; i-- {
		msg := history[i]
		if msg.Role != domain.RoleUser {
			continue
		}
		entities := extractEntities(msg.Content)
		if len(entities) == 0 {
			continue
		}
		if len(entities) > maxContextEntities {
			entities = entities[:maxContextEntities]
		}
		return query + " (regarding " + strings.Join(entities, " ") + ")"
	}
	return query
}

func extractEntities(text string) []string {
	out := make([]string, 0, maxExtractedEntities)
	seen := make(map[string]struct{})
	for _, pattern := range entityPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			key := strings.ToLower(match)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, match)
			if len(out) == maxExtractedEntities {
				return out
			}
		}
	}
	return out
}

func templateVariants(query, intent string) []string {
	switch intent {
	case domain.IntentHowTo:
		stripped := strings.TrimSpace(howToPrefix.ReplaceAllString(query, ""))
		return []string{
			"How to " + stripped,
			"Steps to " + stripped,
			"Guide for " + stripped,
		}
	case domain.IntentTroubleshooting:
		return []string{
			"Troubleshoot " + query,
			"Fix " + query,
			"Resolve " + query,
		}
	default:
		return []string{
			"Information about " + query,
			"Details on " + query,
			"Help with " + query,
		}
	}
}

// dedupeVariants always keeps original first, then adds case-insensitively
// unique candidates longer than minVariantLength up to limit.
func dedupeVariants(original string, candidates []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, len(candidates)+1)

	out = append(out, original)
	seen[strings.ToLower(strings.TrimSpace(original))] = struct{}{}

	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		key := strings.ToLower(strings.TrimSpace(c))
		if len(key) <= minVariantLength {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(c))
	}
	return out
}

func expandSynonyms(query string) string {
	words := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(words)*2)
	for _, w := range words {
		out = append(out, w)
		if syn, ok := synonyms[w]; ok {
			out = append(out, syn)
		}
	}
	return strings.Join(out, " ")
}

func isComplexQuery(query string) bool {
	if len(strings.Fields(query)) > 15 {
		return true
	}
	return containsAny(strings.ToLower(query), complexityIndicators)
}

func decomposeQuery(query string) []string {
	parts := make([]string, 0, 4)
	for _, part := range conjunctionSplit.Split(query, -1) {
		part = strings.TrimSpace(part)
		if len(part) > 10 {
			parts = append(parts, part)
		}
	}

	if len(parts) <= 1 {
		switch {
		case strings.Count(query, "?") > 1:
			parts = parts[:0]
			for _, q := range strings.Split(query, "?") {
				if q = strings.TrimSpace(q); q != "" {
					parts = append(parts, q+"?")
				}
			}
		case containsAny(query, []string{"1.", "2.", "3."}):
			parts = parts[:0]
			for _, line := range strings.Split(query, "\n") {
				line = strings.TrimSpace(line)
				if isNumberedStep(line) {
					parts = append(parts, line)
				}
			}
		}
	}

	if len(parts) > 1 {
		return parts
	}
	return nil
}

func isNumberedStep(line string) bool {
	return len(line) >= 2 && line[0] >= '1' && line[0] <= '9' && line[1] == '.'
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
