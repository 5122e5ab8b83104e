package semcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

type Config struct {
	SimilarityThreshold float64
	TTL                 time.Duration
	MaxSize             int
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.95,
		TTL:                 time.Hour,
		MaxSize:             1000,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = def.SimilarityThreshold
	}
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	return c
}

type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

type entry struct {
	domain.CacheEntry
	seq uint64
}

// Cache is a two-tier response cache: an exact map keyed by the normalized
// query hash and a similarity index over query embeddings. Every similarity
// entry is also present in the exact map, so size limits apply to the map.
type Cache struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	exact   map[string]*entry
	similar []*entry
	seq     uint64

	exactHits    int64
	semanticHits int64
	misses       int64
	evictions    int64
}

func New(cfg Config, opts ...Option) *Cache {
	c := &Cache{
		cfg:   cfg.normalize(),
		now:   time.Now,
		exact: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key hashes the lowercased, trimmed query, joined with the conversation
// context when one is given. The query is length-prefixed so a "|" inside it
// cannot collide with a context boundary.
func Key(query, conversationContext string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	normalized := strconv.Itoa(len(q)) + ":" + q
	if conversationContext != "" {
		normalized += "|" + conversationContext
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Get(ctx context.Context, query string, embedding []float32, conversationContext string) (*domain.CacheEntry, domain.CacheTier, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.CacheTierMiss, domain.WrapError(domain.ErrCache, "cache get", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := Key(query, conversationContext)
	if e, ok := c.exact[key]; ok {
		if c.expired(e, now) {
			c.removeLocked(e)
		} else {
			e.HitCount++
			c.exactHits++
			return snapshot(e), domain.CacheTierExact, nil
		}
	}

	if len(embedding) > 0 {
		var best *entry
		bestSimilarity := -1.0
		for _, e := range c.similar {
			if c.expired(e, now) {
				continue
			}
			if conversationContext != "" && e.ConversationContext != conversationContext {
				continue
			}
			sim := cosineSimilarity(embedding, e.Embedding)
			if sim > bestSimilarity {
				best = e
				bestSimilarity = sim
			}
		}
		if best != nil && bestSimilarity >= c.cfg.SimilarityThreshold {
			best.HitCount++
			c.semanticHits++
			return snapshot(best), domain.CacheTierSemantic, nil
		}
	}

	c.misses++
	return nil, domain.CacheTierMiss, nil
}

func (c *Cache) Set(ctx context.Context, e domain.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCache, "cache set", err)
	}
	if strings.TrimSpace(e.Query) == "" {
		return domain.WrapError(domain.ErrCache, "cache set", errors.New("query is required"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e.CreatedAt = c.now()
	e.HitCount = 0
	c.insertLocked(e)
	c.enforceLimitsLocked()
	return nil
}

// Warm bulk-loads precomputed entries, keeping their hit counts and
// creation times when set.
func (c *Cache) Warm(entries []domain.CacheEntry) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	now := c.now()
	for _, e := range entries {
		if strings.TrimSpace(e.Query) == "" || e.Response == "" {
			continue
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.HitCount < 0 {
			e.HitCount = 0
		}
		c.insertLocked(e)
		loaded++
	}
	c.enforceLimitsLocked()
	return loaded
}

// Invalidate removes every entry, or only those whose query contains
// pattern case-insensitively. It returns the number of removed entries.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		removed := len(c.exact)
		c.exact = make(map[string]*entry)
		c.similar = nil
		return removed
	}

	needle := strings.ToLower(pattern)
	removed := 0
	for _, e := range c.exact {
		if strings.Contains(strings.ToLower(e.Query), needle) {
			c.removeLocked(e)
			removed++
		}
	}
	return removed
}

func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpiredLocked(c.now())
}

func (c *Cache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := domain.CacheStats{
		ExactHits:      c.exactHits,
		SemanticHits:   c.semanticHits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		Size:           len(c.exact),
		SimilaritySize: len(c.similar),
	}
	if total := stats.ExactHits + stats.SemanticHits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.ExactHits+stats.SemanticHits) / float64(total)
	}
	return stats
}

// TopQueries returns the n most frequently hit entries.
func (c *Cache) TopQueries(n int) []domain.CacheEntry {
	c.mu.Lock()
	all := c.sortedLocked()
	c.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].HitCount > all[j].HitCount
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]domain.CacheEntry, 0, len(all))
	for _, e := range all {
		out = append(out, *snapshot(e))
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.exact)
}

func (c *Cache) insertLocked(e domain.CacheEntry) {
	e.Key = Key(e.Query, e.ConversationContext)
	if old, ok := c.exact[e.Key]; ok {
		c.removeLocked(old)
	}
	if len(e.Embedding) > 0 {
		e.Embedding = append([]float32(nil), e.Embedding...)
	} else {
		e.Embedding = nil
	}
	e.ContextDocs = append([]domain.Candidate(nil), e.ContextDocs...)

	c.seq++
	stored := &entry{CacheEntry: e, seq: c.seq}
	c.exact[e.Key] = stored
	if stored.Embedding != nil {
		c.similar = append(c.similar, stored)
	}
}

func (c *Cache) removeLocked(e *entry) {
	if current, ok := c.exact[e.Key]; ok && current == e {
		delete(c.exact, e.Key)
	}
	if e.Embedding == nil {
		return
	}
	for i, s := range c.similar {
		if s == e {
			c.similar = append(c.similar[:i], c.similar[i+1:]...)
			return
		}
	}
}

// enforceLimitsLocked drops expired entries, then evicts by ascending
// (hit count, creation time) until the cache fits.
func (c *Cache) enforceLimitsLocked() {
	if len(c.exact) <= c.cfg.MaxSize {
		return
	}
	c.purgeExpiredLocked(c.now())
	if len(c.exact) <= c.cfg.MaxSize {
		return
	}

	ordered := c.sortedLocked()
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.HitCount != b.HitCount {
			return a.HitCount < b.HitCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.seq < b.seq
	})

	excess := len(c.exact) - c.cfg.MaxSize
	for _, e := range ordered[:excess] {
		c.removeLocked(e)
		c.evictions++
	}
}

func (c *Cache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for _, e := range c.exact {
		if c.expired(e, now) {
			c.removeLocked(e)
			removed++
		}
	}
	return removed
}

// sortedLocked lists entries in insertion order.
func (c *Cache) sortedLocked() []*entry {
	out := make([]*entry, 0, len(c.exact))
	for _, e := range c.exact {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) > c.cfg.TTL
}

func snapshot(e *entry) *domain.CacheEntry {
	out := e.CacheEntry
	out.ContextDocs = append([]domain.Candidate(nil), e.ContextDocs...)
	out.Embedding = nil
	return &out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
