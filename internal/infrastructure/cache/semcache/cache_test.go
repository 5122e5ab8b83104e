package semcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(cfg Config, clock *fakeClock) *Cache {
	return New(cfg, WithClock(clock.Now))
}

func mustSet(t *testing.T, c *Cache, e domain.CacheEntry) {
	t.Helper()
	if err := c.Set(context.Background(), e); err != nil {
		t.Fatalf("set %q: %v", e.Query, err)
	}
}

func TestCacheExactHitIgnoresCaseAndWhitespace(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{Query: "How do I reset my password?", Response: "Use Forgot Password."})

	got, tier, err := c.Get(context.Background(), "  how do i RESET my password?  ", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || tier != domain.CacheTierExact {
		t.Fatalf("expected exact hit, got entry=%v tier=%s", got, tier)
	}
	if got.Response != "Use Forgot Password." {
		t.Fatalf("unexpected response %q", got.Response)
	}
	if got.HitCount != 1 {
		t.Fatalf("expected hit count 1, got %d", got.HitCount)
	}
}

func TestCacheExactKeyIncludesConversationContext(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{Query: "fix it", Response: "printer answer", ConversationContext: "printer offline"})

	if got, _, _ := c.Get(context.Background(), "fix it", nil, "rdp disconnects"); got != nil {
		t.Fatalf("expected miss for different conversation context")
	}
	if got, _, _ := c.Get(context.Background(), "fix it", nil, "printer offline"); got == nil {
		t.Fatalf("expected hit for same conversation context")
	}
}

func TestKeySeparatesPipeInQueryFromContext(t *testing.T) {
	if Key("a|b", "") == Key("a", "b") {
		t.Fatalf("expected distinct keys for query with pipe and query with context")
	}
	if Key("  Reset Password ", "") != Key("reset password", "") {
		t.Fatalf("expected normalized queries to share a key")
	}

	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{Query: "vpn|printer", Response: "combined answer"})
	if got, _, _ := c.Get(context.Background(), "vpn", nil, "printer"); got != nil {
		t.Fatalf("expected miss for query split across context, got %+v", got)
	}
}

func TestCacheSimilarityHitAboveThreshold(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{
		Query:     "How do I reset my password?",
		Response:  "Use Forgot Password.",
		Embedding: []float32{1, 0, 0},
	})

	got, tier, err := c.Get(context.Background(), "password reset steps", []float32{0.99, 0.05, 0}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || tier != domain.CacheTierSemantic {
		t.Fatalf("expected semantic hit, got entry=%v tier=%s", got, tier)
	}

	if got, _, _ := c.Get(context.Background(), "disk is full", []float32{0, 1, 0}, ""); got != nil {
		t.Fatalf("expected miss for orthogonal embedding")
	}

	stats := c.Stats()
	if stats.SemanticHits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 semantic hit and 1 miss, got %+v", stats)
	}
}

func TestCacheSimilaritySkipsDifferentConversationContext(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{
		Query:               "restart it",
		Response:            "server restart steps",
		Embedding:           []float32{1, 0},
		ConversationContext: "server",
	})

	if got, _, _ := c.Get(context.Background(), "reboot it", []float32{1, 0}, "printer"); got != nil {
		t.Fatalf("expected context mismatch to skip similarity entry")
	}
	if got, _, _ := c.Get(context.Background(), "reboot it", []float32{1, 0}, "server"); got == nil {
		t.Fatalf("expected similarity hit with matching context")
	}
}

func TestCacheEntryExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(Config{TTL: time.Second}, clock)
	mustSet(t, c, domain.CacheEntry{Query: "vpn setup", Response: "steps", Embedding: []float32{1, 0}})

	clock.Advance(2 * time.Second)

	if got, _, _ := c.Get(context.Background(), "vpn setup", []float32{1, 0}, ""); got != nil {
		t.Fatalf("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired exact entry to be removed, len=%d", c.Len())
	}
}

func TestCacheEvictsOldestWhenHitCountsEqual(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(Config{MaxSize: 3}, clock)
	for i := 0; i < 4; i++ {
		mustSet(t, c, domain.CacheEntry{Query: fmt.Sprintf("question number %d", i), Response: "a"})
		clock.Advance(time.Millisecond)
	}

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", c.Len())
	}
	if got, _, _ := c.Get(context.Background(), "question number 0", nil, ""); got != nil {
		t.Fatalf("expected oldest entry to be evicted")
	}
	for i := 1; i < 4; i++ {
		if got, _, _ := c.Get(context.Background(), fmt.Sprintf("question number %d", i), nil, ""); got == nil {
			t.Fatalf("expected entry %d to survive eviction", i)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", c.Stats().Evictions)
	}
}

func TestCacheEvictionPrefersLowHitCount(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(Config{MaxSize: 2}, clock)
	mustSet(t, c, domain.CacheEntry{Query: "oldest but popular", Response: "a"})
	clock.Advance(time.Millisecond)
	mustSet(t, c, domain.CacheEntry{Query: "newer but cold", Response: "b"})
	clock.Advance(time.Millisecond)

	if got, _, _ := c.Get(context.Background(), "oldest but popular", nil, ""); got == nil {
		t.Fatalf("expected hit")
	}
	mustSet(t, c, domain.CacheEntry{Query: "newest entry", Response: "c"})

	if got, _, _ := c.Get(context.Background(), "newer but cold", nil, ""); got != nil {
		t.Fatalf("expected cold entry to be evicted first")
	}
	if got, _, _ := c.Get(context.Background(), "oldest but popular", nil, ""); got == nil {
		t.Fatalf("expected popular entry to survive")
	}
}

func TestCacheInvalidateByPattern(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{Query: "QuickBooks won't open", Response: "a", Embedding: []float32{1, 0}})
	mustSet(t, c, domain.CacheEntry{Query: "reset password", Response: "b", Embedding: []float32{0, 1}})

	removed := c.Invalidate("quickbooks")
	if removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}
	if got, _, _ := c.Get(context.Background(), "quickbooks won't open", []float32{1, 0}, ""); got != nil {
		t.Fatalf("expected invalidated entry to miss on both tiers")
	}
	if got, _, _ := c.Get(context.Background(), "reset password", nil, ""); got == nil {
		t.Fatalf("expected unrelated entry to survive")
	}

	if removed := c.Invalidate(""); removed != 1 {
		t.Fatalf("expected clear-all to remove 1 entry, got %d", removed)
	}
	if stats := c.Stats(); stats.Size != 0 || stats.SimilaritySize != 0 {
		t.Fatalf("expected empty cache, got %+v", stats)
	}
}

func TestCacheSetReplacesSameKeyInSimilarityIndex(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{Query: "rdp issue", Response: "old", Embedding: []float32{1, 0}})
	mustSet(t, c, domain.CacheEntry{Query: "RDP issue", Response: "new", Embedding: []float32{1, 0}})

	stats := c.Stats()
	if stats.Size != 1 || stats.SimilaritySize != 1 {
		t.Fatalf("expected one entry per tier, got %+v", stats)
	}
	got, _, _ := c.Get(context.Background(), "remote desktop issue", []float32{1, 0}, "")
	if got == nil || got.Response != "new" {
		t.Fatalf("expected replaced response, got %+v", got)
	}
}

func TestCacheCleanupExpiredAndWarm(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(Config{TTL: time.Minute}, clock)
	loaded := c.Warm([]domain.CacheEntry{
		{Query: "how to add a printer", Response: "Open UniPrint."},
		{Query: "", Response: "skipped"},
	})
	if loaded != 1 {
		t.Fatalf("expected 1 warmed entry, got %d", loaded)
	}

	clock.Advance(2 * time.Minute)
	mustSet(t, c, domain.CacheEntry{Query: "fresh entry", Response: "x"})

	if removed := c.CleanupExpired(); removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
}

func TestCacheTopQueriesOrderedByHits(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	mustSet(t, c, domain.CacheEntry{Query: "first question", Response: "a"})
	mustSet(t, c, domain.CacheEntry{Query: "second question", Response: "b"})
	for i := 0; i < 3; i++ {
		_, _, _ = c.Get(context.Background(), "second question", nil, "")
	}

	top := c.TopQueries(1)
	if len(top) != 1 || top[0].Query != "second question" || top[0].HitCount != 3 {
		t.Fatalf("unexpected top queries: %+v", top)
	}
}

func TestCacheGetHonorsCancelledContext(t *testing.T) {
	c := newTestCache(DefaultConfig(), newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Get(ctx, "anything", nil, "")
	if !domain.IsKind(err, domain.ErrCache) {
		t.Fatalf("expected cache error kind, got %v", err)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := newTestCache(Config{MaxSize: 50}, newFakeClock())
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q := fmt.Sprintf("worker %d question %d", worker, i%20)
				_ = c.Set(context.Background(), domain.CacheEntry{Query: q, Response: "a", Embedding: []float32{float32(worker), float32(i)}})
				_, _, _ = c.Get(context.Background(), q, []float32{float32(worker), float32(i)}, "")
				if i%25 == 0 {
					c.Invalidate("question 3")
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Fatalf("expected size limit to hold, got %d", c.Len())
	}
}
