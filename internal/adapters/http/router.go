package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/config"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/ports"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/observability/metrics"
)

const (
	maxRequestBodyBytes = 1 << 20
	defaultTopQueries   = 10
	maxTopQueries       = 100
)

// RouterDependencies lists the collaborators behind each endpoint. Only
// Chat is required; missing optional ones disable their endpoints.
type RouterDependencies struct {
	Chat     ports.ChatService
	Cache    ports.CacheAdmin
	Bus      ports.CacheInvalidationBus
	Ingest   ports.IngestQueue
	Sessions ports.SessionAdmin
	Metrics  *metrics.HTTPServerMetrics
	Health   func(ctx context.Context) error
}

type Router struct {
	cfg  config.Config
	deps RouterDependencies
}

func NewRouter(cfg config.Config, deps RouterDependencies) *Router {
	return &Router{cfg: cfg, deps: deps}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chat)
	mux.HandleFunc("/v1/cache/stats", rt.cacheStats)
	mux.HandleFunc("/v1/cache/top", rt.cacheTop)
	mux.HandleFunc("/v1/cache/invalidate", rt.cacheInvalidate)
	mux.HandleFunc("/v1/cache/warm", rt.cacheWarm)
	mux.HandleFunc("/v1/knowledge/ingest", rt.knowledgeIngest)
	mux.HandleFunc("/v1/sessions/", rt.deleteSession)
	if rt.deps.Metrics != nil {
		mux.Handle("/metrics", rt.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 0)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.deps.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Query        string `json:"query"`
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	UseHistory   *bool  `json:"use_history"`
	EnhanceQuery *bool  `json:"enhance_query"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.deps.Chat.Chat(r.Context(), domain.ChatRequest{
		Query:        req.Query,
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		UseHistory:   boolOrDefault(req.UseHistory, true),
		EnhanceQuery: boolOrDefault(req.EnhanceQuery, true),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if !rt.requireCache(w) {
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Cache.Stats())
}

func (rt *Router) cacheTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if !rt.requireCache(w) {
		return
	}

	limit := defaultTopQueries
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTopQueries)
	}

	type topQuery struct {
		Query     string    `json:"query"`
		HitCount  int       `json:"hit_count"`
		CreatedAt time.Time `json:"created_at"`
	}
	entries := rt.deps.Cache.TopQueries(limit)
	out := make([]topQuery, 0, len(entries))
	for _, e := range entries {
		out = append(out, topQuery{Query: e.Query, HitCount: e.HitCount, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": out})
}

func (rt *Router) cacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !rt.requireCache(w) {
		return
	}

	var req struct {
		Pattern string `json:"pattern"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	removed := rt.deps.Cache.Invalidate(req.Pattern)
	broadcast := false
	if rt.deps.Bus != nil {
		if err := rt.deps.Bus.PublishCacheInvalidated(r.Context(), req.Pattern); err != nil {
			slog.Warn("cache_invalidation_publish_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		} else {
			broadcast = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "broadcast": broadcast})
}

func (rt *Router) cacheWarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !rt.requireCache(w) {
		return
	}

	var req struct {
		Entries []struct {
			Query    string `json:"query"`
			Response string `json:"response"`
			Intent   string `json:"intent"`
		} `json:"entries"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	entries := make([]domain.CacheEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		if strings.TrimSpace(e.Query) == "" || strings.TrimSpace(e.Response) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "every entry needs query and response"})
			return
		}
		entries = append(entries, domain.CacheEntry{
			Query:    e.Query,
			Response: e.Response,
			Metadata: domain.CacheMetadata{Intent: e.Intent, Confidence: 1},
		})
	}
	writeJSON(w, http.StatusOK, map[string]int{"loaded": rt.deps.Cache.Warm(entries)})
}

func (rt *Router) knowledgeIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if rt.deps.Ingest == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "ingestion queue is not configured"})
		return
	}

	var req struct {
		SourceKey string `json:"source_key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	key := strings.TrimSpace(req.SourceKey)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_key is required"})
		return
	}

	if err := rt.deps.Ingest.PublishIngestRequested(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"source_key": key, "status": "queued"})
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if rt.deps.Sessions == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "session history is not configured"})
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if sessionID == "" || strings.Contains(sessionID, "/") || userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id and user_id are required"})
		return
	}

	deleted, err := rt.deps.Sessions.DeleteSession(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "deleted": deleted})
}

func (rt *Router) requireCache(w http.ResponseWriter) bool {
	if rt.deps.Cache == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "cache is disabled"})
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func boolOrDefault(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
