package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	payloadChunkID = "chunk_id"
	payloadText    = "text"
)

// pointNamespace seeds deterministic point ids so re-ingesting a chunk
// overwrites the same point.
var pointNamespace = uuid.MustParse("6f1c2a8e-3d44-4b59-9a0e-5c8d7e21b6f3")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return NewWithResilience(baseURL, collection, nil)
}

func NewWithResilience(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type statusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func (c *Client) IndexChunks(ctx context.Context, chunks []domain.KnowledgeChunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		payload := make(map[string]any, len(chunk.Metadata)+3)
		for k, v := range chunk.Metadata {
			payload[k] = v
		}
		payload[payloadChunkID] = chunk.ID
		payload[domain.MetaSourceKey] = chunk.SourceKey
		payload[payloadText] = chunk.Text

		points = append(points, point{
			ID: PointID(chunk.ID),
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: encodeSparseDocument(chunk.Text, chunk.Metadata),
			},
			Payload: payload,
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

// DeleteBySource removes every point ingested from sourceKey. A missing
// collection means there is nothing to delete.
func (c *Client) DeleteBySource(ctx context.Context, sourceKey string) error {
	body := map[string]any{"filter": matchFilter(domain.MetaSourceKey, sourceKey)}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	err := c.doJSON(ctx, http.MethodPost, path, body, nil, "delete")
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// Search returns nearest chunks with distance = 1 - cosine score.
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": queryVector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	hits, err := c.search(ctx, reqBody, "search")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, toCandidate(h.Payload, 1-h.Score))
	}
	return out, nil
}

// SearchLexical scores chunks against a BM25-weighted sparse query vector.
// Hits carry the raw score in LexicalScore and no vector distance.
func (c *Client) SearchLexical(ctx context.Context, text string, limit int) ([]domain.Candidate, error) {
	sparse := encodeSparseQuery(text)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	hits, err := c.search(ctx, reqBody, "sparse search")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(hits))
	for _, h := range hits {
		score := h.Score
		if score < 0 {
			score = 0
		}
		cand := toCandidate(h.Payload, domain.LexicalOnlyDistance)
		cand.LexicalScore = score
		out = append(out, cand)
	}
	return out, nil
}

type searchHit struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) search(ctx context.Context, reqBody map[string]any, operation string) ([]searchHit, error) {
	var searchResp struct {
		Result []searchHit `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, operation); err != nil {
		return nil, err
	}
	return searchResp.Result, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{"modifier": "idf"},
		},
	}

	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	var statusErr *statusError
	// 409 if already exists (depends on version/config).
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &statusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       strings.TrimSpace(string(raw)),
			}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		retryable := statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// PointID maps a chunk id onto the UUID point id space Qdrant requires.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key": key,
				"match": map[string]any{
					"value": value,
				},
			},
		},
	}
}

func toCandidate(payload map[string]any, distance float64) domain.Candidate {
	meta := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == payloadText || k == payloadChunkID {
			continue
		}
		meta[k] = v
	}
	return domain.Candidate{
		ID:       getStringPayload(payload, payloadChunkID),
		Text:     getStringPayload(payload, payloadText),
		Metadata: meta,
		Distance: distance,
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
