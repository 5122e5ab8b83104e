package qdrant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

func testChunks() []domain.KnowledgeChunk {
	return []domain.KnowledgeChunk{
		{ID: "kb/vpn.md#0", SourceKey: "kb/vpn.md", Text: "a", Metadata: map[string]any{domain.MetaTopic: "vpn"}},
		{ID: "kb/vpn.md#1", SourceKey: "kb/vpn.md", Text: "b", Metadata: map[string]any{domain.MetaTopic: "vpn"}},
	}
}

func TestIndexChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kb":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kb/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "kb")
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexChunks(context.Background(), testChunks(), vectors); err != nil {
		t.Fatalf("first IndexChunks() error = %v", err)
	}
	if err := client.IndexChunks(context.Background(), testChunks(), vectors); err != nil {
		t.Fatalf("second IndexChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestIndexChunksWritesDeterministicPointsWithPayload(t *testing.T) {
	var upsert struct {
		Points []struct {
			ID      string                     `json:"id"`
			Vector  map[string]json.RawMessage `json:"vector"`
			Payload map[string]any             `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/kb/points" {
			if err := json.NewDecoder(r.Body).Decode(&upsert); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, "kb")
	if err := client.IndexChunks(context.Background(), testChunks(), [][]float32{{0.1}, {0.2}}); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if len(upsert.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(upsert.Points))
	}
	p := upsert.Points[0]
	if p.ID != PointID("kb/vpn.md#0") {
		t.Fatalf("expected deterministic point id, got %s", p.ID)
	}
	if _, ok := p.Vector[denseVectorName]; !ok {
		t.Fatalf("expected dense vector")
	}
	if _, ok := p.Vector[sparseVectorName]; !ok {
		t.Fatalf("expected sparse vector")
	}
	if p.Payload["chunk_id"] != "kb/vpn.md#0" || p.Payload["source_key"] != "kb/vpn.md" || p.Payload["topic"] != "vpn" {
		t.Fatalf("unexpected payload %+v", p.Payload)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/kb" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "kb")
	err := client.IndexChunks(context.Background(), testChunks()[:1], [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestSearchMapsScoresToDistances(t *testing.T) {
	var requested map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&requested)
		_, _ = w.Write([]byte(`{"result":[{"score":0.9,"payload":{"chunk_id":"c1","text":"reset steps","source":"zobot"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "kb")
	out, err := client.Search(context.Background(), []float32{0.1}, 4)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != "c1" || out[0].Text != "reset steps" {
		t.Fatalf("unexpected candidates %+v", out)
	}
	if d := out[0].Distance; d < 0.099 || d > 0.101 {
		t.Fatalf("expected distance 0.1, got %f", d)
	}
	if out[0].MetaString(domain.MetaSource) != "zobot" {
		t.Fatalf("expected metadata from payload")
	}
	if _, ok := out[0].Metadata["text"]; ok {
		t.Fatalf("text must not be duplicated in metadata")
	}
	vector, _ := requested["vector"].(map[string]any)
	if vector["name"] != denseVectorName || requested["limit"] != float64(4) {
		t.Fatalf("unexpected search request %+v", requested)
	}
}

func TestSearchLexicalUsesSparseVector(t *testing.T) {
	var requested map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&requested)
		_, _ = w.Write([]byte(`{"result":[{"score":3,"payload":{"chunk_id":"c2","text":"vpn"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "kb")
	out, err := client.SearchLexical(context.Background(), "vpn disconnects", 5)
	if err != nil {
		t.Fatalf("SearchLexical() error = %v", err)
	}
	if len(out) != 1 || out[0].LexicalScore != 3 || out[0].Distance != domain.LexicalOnlyDistance {
		t.Fatalf("expected raw score without vector distance, got %+v", out)
	}
	vector, _ := requested["vector"].(map[string]any)
	if vector["name"] != sparseVectorName {
		t.Fatalf("expected sparse search, got %+v", requested)
	}
}

func TestSearchLexicalSkipsEmptyQuery(t *testing.T) {
	client := New("http://127.0.0.1:0", "kb")
	out, err := client.SearchLexical(context.Background(), "!!!", 5)
	if err != nil || out != nil {
		t.Fatalf("expected no request for empty sparse query, got %v %v", out, err)
	}
}

func TestDeleteBySourceFiltersAndIgnoresMissingCollection(t *testing.T) {
	var body atomic.Value
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/kb/points/delete" {
			http.NotFound(w, r)
			return
		}
		raw := new(strings.Builder)
		_, _ = io.Copy(raw, r.Body)
		body.Store(raw.String())
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	client := New(server.URL, "kb")
	if err := client.DeleteBySource(context.Background(), "kb/vpn.md"); err != nil {
		t.Fatalf("DeleteBySource() error = %v", err)
	}
	got, _ := body.Load().(string)
	if !strings.Contains(got, `"source_key"`) || !strings.Contains(got, `"kb/vpn.md"`) {
		t.Fatalf("expected source filter, got %s", got)
	}

	status.Store(http.StatusNotFound)
	if err := client.DeleteBySource(context.Background(), "kb/vpn.md"); err != nil {
		t.Fatalf("expected missing collection to be ignored, got %v", err)
	}
}

func TestPointIDIsStable(t *testing.T) {
	if PointID("a#0") != PointID("a#0") || PointID("a#0") == PointID("a#1") {
		t.Fatalf("expected stable distinct point ids")
	}
}
