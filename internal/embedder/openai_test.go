package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEmbedderReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		// Answer out of order to exercise the index-based reassembly.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0.2],"index":1},
			{"embedding":[0.1],"index":0}
		]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
	})

	vecs, err := emb.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedDocuments returned error: %v", err)
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.2 {
		t.Errorf("embeddings not reordered by index: %v", vecs)
	}
}

func TestOpenAIEmbedderQueryMatchesDocumentMode(t *testing.T) {
	t.Parallel()

	var bodies []openaiEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		bodies = append(bodies, req)

		resp := openaiEmbedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{1}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})

	if _, err := emb.EmbedDocuments(context.Background(), []string{"text"}); err != nil {
		t.Fatalf("EmbedDocuments returned error: %v", err)
	}
	if _, err := emb.EmbedQuery(context.Background(), "text"); err != nil {
		t.Fatalf("EmbedQuery returned error: %v", err)
	}

	// The OpenAI API is symmetric: both modes must send the identical input.
	if len(bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bodies))
	}
	if bodies[0].Input[0] != bodies[1].Input[0] {
		t.Errorf("document and query inputs differ: %q vs %q", bodies[0].Input[0], bodies[1].Input[0])
	}
}

func TestOpenAIEmbedderAzureURL(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5],"index":0}]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "azure-key",
		Model:      "deploy-embed",
		Azure:      true,
		APIVersion: "2025-04-01-preview",
	})

	if _, err := emb.EmbedQuery(context.Background(), "q"); err != nil {
		t.Fatalf("EmbedQuery returned error: %v", err)
	}
	want := "/deployments/deploy-embed/embeddings?api-version=2025-04-01-preview"
	if gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
	if gotKey != "azure-key" {
		t.Errorf("api-key header = %q", gotKey)
	}
}
