// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. Every implementation keeps
// document and query embedding separate: knowledge base chunks and user
// questions must be embedded in their respective modes or retrieval quality
// degrades silently.
package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/habitloop/habitloop/internal/rag"
)

// geminiTask maps an embedding mode to the Gemini API task type. The API
// produces different vectors for the same text depending on the task, which
// is what makes asymmetric retrieval work: corpus chunks are embedded as
// documents, questions as queries.
func geminiTask(task rag.TaskType) string {
	if task == rag.TaskQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}

// GeminiEmbedder implements rag.Embedder using the Gemini embedding API.
// It is safe for concurrent use.
type GeminiEmbedder struct {
	// client is the shared Gemini API client.
	client *genai.Client

	// model is the embedding model name (e.g. "text-embedding-004").
	model string

	// dimensions is the requested output vector length (0 = model default).
	dimensions int32
}

// GeminiConfig holds the settings for constructing a GeminiEmbedder.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string

	// Model is the embedding model name (e.g. "text-embedding-004").
	Model string

	// Dimensions is the requested output vector length (0 = model default).
	Dimensions int
}

// NewGeminiEmbedder constructs a GeminiEmbedder from the given config.
func NewGeminiEmbedder(ctx context.Context, cfg *GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: creating client: %w", err)
	}
	return &GeminiEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: int32(cfg.Dimensions),
	}, nil
}

// EmbedDocuments embeds a batch of knowledge base chunks in document mode.
// The returned slice is parallel to the input slice.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, rag.TaskDocument)
}

// EmbedQuery embeds a single user question in query mode.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, rag.TaskQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, task rag.TaskType) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{TaskType: geminiTask(task)}
	if e.dimensions > 0 {
		dim := e.dimensions
		cfg.OutputDimensionality = &dim
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: embed request (%s): %w", task, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedder: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini embedder: empty embedding at index %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
