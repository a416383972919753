// Package rag defines the interfaces for the retrieval-augmented generation
// pipeline: text embedding, vector indexing, and semantic retrieval.
// Concrete implementations (local directory index, Qdrant, Gemini/Ollama
// embedders) satisfy these interfaces so the chatbot layer never depends on
// a specific backend.
package rag

import (
	"context"
)

// Chunk is a bounded contiguous slice of source text prepared for embedding,
// or returned from a similarity search.
type Chunk struct {
	// SourceID identifies the document this chunk was cut from
	// (the file name, for directory-based ingestion).
	SourceID string

	// Sequence is the zero-based position of this chunk within its source.
	Sequence int

	// Text is the raw chunk content.
	Text string

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// TaskType selects the embedding mode. Document and query embeddings are
// asymmetric on some providers (notably Gemini), and mixing the modes
// degrades retrieval quality — the adapter must route each call to the
// correct mode, never silently swap them.
type TaskType int

const (
	// TaskDocument embeds corpus text at ingestion time.
	TaskDocument TaskType = iota
	// TaskQuery embeds a user query at retrieval time.
	TaskQuery
)

// String returns the task type label used in logs and provider requests.
func (t TaskType) String() string {
	if t == TaskQuery {
		return "query"
	}
	return "document"
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines, must
// preserve input order 1:1, and must fail rather than return a partial
// result when the provider's count does not match the input count.
type Embedder interface {
	// EmbedDocuments embeds a batch of corpus texts in document mode.
	// The returned slice is parallel to the input slice.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string in query mode.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the read side of the vector store: top-k similarity search
// over chunk embeddings. The index is read-only on the request path; only
// the ingestion pipeline rebuilds it. Implementations must be safe for
// concurrent reads and must return a stable ordering for a fixed index
// state and query vector (ties broken by insertion order).
type VectorIndex interface {
	// Search returns the topK chunks most similar to queryEmbedding,
	// ranked by descending similarity. If fewer than topK entries exist,
	// all of them are returned.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Chunk, error)

	// Count returns the number of entries in the index.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the index.
	Close() error
}

// IndexBuilder is the write side of the vector store, used only by the
// ingestion pipeline. A rebuild is Reset → Add (repeated) → Commit; an
// aborted rebuild must never leave a partially-written index marked usable.
type IndexBuilder interface {
	// Reset discards any staged or existing entries so the next Commit
	// replaces the index wholesale.
	Reset(ctx context.Context) error

	// Add stages a batch of chunks with their pre-computed embeddings.
	// embeddings[i] is the vector for chunks[i].
	Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Commit makes the staged entries the new index content.
	Commit(ctx context.Context) error
}

// Retriever is the high-level interface the chatbot uses to fetch relevant
// knowledge for a query. It combines query-mode embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the topK most relevant chunks for the query text.
	Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error)
}
