package rag

import (
	"context"
	"testing"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder records which embedding mode was requested so tests can assert
// the query/document routing is never swapped.
type fakeEmbedder struct {
	// lastTask is the task type of the most recent call.
	lastTask TaskType
	// vector is returned for every embed call.
	vector []float32
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.lastTask = TaskDocument
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.lastTask = TaskQuery
	return f.vector, nil
}

// ---------------------------------------------------------------------------
// Retriever
// ---------------------------------------------------------------------------

func Test_Retriever_UsesQueryMode(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{1, 0}}
	idx := buildTestIndex(t,
		[]Chunk{{SourceID: "a.txt", Text: "alpha"}, {SourceID: "b.txt", Text: "beta"}},
		[][]float32{{1, 0}, {0, 1}},
	)

	r, err := NewRetriever(emb, idx, 3)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "anything", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if emb.lastTask != TaskQuery {
		t.Errorf("retriever embedded in %s mode, want query mode", emb.lastTask)
	}
	if len(got) != 1 || got[0].SourceID != "a.txt" {
		t.Errorf("unexpected retrieval result: %+v", got)
	}
}

func Test_Retriever_DefaultTopK(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{1, 0}}
	idx := buildTestIndex(t,
		[]Chunk{
			{SourceID: "a", Text: "1"},
			{SourceID: "b", Text: "2"},
			{SourceID: "c", Text: "3"},
		},
		[][]float32{{1, 0}, {0.5, 0.5}, {0, 1}},
	)

	r, err := NewRetriever(emb, idx, 2)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("want defaultTopK=2 results, got %d", len(got))
	}
}

func Test_Retriever_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &LocalIndex{}, 1); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 1); err == nil {
		t.Error("expected error for nil index")
	}
}
