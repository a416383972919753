package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// manifestName is the file inside an index directory that marks the index as
// complete. A directory without a manifest is treated as absent — an aborted
// rebuild therefore never yields a loadable index.
const manifestName = "manifest.json"

// entriesName is the JSON-lines file holding the (chunk, vector) entries in
// insertion order.
const entriesName = "entries.jsonl"

// manifest describes a committed local index.
type manifest struct {
	// Dimension is the embedding vector size shared by every entry.
	Dimension int `json:"dimension"`
	// Metric is the similarity metric the index was built for.
	// Always "cosine" in this version.
	Metric string `json:"metric"`
	// Count is the number of entries in the index.
	Count int `json:"count"`
}

// indexEntry is the on-disk representation of one (chunk, vector) pair.
// Vectors are normalized to unit length at insert so cosine similarity
// reduces to a dot product at query time.
type indexEntry struct {
	SourceID string    `json:"source_id"`
	Sequence int       `json:"sequence"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector"`
}

// LocalIndex is a VectorIndex and IndexBuilder persisted as a directory of
// flat files. The whole index is held in memory; Search is a linear scan,
// which is appropriate for the small fixed knowledge bases this system
// indexes. Reads are safe for concurrent use once loaded; the builder side
// must only be used by the offline ingestion pipeline.
type LocalIndex struct {
	// dir is the index directory on durable storage.
	dir string

	// entries holds the loaded or staged entries in insertion order.
	entries []indexEntry

	// dimension is the vector size, fixed by the first staged/loaded entry.
	dimension int
}

// IndexExists reports whether dir contains a committed index (a manifest
// written by a completed ingestion run).
func IndexExists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, manifestName))
	return err == nil && !info.IsDir()
}

// OpenLocalIndex loads a committed index from dir into memory.
// Returns an error if the directory does not contain a complete index.
func OpenLocalIndex(dir string) (*LocalIndex, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("localindex: no index at %s: %w", dir, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("localindex: corrupt manifest in %s: %w", dir, err)
	}

	f, err := os.Open(filepath.Join(dir, entriesName))
	if err != nil {
		return nil, fmt.Errorf("localindex: open entries in %s: %w", dir, err)
	}
	defer f.Close()

	idx := &LocalIndex{dir: dir, dimension: m.Dimension}

	scanner := bufio.NewScanner(f)
	// Chunk texts can exceed the default 64 KiB scanner buffer.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e indexEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("localindex: corrupt entry in %s: %w", dir, err)
		}
		if len(e.Vector) != m.Dimension {
			return nil, fmt.Errorf("localindex: entry dimension %d does not match manifest %d", len(e.Vector), m.Dimension)
		}
		idx.entries = append(idx.entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("localindex: read entries in %s: %w", dir, err)
	}
	if len(idx.entries) != m.Count {
		return nil, fmt.Errorf("localindex: entry count %d does not match manifest %d", len(idx.entries), m.Count)
	}

	return idx, nil
}

// NewLocalIndexBuilder returns an empty LocalIndex that stages entries in
// memory and writes them to dir on Commit.
func NewLocalIndexBuilder(dir string) *LocalIndex {
	return &LocalIndex{dir: dir}
}

// Reset discards all staged entries.
func (l *LocalIndex) Reset(_ context.Context) error {
	l.entries = nil
	l.dimension = 0
	return nil
}

// Add stages a batch of chunks with their embeddings. Vectors are normalized
// here so Search can rank by plain dot product.
func (l *LocalIndex) Add(_ context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("localindex: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	for i, c := range chunks {
		vec := embeddings[i]
		if l.dimension == 0 {
			l.dimension = len(vec)
		}
		if len(vec) != l.dimension {
			return fmt.Errorf("localindex: embedding %d has dimension %d, want %d", i, len(vec), l.dimension)
		}
		l.entries = append(l.entries, indexEntry{
			SourceID: c.SourceID,
			Sequence: c.Sequence,
			Text:     c.Text,
			Vector:   normalize(vec),
		})
	}
	return nil
}

// Commit writes the staged entries to a temporary directory, then atomically
// replaces any existing index at dir. The manifest is written last inside
// the temporary directory, so a crash mid-write can never produce a
// directory that IndexExists accepts.
func (l *LocalIndex) Commit(_ context.Context) error {
	parent := filepath.Dir(l.dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("localindex: create parent dir: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, filepath.Base(l.dir)+".rebuild-*")
	if err != nil {
		return fmt.Errorf("localindex: create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	f, err := os.Create(filepath.Join(tmp, entriesName))
	if err != nil {
		return fmt.Errorf("localindex: create entries file: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range l.entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return fmt.Errorf("localindex: write entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("localindex: flush entries: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("localindex: close entries: %w", err)
	}

	m := manifest{Dimension: l.dimension, Metric: "cosine", Count: len(l.entries)}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("localindex: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("localindex: write manifest: %w", err)
	}

	// Replace wholesale: remove the old index then move the new one in.
	if err := os.RemoveAll(l.dir); err != nil {
		return fmt.Errorf("localindex: remove old index: %w", err)
	}
	if err := os.Rename(tmp, l.dir); err != nil {
		return fmt.Errorf("localindex: install new index: %w", err)
	}
	return nil
}

// scored pairs an entry index with its similarity to the query vector.
type scored struct {
	pos   int
	score float32
}

// Search returns the topK entries most similar to queryEmbedding under the
// cosine metric, ranked descending. Ordering is deterministic: equal scores
// are broken by insertion order.
func (l *LocalIndex) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Chunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("localindex: topK must be positive, got %d", topK)
	}
	if len(l.entries) > 0 && len(queryEmbedding) != l.dimension {
		return nil, fmt.Errorf("localindex: query dimension %d does not match index dimension %d", len(queryEmbedding), l.dimension)
	}

	q := normalize(queryEmbedding)
	ranked := make([]scored, 0, len(l.entries))
	for i, e := range l.entries {
		ranked = append(ranked, scored{pos: i, score: dot(q, e.Vector)})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].pos < ranked[b].pos
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}

	chunks := make([]Chunk, 0, topK)
	for _, r := range ranked[:topK] {
		e := l.entries[r.pos]
		chunks = append(chunks, Chunk{
			SourceID: e.SourceID,
			Sequence: e.Sequence,
			Text:     e.Text,
			Score:    r.score,
		})
	}
	return chunks, nil
}

// Count returns the number of entries in the index.
func (l *LocalIndex) Count(_ context.Context) (int, error) {
	return len(l.entries), nil
}

// Close is a no-op for the in-memory local index.
func (l *LocalIndex) Close() error { return nil }

// normalize returns v scaled to unit length. A zero vector is returned as-is.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// dot returns the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
