// Package ingestion implements the knowledge base ingestion pipeline.
// It loads plain-text documents from a directory, splits each into
// overlapping chunks, embeds the chunks in document mode, and rebuilds
// the vector index wholesale. This pipeline is invoked by the
// `habitloop ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks of the same document. Zero means no overlap; a value at or
	// above ChunkSize is rejected.
	ChunkOverlap int

	// BatchSize is the maximum number of chunks embedded per request.
	// Defaults to 100 if zero.
	BatchSize int
}

// Result summarizes a completed ingestion run.
type Result struct {
	// Documents is the number of source files processed.
	Documents int

	// Chunks is the total number of chunks embedded and indexed.
	Chunks int
}

// Pipeline orchestrates the load, split, embed, and index flow for a
// directory of knowledge base documents.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// builder receives the embedded chunks and commits the new index.
	builder rag.IndexBuilder

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, builder rag.IndexBuilder, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if builder == nil {
		return nil, fmt.Errorf("ingestion: builder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("ingestion: chunk overlap %d must be in [0, %d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &Pipeline{
		embedder: embedder,
		builder:  builder,
		cfg:      cfg,
	}, nil
}

// Ingest rebuilds the index from every .txt file under sourceDir.
// Files are processed in sorted name order so repeated runs over the same
// corpus produce identical indexes. An empty corpus is not an error: the
// run completes with a zero Result and the index is left untouched.
func (p *Pipeline) Ingest(ctx context.Context, sourceDir string) (*Result, error) {
	log := logging.FromContext(ctx)

	files, err := listTextFiles(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: listing %s: %w", sourceDir, err)
	}
	if len(files) == 0 {
		log.Warn("no .txt documents found, index unchanged", slog.String("dir", sourceDir))
		return &Result{}, nil
	}

	if err := p.builder.Reset(ctx); err != nil {
		return nil, fmt.Errorf("ingestion: resetting index: %w", err)
	}

	result := &Result{}
	for _, path := range files {
		n, err := p.ingestFile(ctx, path)
		if err != nil {
			return nil, err
		}
		log.Info("ingested document",
			slog.String("file", filepath.Base(path)),
			slog.Int("chunks", n))
		result.Documents++
		result.Chunks += n
	}

	if err := p.builder.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ingestion: committing index: %w", err)
	}

	return result, nil
}

// ingestFile splits, embeds, and indexes one source file, returning the
// number of chunks produced.
func (p *Pipeline) ingestFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("ingestion: reading %s: %w", path, err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, nil
	}

	texts, err := Split(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("ingestion: splitting %s: %w", path, err)
	}

	sourceID := filepath.Base(path)
	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		embeddings, err := p.embedder.EmbedDocuments(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("ingestion: embedding %s: %w", path, err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("ingestion: embedding %s: got %d vectors for %d chunks", path, len(embeddings), len(batch))
		}

		chunks := make([]rag.Chunk, len(batch))
		for i, t := range batch {
			chunks[i] = rag.Chunk{
				SourceID: sourceID,
				Sequence: start + i,
				Text:     t,
			}
		}

		if err := p.builder.Add(ctx, chunks, embeddings); err != nil {
			return 0, fmt.Errorf("ingestion: indexing %s: %w", path, err)
		}
	}

	return len(texts), nil
}

// listTextFiles returns the .txt files directly under dir, sorted by name.
func listTextFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
