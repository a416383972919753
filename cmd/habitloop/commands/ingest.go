package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/habitloop/habitloop/internal/embedder"
	"github.com/habitloop/habitloop/internal/ingestion"
	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/rag"
)

// NewIngestCmd constructs the `habitloop ingest` command, which runs the
// knowledge base ingestion pipeline and atomically replaces the vector index.
func NewIngestCmd() *cobra.Command {
	var dir string
	var chunkSize int
	var chunkOverlap int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest the expert knowledge base into the vector index",
		Long: `Load *.txt files from the knowledge directory, split them into
overlapping chunks, embed each chunk in document mode, and atomically
replace the vector index.

The coach retrieves from this index when answering questions. Re-run
ingest after editing the knowledge files, then restart the server.

Environment variables:
  INDEX_BACKEND        local (default) or qdrant
  INDEX_DIR            Local index directory (default: ~/.habitloop/index)
  QDRANT_*             Qdrant connection settings when INDEX_BACKEND=qdrant
  EMBEDDING_PROVIDER   Embedding backend: gemini, ollama, openai, azure
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  habitloop ingest
  habitloop ingest --dir ./knowledge_base --chunk-size 800 --chunk-overlap 80`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("backend", embedder.Backend()))

			var builder rag.IndexBuilder
			switch backend := getEnvOrDefault("INDEX_BACKEND", "local"); backend {
			case "local":
				indexDir, err := resolveIndexDir()
				if err != nil {
					return fmt.Errorf("ingest: resolve index dir: %w", err)
				}
				builder = rag.NewLocalIndexBuilder(indexDir)
				log.Info("local index target", slog.String("dir", indexDir))

			case "qdrant":
				dims := embedder.DefaultDimensions(embedder.Backend())
				idx, err := rag.NewQdrantIndex(ctx, qdrantConfigFromEnv(dims))
				if err != nil {
					return fmt.Errorf("ingest: failed to connect to Qdrant: %w", err)
				}
				builder = idx
				log.Info("qdrant index target",
					slog.String("host", getEnvOrDefault("QDRANT_HOST", "localhost")),
				)

			default:
				return fmt.Errorf("ingest: unknown INDEX_BACKEND %q (want local or qdrant)", backend)
			}

			pipeline, err := ingestion.NewPipeline(emb, builder, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: chunkOverlap,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			result, err := pipeline.Ingest(ctx, dir)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("documents", result.Documents),
				slog.Int("chunks", result.Chunks),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "knowledge_base", "Directory containing *.txt knowledge files")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "Maximum chunk size in characters")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 100, "Overlap between adjacent chunks in characters")

	return cmd
}
