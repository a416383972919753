package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/habitloop/habitloop/internal/auth"
	"github.com/habitloop/habitloop/internal/chatbot"
	"github.com/habitloop/habitloop/internal/embedder"
	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/provider"
	"github.com/habitloop/habitloop/internal/rag"
	"github.com/habitloop/habitloop/internal/server"
	"github.com/habitloop/habitloop/internal/store"
	"github.com/habitloop/habitloop/internal/tracing"
)

// NewServeCmd constructs the `habitloop serve` command, which starts the
// HTTP API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HabitLoop HTTP API server",
		Long: `Start the HabitLoop HTTP server on localhost.

The server exposes user registration and login, habit CRUD, and the
/chatbot endpoints backed by the retrieval-augmented coach. Run
'habitloop ingest' first to populate the knowledge base; without an index
the coach still answers from habit data and conversation history.

Examples:
  habitloop serve
  habitloop serve --port 9090
  MODEL_PROVIDER=ollama habitloop serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			secret := os.Getenv("HABITLOOP_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("serve: HABITLOOP_JWT_SECRET must be set to sign access tokens")
			}
			ttl := time.Duration(getEnvInt("HABITLOOP_TOKEN_TTL_MINUTES", 0)) * time.Minute
			tokens, err := auth.NewTokenIssuer(secret, ttl)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			dbPath := os.Getenv("HABITLOOP_DB")
			if dbPath == "" {
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			}
			st, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("serve: failed to open store: %w", err)
			}
			defer func() { _ = st.Close() }()
			log.Info("store opened", slog.String("path", dbPath))

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("backend", embedder.Backend()))

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			completer, err := provider.NewCompleter(chatModel)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			index, err := openIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			coach, err := chatbot.NewService(completer, emb, index, st, st, chatbot.Config{
				TopK:             getEnvInt("CHATBOT_TOP_K", 0),
				HistoryWindow:    getEnvInt("CHATBOT_HISTORY_WINDOW", 0),
				MaxContextTokens: getEnvInt("CHATBOT_MAX_CONTEXT_TOKENS", 0),
				GenerateTimeout:  time.Duration(getEnvInt("CHATBOT_GENERATE_TIMEOUT", 0)) * time.Second,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise coach: %w", err)
			}

			pingers := []server.Pinger{server.NewStorePinger(st)}
			if index != nil {
				pingers = append(pingers, server.NewIndexPinger(index, "index"))
			}

			srv, err := server.New(st, coach, tokens, &server.Config{
				Host:       host,
				Port:       port,
				Logger:     log,
				Pingers:    pingers,
				RateLimit:  getEnvFloat("HABITLOOP_RATE_LIMIT", 0),
				RateBurst:  getEnvInt("HABITLOOP_RATE_BURST", 0),
				CORSOrigin: os.Getenv("HABITLOOP_CORS_ORIGIN"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// openIndex opens the configured vector index. A missing local index is not
// fatal: the server starts and the coach degrades to memory plus habit data
// until an ingestion run completes.
func openIndex(ctx context.Context, log *slog.Logger) (rag.VectorIndex, error) {
	switch backend := getEnvOrDefault("INDEX_BACKEND", "local"); backend {
	case "local":
		dir, err := resolveIndexDir()
		if err != nil {
			return nil, fmt.Errorf("resolve index dir: %w", err)
		}
		if !rag.IndexExists(dir) {
			log.Warn("no knowledge index found, coach will answer without expert knowledge",
				slog.String("dir", dir),
			)
			return nil, nil
		}
		idx, err := rag.OpenLocalIndex(dir)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		n, _ := idx.Count(ctx)
		log.Info("knowledge index loaded", slog.String("dir", dir), slog.Int("chunks", n))
		return idx, nil

	case "qdrant":
		dims := embedder.DefaultDimensions(embedder.Backend())
		idx, err := rag.NewQdrantIndex(ctx, qdrantConfigFromEnv(dims))
		if err != nil {
			return nil, fmt.Errorf("connect qdrant: %w", err)
		}
		log.Info("qdrant index ready",
			slog.String("host", getEnvOrDefault("QDRANT_HOST", "localhost")),
		)
		return idx, nil

	default:
		return nil, fmt.Errorf("unknown INDEX_BACKEND %q (want local or qdrant)", backend)
	}
}
