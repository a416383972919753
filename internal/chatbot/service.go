// Package chatbot implements the retrieval-augmented query service: it fuses
// recent conversation memory, the user's live habit state, and semantically
// retrieved knowledge base chunks into one bounded prompt, sends it to the
// generation provider, and persists the exchange.
package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/habitloop/habitloop/internal/budget"
	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/provider"
	"github.com/habitloop/habitloop/internal/rag"
	"github.com/habitloop/habitloop/internal/store"
)

// Defaults for the service configuration.
const (
	// DefaultTopK is how many knowledge chunks are retrieved per question.
	DefaultTopK = 3
	// DefaultHistoryWindow is how many chat messages (not exchanges) are
	// injected into the prompt.
	DefaultHistoryWindow = 6
	// DefaultGenerateTimeout bounds a single generation call.
	DefaultGenerateTimeout = 60 * time.Second

	// maxFactHabits caps how many habits are rendered into the prompt.
	maxFactHabits = 50

	// analyzeEmptyReply is returned verbatim, with no generation call, when
	// the user has no habits to analyze.
	analyzeEmptyReply = "You are not tracking any habits yet. Add your first habit and I will be happy to analyze your routine."

	// analyzeInstruction asks the model for a holistic review of the habit list.
	analyzeInstruction = "Review the habits above as a whole. Point out what is " +
		"going well, what is being neglected, and suggest one concrete improvement. " +
		"Keep the answer short and practical."
)

// Config holds the tunable parameters of the query service. Zero values fall
// back to the package defaults.
type Config struct {
	// TopK is how many knowledge chunks are retrieved per question.
	TopK int
	// HistoryWindow is how many recent messages are fetched for the prompt.
	HistoryWindow int
	// MaxContextTokens is the estimated token budget of the whole prompt.
	MaxContextTokens int
	// GenerateTimeout bounds each generation call.
	GenerateTimeout time.Duration
}

// MemoryStore is the slice of the store the service needs for conversation
// history.
type MemoryStore interface {
	AppendExchange(ctx context.Context, userID int64, question, answer string) error
	RecentMessages(ctx context.Context, userID int64, n int) ([]store.Message, error)
}

// HabitSource supplies the user's live habit state, queried fresh per request.
type HabitSource interface {
	HabitsForUser(ctx context.Context, ownerID int64, skip, limit int) ([]store.Habit, error)
}

// Service is the per-request entry point of the RAG pipeline. It is safe for
// concurrent use; all fields are read-only after construction.
type Service struct {
	completer provider.Completer

	// retriever may be nil when no knowledge base has been ingested yet.
	// The service then answers from memory and habit state alone.
	retriever rag.Retriever

	memory MemoryStore
	habits HabitSource
	cfg    Config
}

// NewService constructs a Service. index may be nil; everything else is
// required.
func NewService(completer provider.Completer, embedder rag.Embedder, index rag.VectorIndex, memory MemoryStore, habits HabitSource, cfg Config) (*Service, error) {
	if completer == nil {
		return nil, fmt.Errorf("chatbot: completer must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("chatbot: embedder must not be nil")
	}
	if memory == nil {
		return nil, fmt.Errorf("chatbot: memory store must not be nil")
	}
	if habits == nil {
		return nil, fmt.Errorf("chatbot: habit source must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}

	var retriever rag.Retriever
	if index != nil {
		r, err := rag.NewRetriever(embedder, index, cfg.TopK)
		if err != nil {
			return nil, fmt.Errorf("chatbot: %w", err)
		}
		retriever = r
	}

	return &Service{
		completer: completer,
		retriever: retriever,
		memory:    memory,
		habits:    habits,
		cfg:       cfg,
	}, nil
}

// Ask answers a free-form question for the given user and records the
// exchange in conversation memory. The caller's identity is trusted; query
// validation is the only input check.
func (s *Service) Ask(ctx context.Context, userID int64, query string) (string, error) {
	log := logging.FromContext(ctx)

	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	history, err := s.memory.RecentMessages(ctx, userID, s.cfg.HistoryWindow)
	if err != nil {
		log.Error("chatbot: fetching history failed", slog.Any("error", err))
		return "", ErrStorage
	}

	chunks, err := s.retrieve(ctx, query)
	if err != nil {
		log.Error("chatbot: retrieval failed", slog.Any("error", err))
		return "", ErrUnavailable
	}

	facts, err := s.habitFacts(ctx, userID)
	if err != nil {
		log.Error("chatbot: fetching habits failed", slog.Any("error", err))
		return "", ErrStorage
	}

	history = s.trimHistory(query, history, facts, chunks)
	prompt := Assemble(query, history, facts, chunks)

	reply, err := s.generate(ctx, prompt)
	if err != nil {
		log.Error("chatbot: generation failed", slog.Any("error", err))
		return "", ErrUnavailable
	}

	if err := s.memory.AppendExchange(ctx, userID, query, reply); err != nil {
		log.Error("chatbot: persisting exchange failed", slog.Any("error", err))
		return "", ErrStorage
	}

	log.Info("chatbot: answered question",
		slog.Int64("user_id", userID),
		slog.Int("history_messages", len(history)),
		slog.Int("retrieved_chunks", len(chunks)),
	)
	return reply, nil
}

// Analyze produces a holistic review of the user's habit list. The result is
// not recorded in conversation memory: history pairs a user-authored turn
// with a model turn, and analyze has no user-authored text.
func (s *Service) Analyze(ctx context.Context, userID int64) (string, error) {
	log := logging.FromContext(ctx)

	facts, err := s.habitFacts(ctx, userID)
	if err != nil {
		log.Error("chatbot: fetching habits failed", slog.Any("error", err))
		return "", ErrStorage
	}
	if len(facts) == 0 {
		return analyzeEmptyReply, nil
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(factsHeader)
	b.WriteString("\n")
	for _, f := range facts {
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(analyzeInstruction)

	reply, err := s.generate(ctx, b.String())
	if err != nil {
		log.Error("chatbot: analysis generation failed", slog.Any("error", err))
		return "", ErrUnavailable
	}

	log.Info("chatbot: analyzed habits",
		slog.Int64("user_id", userID),
		slog.Int("habits", len(facts)),
	)
	return reply, nil
}

// retrieve fetches the most relevant knowledge chunks for the query. A nil
// retriever is not an error: retrieval degrades to an empty set so the
// chatbot keeps working before the first ingestion run.
func (s *Service) retrieve(ctx context.Context, query string) ([]rag.Chunk, error) {
	if s.retriever == nil {
		logging.FromContext(ctx).Debug("chatbot: no index loaded, skipping retrieval")
		return nil, nil
	}
	return s.retriever.Retrieve(ctx, query, s.cfg.TopK)
}

// habitFacts renders the user's habits as personalized-facts lines.
// Completion is evaluated against the current UTC day.
func (s *Service) habitFacts(ctx context.Context, userID int64) ([]string, error) {
	habits, err := s.habits.HabitsForUser(ctx, userID, 0, maxFactHabits)
	if err != nil {
		return nil, err
	}
	today := time.Now().UTC()
	facts := make([]string, 0, len(habits))
	for i := range habits {
		h := &habits[i]
		facts = append(facts, HabitFact(h, h.CompletedOn(today)))
	}
	return facts, nil
}

// trimHistory drops the oldest exchanges until the estimated prompt size
// fits the configured budget. The untrimmable sections are estimated first.
func (s *Service) trimHistory(query string, history []store.Message, facts []string, chunks []rag.Chunk) []store.Message {
	fixed := budget.Estimate(persona) + budget.Estimate(instructionSuffix) + budget.Estimate(query)
	for _, f := range facts {
		fixed += budget.Estimate(f)
	}
	for _, c := range chunks {
		fixed += budget.Estimate(c.Text)
	}
	return budget.TrimHistory(fixed, history, s.cfg.MaxContextTokens)
}

// generate runs one bounded completion call.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()
	return s.completer.Complete(gctx, prompt)
}
