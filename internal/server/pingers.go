package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/habitloop/habitloop/internal/rag"
	"github.com/habitloop/habitloop/internal/store"
)

// StorePinger probes the SQLite store. It satisfies the Pinger interface
// and is used by GET /api/ready.
type StorePinger struct {
	// store is the database to probe.
	store *store.Store
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(st *store.Store) *StorePinger {
	return &StorePinger{store: st}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "store" }

// Ping issues a round trip to the database.
func (p *StorePinger) Ping(_ context.Context) error {
	if err := p.store.Ping(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// IndexPinger probes a vector index by asking for its entry count. A count
// of zero is still healthy: an empty index means nothing has been ingested
// yet, not that retrieval is broken.
type IndexPinger struct {
	// index is the vector index to probe.
	index rag.VectorIndex
	// name identifies the backend in readiness responses (e.g. "index").
	name string
}

// NewIndexPinger constructs an IndexPinger for the given index and label.
func NewIndexPinger(index rag.VectorIndex, name string) *IndexPinger {
	return &IndexPinger{index: index, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return p.name }

// Ping asks the index for its entry count.
func (p *IndexPinger) Ping(ctx context.Context) error {
	if _, err := p.index.Count(ctx); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
