// Package vectorstore indexes chunk embeddings for nearest-neighbor
// retrieval. Two backends exist: Qdrant for on-prem deployments and an
// Elasticsearch/OpenSearch-compatible kNN index for managed ones.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medlit-tools/semsearch/internal/config"
	"github.com/medlit-tools/semsearch/internal/models"
)

// Point is one chunk vector plus its payload, keyed by an opaque id.
type Point struct {
	ID      string
	Vector  []float32
	Payload models.ChunkPayload
}

// Hit is a raw nearest-neighbor match.
type Hit struct {
	ID      string
	Score   float32
	Payload models.ChunkPayload
}

// Stats summarizes the collection.
type Stats struct {
	Backend   string `json:"backend"`
	Points    int64  `json:"points"`
	Dimension int    `json:"dimension"`
}

// Store is the vector index shared by the worker, API, and retention loop.
// Upsert offers no transactional guarantee: a partial failure leaves the
// points written so far in place.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]Hit, error)
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Health(ctx context.Context) error
	Close() error
}

// New builds the configured backend.
func New(cfg config.Common, log *slog.Logger) (Store, error) {
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		return NewQdrant(cfg.QdrantAddr, cfg.Collection, cfg.EmbedDim, log)
	case config.BackendElastic:
		return NewElastic(cfg.ElasticAddr, cfg.Collection, cfg.EmbedDim, log)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
