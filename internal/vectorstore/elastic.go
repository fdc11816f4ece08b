package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/medlit-tools/semsearch/internal/models"
)

// Elastic stores chunk vectors in a dense_vector kNN index. It also works
// against OpenSearch-compatible endpoints exposing the same API surface.
type Elastic struct {
	es    *elasticsearch.Client
	index string
	dim   int
	log   *slog.Logger
}

type elasticDoc struct {
	models.ChunkPayload
	Embedding []float32 `json:"embedding"`
}

// NewElastic instantiates the Elasticsearch-backed store.
func NewElastic(addr, index string, dim int, log *slog.Logger) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Elastic{es: es, index: index, dim: dim, log: log}, nil
}

// EnsureCollection creates the chunk index with a dense_vector mapping when
// it does not exist yet.
func (c *Elastic) EnsureCollection(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"text":        map[string]any{"type": "text"},
				"title":       map[string]any{"type": "text"},
				"doi":         map[string]any{"type": "keyword"},
				"year":        map[string]any{"type": "integer"},
				"journal":     map[string]any{"type": "keyword"},
				"source":      map[string]any{"type": "keyword"},
				"chunk_index": map[string]any{"type": "integer"},
				"chunk_count": map[string]any{"type": "integer"},
				"ingested_at": map[string]any{"type": "date", "format": "epoch_second"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       c.dim,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}

	payload, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	createRes, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("created chunk index", slog.String("index", c.index), slog.Int("dim", c.dim))
	return nil
}

// Upsert writes chunk points one document at a time; a mid-batch failure
// leaves earlier documents indexed.
func (c *Elastic) Upsert(ctx context.Context, points []Point) error {
	for _, p := range points {
		if len(p.Vector) != c.dim {
			return fmt.Errorf("point %s: vector dimension %d does not match index %d", p.ID, len(p.Vector), c.dim)
		}

		payload, err := json.Marshal(elasticDoc{ChunkPayload: p.Payload, Embedding: p.Vector})
		if err != nil {
			return fmt.Errorf("marshal point %s: %w", p.ID, err)
		}

		req := esapi.IndexRequest{
			Index:      c.index,
			DocumentID: p.ID,
			Body:       bytes.NewReader(payload),
			Refresh:    "false",
		}

		res, err := req.Do(ctx, c.es)
		if err != nil {
			return fmt.Errorf("index point %s: %w", p.ID, err)
		}

		if res.IsError() {
			body, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return fmt.Errorf("index point %s failed: %s", p.ID, strings.TrimSpace(string(body)))
		}
		res.Body.Close()
	}

	return nil
}

// Search runs a kNN query and returns hits scoring above threshold.
func (c *Elastic) Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]Hit, error) {
	if len(vector) != c.dim {
		return nil, fmt.Errorf("query vector dimension %d does not match index %d", len(vector), c.dim)
	}
	if limit <= 0 {
		limit = 10
	}

	body := map[string]any{
		"size": limit,
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              limit,
			"num_candidates": limit * 10,
		},
		"_source": map[string]any{
			"excludes": []string{"embedding"},
		},
	}
	if threshold > 0 {
		body["min_score"] = threshold
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string              `json:"_id"`
				Score  float32             `json:"_score"`
				Source models.ChunkPayload `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: hit.ID, Score: hit.Score, Payload: hit.Source})
	}

	return hits, nil
}

// DeleteOlderThan removes chunks whose ingested_at predates the cutoff using
// delete-by-query. batchSize bounds the internal scroll batches.
func (c *Elastic) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).Unix()

	body := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"ingested_at": map[string]any{"lt": cutoff},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal delete body: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(payload),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithWaitForCompletion(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
		c.es.DeleteByQuery.WithScrollSize(batchSize),
	)
	if err != nil {
		return 0, fmt.Errorf("delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}

	return parsed.Deleted, nil
}

// Stats reports the index document count.
func (c *Elastic) Stats(ctx context.Context) (Stats, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(c.index),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("count: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return Stats{}, fmt.Errorf("count failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Stats{}, fmt.Errorf("decode count response: %w", err)
	}

	return Stats{Backend: "elastic", Points: parsed.Count, Dimension: c.dim}, nil
}

// Health pings the cluster.
func (c *Elastic) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// Close is a no-op; the HTTP transport needs no teardown.
func (c *Elastic) Close() error {
	return nil
}
