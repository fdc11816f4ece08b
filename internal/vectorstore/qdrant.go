package vectorstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Payload field names inside the Qdrant collection.
const (
	fieldText       = "text"
	fieldTitle      = "title"
	fieldDOI        = "doi"
	fieldYear       = "year"
	fieldJournal    = "journal"
	fieldSource     = "source"
	fieldChunkIndex = "chunk_index"
	fieldChunkCount = "chunk_count"
	fieldIngestedAt = "ingested_at"
)

// Qdrant stores chunk vectors in a Qdrant collection over gRPC.
type Qdrant struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string
	dim         int
	log         *slog.Logger
}

// NewQdrant connects to a Qdrant gRPC endpoint.
func NewQdrant(addr, collection string, dim int, log *slog.Logger) (*Qdrant, error) {
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Qdrant{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		collection:  collection,
		dim:         dim,
		log:         log,
	}, nil
}

// EnsureCollection creates the collection with a cosine-distance vector
// config when it does not exist yet.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	for _, col := range list.GetCollections() {
		if col.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.dim),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}

	q.log.Info("created qdrant collection",
		slog.String("collection", q.collection),
		slog.Int("dim", q.dim),
	)
	return nil
}

// Upsert writes chunk points into the collection.
func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != q.dim {
			return fmt.Errorf("point %s: vector dimension %d does not match collection %d", p.ID, len(p.Vector), q.dim)
		}

		structs = append(structs, &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: p.Vector},
				},
			},
			Payload: encodePayload(p.Payload),
		})
	}

	wait := true
	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(structs), err)
	}

	return nil
}

// Search returns up to limit nearest neighbors scoring above threshold.
func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]Hit, error) {
	if len(vector) != q.dim {
		return nil, fmt.Errorf("query vector dimension %d does not match collection %d", len(vector), q.dim)
	}
	if limit <= 0 {
		limit = 10
	}

	req := &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		hits = append(hits, Hit{
			ID:      scored.GetId().GetUuid(),
			Score:   scored.GetScore(),
			Payload: decodePayload(scored.GetPayload()),
		})
	}

	return hits, nil
}

// DeleteOlderThan removes points whose ingested_at predates the cutoff and
// returns how many were matched. Filter deletes run server-side in one
// operation, so batchSize is ignored here.
func (q *Qdrant) DeleteOlderThan(ctx context.Context, maxAge time.Duration, _ int) (int64, error) {
	cutoff := float64(time.Now().Add(-maxAge).Unix())
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   fieldIngestedAt,
						Range: &qdrant.Range{Lt: &cutoff},
					},
				},
			},
		},
	}

	exact := true
	count, err := q.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("count stale points: %w", err)
	}

	matched := int64(count.GetResult().GetCount())
	if matched == 0 {
		return 0, nil
	}

	wait := true
	_, err = q.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("delete stale points: %w", err)
	}

	return matched, nil
}

// Stats reports the collection point count.
func (q *Qdrant) Stats(ctx context.Context) (Stats, error) {
	info, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collection,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("collection info: %w", err)
	}

	return Stats{
		Backend:   "qdrant",
		Points:    int64(info.GetResult().GetPointsCount()),
		Dimension: q.dim,
	}, nil
}

// Health verifies the collection is reachable.
func (q *Qdrant) Health(ctx context.Context) error {
	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collection,
	})
	if err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	return nil
}

// Close tears down the gRPC connection.
func (q *Qdrant) Close() error {
	return q.conn.Close()
}
