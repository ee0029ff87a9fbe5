package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/evidence"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

var (
	_ evidence.Store  = (*VectorStore)(nil)
	_ evidence.Lookup = (*VectorStore)(nil)
)

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a VectorStore on pre-built clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores one bulletin. Called by engine/ingest.
func (v *VectorStore) Upsert(ctx context.Context, doc domain.EvidenceDocument) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("semantic: %w: %s", evidence.ErrNoEmbedding, doc.ID)
	}
	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pb.NewIDUUID(PointID(doc.ID)),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: doc.Embedding},
				},
			},
			Payload: toPayload(doc),
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %s: %w", doc.ID, err)
	}
	return nil
}

// Exists reports whether a bulletin with docID has been stored.
func (v *VectorStore) Exists(ctx context.Context, docID string) (bool, error) {
	resp, err := v.points.Get(ctx, &pb.GetPoints{
		CollectionName: v.collection,
		Ids:            []*pb.PointId{pb.NewIDUUID(PointID(docID))},
		WithPayload:    pb.NewWithPayload(false),
	})
	if err != nil {
		return false, fmt.Errorf("semantic: get %s: %w", docID, err)
	}
	return len(resp.GetResult()) > 0, nil
}

// Query performs k-NN similarity search restricted by f.
func (v *VectorStore) Query(ctx context.Context, vec []float32, k int, f *evidence.Filter) ([]domain.EvidenceMatch, error) {
	if k <= 0 {
		k = 5
	}
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         buildFilter(f),
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	out := make([]domain.EvidenceMatch, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		doc := fromPayload(r.GetPayload())
		if doc.ID == "" {
			continue
		}
		out = append(out, domain.EvidenceMatch{Document: doc, Score: r.GetScore()})
	}
	return out, nil
}

// buildFilter translates f into Qdrant conditions. A zero year bound in
// the payload is open-ended.
func buildFilter(f *evidence.Filter) *pb.Filter {
	if f.Empty() {
		return nil
	}
	var must []*pb.Condition
	if m := strings.TrimSpace(f.Make); m != "" {
		must = append(must, fieldMatch(keyMake, makeKey(m)))
	}
	if f.Year > 0 {
		y := float64(f.Year)
		must = append(must,
			anyOf(fieldRange(keyYearMin, &pb.Range{Lte: &y}), fieldInt(keyYearMin, 0)),
			anyOf(fieldRange(keyYearMax, &pb.Range{Gte: &y}), fieldInt(keyYearMax, 0)),
		)
	}
	return &pb.Filter{Must: must}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func fieldInt(key string, value int64) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Integer{Integer: value}},
			},
		},
	}
}

func fieldRange(key string, r *pb.Range) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{Key: key, Range: r},
		},
	}
}

func anyOf(conds ...*pb.Condition) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Filter{Filter: &pb.Filter{Should: conds}},
	}
}
