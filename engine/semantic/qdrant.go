package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/inceptlabs/inception-engine/pkg/fn"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsAPI is the slice of pb.PointsClient this backend uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient this backend uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Qdrant is an Index backed by an external Qdrant instance. It trades the
// in-memory backend's strict rank determinism for horizontal scale; the
// snapshot-consistency contract is delegated to Qdrant's wait-on-write mode.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// NewQdrant connects to Qdrant at the given gRPC address.
func NewQdrant(addr, collection string) (*Qdrant, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Qdrant{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewQdrantWithClients wires pre-built clients; used by tests.
func NewQdrantWithClients(points pointsAPI, collections collectionsAPI, collection string) *Qdrant {
	return &Qdrant{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// EnsureCollection creates the cosine-distance collection if missing.
func (q *Qdrant) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
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
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert stores passage vectors with doc ownership in the payload.
func (q *Qdrant) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := fn.Map(records, func(r Record) *pb.PointStruct {
		return &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.PassageID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"doc_id": {Kind: &pb.Value_StringValue{StringValue: r.DocumentID}},
			},
		}
	})

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// RemoveDocument deletes all passages belonging to the document.
func (q *Qdrant) RemoveDocument(ctx context.Context, docID string) error {
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key: "doc_id",
									Match: &pb.Match{
										MatchValue: &pb.Match_Keyword{Keyword: docID},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: remove document %s: %w", docID, err)
	}
	return nil
}

// RemovePassages deletes the listed passage points by id.
func (q *Qdrant) RemovePassages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: fn.Map(ids, func(id string) *pb.PointId {
						return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
					}),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: remove %d passages: %w", len(ids), err)
	}
	return nil
}

// Search performs k-NN similarity search.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = Hit{
			PassageID: r.GetId().GetUuid(),
			Score:     float64(r.GetScore()),
		}
	}
	return hits, nil
}
