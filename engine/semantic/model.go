// Package semantic provides the embedding index: nearest-neighbour search
// over passage vectors by cosine similarity. The in-memory snapshot index is
// the default backend; a Qdrant-backed store is available for deployments
// with an external vector database.
package semantic

import "context"

// Record is one passage vector to index.
type Record struct {
	PassageID  string
	DocumentID string
	Vector     []float32
}

// Hit is a single search result.
type Hit struct {
	PassageID string
	Score     float64 // cosine similarity in [-1, 1]
}

// Index is the vector-index contract shared by backends. Upsert replaces
// any existing vector with the same passage id. The writer operations must
// be serialized by the caller; Search may run concurrently with writers and
// observes either the pre- or post-write state, never a torn mix.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	RemoveDocument(ctx context.Context, docID string) error
	RemovePassages(ctx context.Context, ids []string) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
