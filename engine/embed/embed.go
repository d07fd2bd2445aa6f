// Package embed defines the text-embedding capability consumed by ingestion
// and retrieval, and provides a deterministic local implementation so the
// pipeline runs without network access.
package embed

import "context"

// Embedder converts text into a fixed-dimensionality vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
