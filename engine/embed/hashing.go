package embed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/inceptlabs/inception-engine/pkg/tokens"
)

// DefaultDimensions is the hashing embedder's vector width.
const DefaultDimensions = 256

// Hashing is a deterministic bag-of-words embedder using the hashing trick:
// every token is hashed to a bucket and the resulting count vector is
// L2-normalized. Texts sharing vocabulary get high cosine similarity, which
// is enough signal for the clause pipeline when no model-backed embedder is
// configured, and it makes index rebuilds strictly reproducible.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing embedder; dims <= 0 selects the default.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) Dimensions() int { return h.dims }

// Embed maps text to its normalized token-count vector. Stop words are kept
// so negations ("not covered") shape the vector.
func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range tokens.All(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		vec[f.Sum32()%uint32(h.dims)]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}
