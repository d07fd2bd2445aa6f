package embed

import (
	"context"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot // inputs are unit vectors
}

func TestHashing_Deterministic(t *testing.T) {
	h := NewHashing(0)
	if h.Dimensions() != DefaultDimensions {
		t.Fatalf("dims = %d", h.Dimensions())
	}
	a, err := h.Embed(context.Background(), "knee surgery is covered")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.Embed(context.Background(), "knee surgery is covered")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding is not deterministic")
		}
	}
}

func TestHashing_SimilarTextsScoreHigher(t *testing.T) {
	h := NewHashing(256)
	ctx := context.Background()
	query, _ := h.Embed(ctx, "Is a cosmetic procedure covered?")
	relevant, _ := h.Embed(ctx, "cosmetic procedures are not covered")
	unrelated, _ := h.Embed(ctx, "engine oil should be changed every five thousand miles")

	simRel := cosine(query, relevant)
	simUn := cosine(query, unrelated)
	if simRel <= simUn {
		t.Errorf("relevant text (%f) should outscore unrelated (%f)", simRel, simUn)
	}
	if simRel < 0.3 {
		t.Errorf("shared-vocabulary similarity too low: %f", simRel)
	}
}

func TestHashing_UnitNorm(t *testing.T) {
	h := NewHashing(64)
	vec, _ := h.Embed(context.Background(), "deductible limits and exclusions")
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("vector norm^2 = %f, want 1", sum)
	}
}

func TestHashing_EmptyText(t *testing.T) {
	h := NewHashing(32)
	vec, err := h.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatal("empty text should produce the zero vector")
		}
	}
}
