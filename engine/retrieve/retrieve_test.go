package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/semantic"
)

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) { return m.vec, m.err }
func (m *mockEmbedder) Dimensions() int                                      { return len(m.vec) }

type mockIndex struct {
	hits  []semantic.Hit
	err   error
	lastK int
}

func (m *mockIndex) Upsert(_ context.Context, _ []semantic.Record) error      { return nil }
func (m *mockIndex) RemoveDocument(_ context.Context, _ string) error         { return nil }
func (m *mockIndex) RemovePassages(_ context.Context, _ []string) error       { return nil }
func (m *mockIndex) Search(_ context.Context, _ []float32, k int) ([]semantic.Hit, error) {
	m.lastK = k
	return m.hits, m.err
}

type mockResolver map[string]domain.Passage

func (m mockResolver) Passage(id string) (domain.Passage, bool) {
	p, ok := m[id]
	return p, ok
}

func q(text string) domain.Query {
	return domain.Query{Text: text, Intent: domain.IntentGeneral}
}

func TestRetrieve_ResolvesInOrder(t *testing.T) {
	idx := &mockIndex{hits: []semantic.Hit{
		{PassageID: "p2", Score: 0.9},
		{PassageID: "p1", Score: 0.4},
	}}
	resolver := mockResolver{
		"p1": {ID: "p1", Text: "one"},
		"p2": {ID: "p2", Text: "two"},
	}
	r := New(&mockEmbedder{vec: []float32{1, 0}}, idx, resolver, DefaultOptions(), nil)

	got, err := r.Retrieve(context.Background(), q("question"), 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 || got[0].Passage.ID != "p2" || got[1].Passage.ID != "p1" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got[0].Similarity != 0.9 {
		t.Errorf("similarity not carried: %f", got[0].Similarity)
	}
	if idx.lastK != DefaultK {
		t.Errorf("k = %d, want default %d", idx.lastK, DefaultK)
	}
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	r := New(&mockEmbedder{vec: []float32{1}}, &mockIndex{}, mockResolver{}, DefaultOptions(), nil)
	got, err := r.Retrieve(context.Background(), q("anything"), 5)
	if err != nil {
		t.Fatalf("empty corpus must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no passages, got %d", len(got))
	}
}

func TestRetrieve_SkipsUnresolvable(t *testing.T) {
	idx := &mockIndex{hits: []semantic.Hit{
		{PassageID: "gone", Score: 0.8},
		{PassageID: "p1", Score: 0.5},
	}}
	r := New(&mockEmbedder{vec: []float32{1}}, idx, mockResolver{"p1": {ID: "p1"}}, DefaultOptions(), nil)

	got, err := r.Retrieve(context.Background(), q("x"), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Passage.ID != "p1" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	r := New(&mockEmbedder{err: errors.New("down")}, &mockIndex{}, mockResolver{}, DefaultOptions(), nil)
	_, err := r.Retrieve(context.Background(), q("x"), 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.KindOf(err) != domain.KindCollaborator {
		t.Errorf("kind = %s, want collaborator_unavailable", domain.KindOf(err))
	}
}

// selectiveEmbedder fails for every input except ok.
type selectiveEmbedder struct {
	ok  string
	vec []float32
	err error
}

func (s *selectiveEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == s.ok {
		return s.vec, nil
	}
	return nil, s.err
}
func (s *selectiveEmbedder) Dimensions() int { return len(s.vec) }

func TestRetrieve_TermOnlyRetry(t *testing.T) {
	emb := &selectiveEmbedder{ok: "knee surgery", vec: []float32{1, 0}, err: context.DeadlineExceeded}
	idx := &mockIndex{hits: []semantic.Hit{{PassageID: "p1", Score: 0.7}}}
	r := New(emb, idx, mockResolver{"p1": {ID: "p1"}}, DefaultOptions(), nil)

	query := domain.Query{Text: "does this policy cover knee surgery", Terms: []string{"knee", "surgery"}}
	got, err := r.Retrieve(context.Background(), query, 5)
	if err != nil {
		t.Fatalf("term-only retry should recover: %v", err)
	}
	if len(got) != 1 || got[0].Passage.ID != "p1" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestRetrieve_TimeoutEscalatesWhenRetryFails(t *testing.T) {
	emb := &mockEmbedder{err: context.DeadlineExceeded}
	r := New(emb, &mockIndex{}, mockResolver{}, DefaultOptions(), nil)

	query := domain.Query{Text: "does this policy cover knee surgery", Terms: []string{"knee", "surgery"}}
	_, err := r.Retrieve(context.Background(), query, 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.KindOf(err) != domain.KindTimeout {
		t.Errorf("kind = %s, want retrieval_timeout", domain.KindOf(err))
	}
}

func TestRetrieve_StopWordQuery(t *testing.T) {
	r := New(&mockEmbedder{vec: []float32{0, 0}}, &mockIndex{hits: []semantic.Hit{{PassageID: "p1"}}}, mockResolver{}, DefaultOptions(), nil)
	got, err := r.Retrieve(context.Background(), q("is it the"), 5)
	if err != nil || got != nil {
		t.Fatalf("zero vector should yield empty result, got (%v, %v)", got, err)
	}
}
