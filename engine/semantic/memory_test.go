package semantic

import (
	"context"
	"sync"
	"testing"
)

func rec(passage, doc string, vec ...float32) Record {
	return Record{PassageID: passage, DocumentID: doc, Vector: vec}
}

func TestMemory_SearchRanking(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	err := m.Upsert(ctx, []Record{
		rec("p1", "d1", 1, 0, 0),
		rec("p2", "d1", 0, 1, 0),
		rec("p3", "d2", 0.9, 0.1, 0),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := m.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].PassageID != "p1" || hits[1].PassageID != "p3" {
		t.Errorf("ranking = %s, %s; want p1, p3", hits[0].PassageID, hits[1].PassageID)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("identical vector should score ~1, got %f", hits[0].Score)
	}
}

func TestMemory_TiesBreakByInsertionOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	// Two identical vectors: the earlier insertion must rank first.
	if err := m.Upsert(ctx, []Record{
		rec("first", "d1", 0, 1),
		rec("second", "d2", 0, 1),
	}); err != nil {
		t.Fatal(err)
	}
	hits, err := m.Search(ctx, []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].PassageID != "first" || hits[1].PassageID != "second" {
		t.Errorf("tie-break violated: %s, %s", hits[0].PassageID, hits[1].PassageID)
	}
}

func TestMemory_UpsertReplacesSamePassage(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Upsert(ctx, []Record{rec("p1", "d1", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := m.Upsert(ctx, []Record{rec("p1", "d1", 0, 1)}); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 1 {
		t.Fatalf("re-upserting a passage duplicated it: %d entries", m.Len())
	}
	hits, err := m.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("old vector survived the upsert: score %f", hits[0].Score)
	}
}

func TestMemory_RemovePassages(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Upsert(ctx, []Record{
		rec("p1", "d1", 1, 0),
		rec("p2", "d1", 0, 1),
		rec("p3", "d1", 1, 1),
	}); err != nil {
		t.Fatal(err)
	}
	// Unknown ids are ignored.
	if err := m.RemovePassages(ctx, []string{"p2", "missing"}); err != nil {
		t.Fatalf("RemovePassages: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	hits, err := m.Search(ctx, []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.PassageID == "p2" {
			t.Error("removed passage still indexed")
		}
	}
}

func TestMemory_RemoveDocument(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Upsert(ctx, []Record{
		rec("p1", "d1", 1, 0),
		rec("p2", "d2", 0.5, 0.5),
		rec("p3", "d1", 0, 1),
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveDocument(ctx, "d1"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}

	hits, err := m.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.PassageID == "p1" || h.PassageID == "p3" {
			t.Errorf("passage %s survived document removal", h.PassageID)
		}
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMemory_DeterministicRebuild(t *testing.T) {
	ctx := context.Background()
	records := []Record{
		rec("p1", "d1", 0.3, 0.7, 0.1),
		rec("p2", "d1", 0.7, 0.3, 0.2),
		rec("p3", "d2", 0.5, 0.5, 0.5),
		rec("p4", "d2", 0.1, 0.2, 0.9),
	}
	query := []float32{0.4, 0.6, 0.3}

	build := func() []Hit {
		m := NewMemory()
		if err := m.Upsert(ctx, records); err != nil {
			t.Fatal(err)
		}
		hits, err := m.Search(ctx, query, 4)
		if err != nil {
			t.Fatal(err)
		}
		return hits
	}

	a, b := build(), build()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("rebuild changed ranking at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestMemory_EmptyAndErrors(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	hits, err := m.Search(ctx, []float32{1, 0}, 5)
	if err != nil || hits != nil {
		t.Errorf("empty index: got (%v, %v), want (nil, nil)", hits, err)
	}
	if err := m.Upsert(ctx, []Record{{PassageID: "p", DocumentID: "d"}}); err == nil {
		t.Error("expected error for empty vector")
	}
	if err := m.Upsert(ctx, []Record{rec("p", "d", 1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Search(ctx, []float32{0}, 5); err == nil {
		t.Error("expected error for zero-norm query")
	}
}

func TestMemory_ConcurrentSearchDuringRemove(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var records []Record
	for i := 0; i < 50; i++ {
		doc := "da"
		if i%2 == 0 {
			doc = "db"
		}
		records = append(records, rec(string(rune('A'+i%26))+"-p", doc, float32(i%7)+1, float32(i%5)+1))
	}
	if err := m.Upsert(ctx, records); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			hits, err := m.Search(ctx, []float32{1, 1}, 50)
			if err != nil {
				t.Errorf("search failed: %v", err)
				return
			}
			// Either all of da is present or none of it: count parity
			// against the live snapshot length.
			if len(hits) != 50 && len(hits) != 25 {
				t.Errorf("torn snapshot: %d hits", len(hits))
				return
			}
		}
	}()

	if err := m.RemoveDocument(ctx, "da"); err != nil {
		t.Fatal(err)
	}
	close(stop)
	wg.Wait()

	hits, _ := m.Search(ctx, []float32{1, 1}, 50)
	if len(hits) != 25 {
		t.Fatalf("expected 25 hits after removal, got %d", len(hits))
	}
}
