package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Memory is an in-memory Index using immutable snapshots. Every mutation
// builds a new snapshot and publishes it atomically, so readers are lock-free
// and never observe a partially applied removal. Rankings are deterministic:
// equal similarities tie-break by insertion order.
type Memory struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	entries []entry
}

type entry struct {
	passageID string
	docID     string
	vector    []float32
	norm      float64
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	m := &Memory{}
	m.snap.Store(&snapshot{})
	return m
}

// Upsert publishes a fresh snapshot with the records applied. A record
// whose passage id is already indexed replaces the old entry in place, so
// re-ingesting a document never duplicates its passages.
func (m *Memory) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("semantic: empty vector for passage %s", r.PassageID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	incoming := make(map[string]entry, len(records))
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		incoming[r.PassageID] = entry{
			passageID: r.PassageID,
			docID:     r.DocumentID,
			vector:    vec,
			norm:      norm(vec),
		}
	}

	cur := m.snap.Load()
	next := make([]entry, 0, len(cur.entries)+len(records))
	for _, e := range cur.entries {
		if repl, ok := incoming[e.passageID]; ok {
			next = append(next, repl)
			delete(incoming, e.passageID)
			continue
		}
		next = append(next, e)
	}
	// Append the genuinely new entries in record order.
	for _, r := range records {
		if e, ok := incoming[r.PassageID]; ok {
			next = append(next, e)
			delete(incoming, r.PassageID)
		}
	}
	m.snap.Store(&snapshot{entries: next})
	return nil
}

// RemoveDocument drops every passage of the document in one snapshot swap.
func (m *Memory) RemoveDocument(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snap.Load()
	next := make([]entry, 0, len(cur.entries))
	for _, e := range cur.entries {
		if e.docID != docID {
			next = append(next, e)
		}
	}
	m.snap.Store(&snapshot{entries: next})
	return nil
}

// RemovePassages drops the listed passage ids in one snapshot swap.
// Unknown ids are ignored.
func (m *Memory) RemovePassages(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snap.Load()
	next := make([]entry, 0, len(cur.entries))
	for _, e := range cur.entries {
		if !drop[e.passageID] {
			next = append(next, e)
		}
	}
	m.snap.Store(&snapshot{entries: next})
	return nil
}

// Search returns up to k hits ordered by descending cosine similarity.
// The snapshot is loaded once, so a concurrent removal is either fully
// visible or fully invisible to this call.
func (m *Memory) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	snap := m.snap.Load()
	if len(snap.entries) == 0 {
		return nil, nil
	}

	qn := norm(vector)
	if qn == 0 {
		return nil, fmt.Errorf("semantic: zero-norm query vector")
	}

	hits := make([]Hit, 0, len(snap.entries))
	for _, e := range snap.entries {
		hits = append(hits, Hit{PassageID: e.passageID, Score: cosine(vector, qn, e)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len reports the number of indexed passages.
func (m *Memory) Len() int {
	return len(m.snap.Load().entries)
}

func cosine(q []float32, qn float64, e entry) float64 {
	if e.norm == 0 {
		return 0
	}
	n := len(q)
	if len(e.vector) < n {
		n = len(e.vector)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(q[i]) * float64(e.vector[i])
	}
	return dot / (qn * e.norm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
