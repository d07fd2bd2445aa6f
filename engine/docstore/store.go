// Package docstore owns ingested documents and their derived passages. It is
// the source of truth the embedding index can always be rebuilt from; the
// store itself never touches the index so a failed ingestion cannot leave a
// half-indexed document behind.
package docstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/inceptlabs/inception-engine/engine/domain"
)

// Store holds documents and passages. Mutations are serialized by a single
// write lock; reads only ever observe fully registered documents.
type Store struct {
	mu    sync.RWMutex
	opts  ChunkOptions
	docs  map[string]*record
	order []string // document ids in ingestion order
	byID  map[string]domain.Passage
}

type record struct {
	doc      domain.Document
	passages []domain.Passage
}

// New creates an empty store with the given chunking bounds.
func New(opts ChunkOptions) *Store {
	return &Store{
		opts: opts,
		docs: make(map[string]*record),
		byID: make(map[string]domain.Passage),
	}
}

// Ingest validates, chunks, and registers a document. Re-using a document id
// without an explicit Replace is an ingest error.
func (s *Store) Ingest(doc domain.Document) ([]domain.Passage, error) {
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return nil, domain.E(domain.KindIngest, fmt.Sprintf("document %q", doc.ID), domain.ErrDuplicateDocument)
	}
	return s.register(doc)
}

// Replace removes any prior version of the document and ingests the new one.
// When the new version fails to register, the prior version is put back, so
// a failed replace never loses the document that was already there.
func (s *Store) Replace(doc domain.Document) ([]domain.Passage, error) {
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.docs[doc.ID]
	s.remove(doc.ID)
	passages, err := s.register(doc)
	if err != nil {
		if prev != nil {
			s.docs[doc.ID] = prev
			s.order = append(s.order, doc.ID)
			for _, p := range prev.passages {
				s.byID[p.ID] = p
			}
		}
		return nil, err
	}
	return passages, nil
}

// register chunks every page and records the document. Caller holds the lock.
func (s *Store) register(doc domain.Document) ([]domain.Passage, error) {
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	var passages []domain.Passage
	for _, page := range doc.Pages {
		ps := chunkPage(doc, page, s.opts)
		if len(ps) == 0 {
			return nil, domain.E(domain.KindIngest,
				fmt.Sprintf("document %q page %d", doc.ID, page.Number), domain.ErrEmptyPage)
		}
		passages = append(passages, ps...)
	}

	s.docs[doc.ID] = &record{doc: doc, passages: passages}
	s.order = append(s.order, doc.ID)
	for _, p := range passages {
		s.byID[p.ID] = p
	}
	return passages, nil
}

// Delete removes a document and all of its passages.
func (s *Store) Delete(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[docID]; !exists {
		return domain.E(domain.KindIngest, fmt.Sprintf("document %q", docID), domain.ErrUnknownDocument)
	}
	s.remove(docID)
	return nil
}

// remove drops a document if present. Caller holds the lock.
func (s *Store) remove(docID string) {
	rec, exists := s.docs[docID]
	if !exists {
		return
	}
	for _, p := range rec.passages {
		delete(s.byID, p.ID)
	}
	delete(s.docs, docID)
	for i, id := range s.order {
		if id == docID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Document returns an ingested document by id.
func (s *Store) Document(docID string) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[docID]
	if !ok {
		return domain.Document{}, false
	}
	return rec.doc, true
}

// DocumentPassages returns one document's passages in page/offset order.
func (s *Store) DocumentPassages(docID string) ([]domain.Passage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[docID]
	if !ok {
		return nil, false
	}
	out := make([]domain.Passage, len(rec.passages))
	copy(out, rec.passages)
	return out, true
}

// Passage resolves a passage id.
func (s *Store) Passage(id string) (domain.Passage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

// Passages returns every passage in deterministic order: documents in
// ingestion order, passages in page/offset order within each document.
// Index rebuilds rely on this ordering for reproducible rankings.
func (s *Store) Passages() []domain.Passage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Passage
	for _, id := range s.order {
		out = append(out, s.docs[id].passages...)
	}
	return out
}

// Documents lists ingested documents in ingestion order.
func (s *Store) Documents() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id].doc)
	}
	return out
}

// Len reports the number of ingested documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
