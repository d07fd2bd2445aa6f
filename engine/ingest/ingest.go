// Package ingest is the ingestion pipeline: extraction, validation,
// chunking, embedding, and indexing, composed from fn stages. The document
// store is updated before the index; a failure past the store stage rolls
// a fresh ingest back and restores the outgoing version of a replacement,
// so the store and index never disagree about what is searchable.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/inceptlabs/inception-engine/engine/docstore"
	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/embed"
	"github.com/inceptlabs/inception-engine/engine/extract"
	"github.com/inceptlabs/inception-engine/engine/semantic"
	"github.com/inceptlabs/inception-engine/pkg/fn"
	"github.com/inceptlabs/inception-engine/pkg/natsutil"
	"github.com/inceptlabs/inception-engine/pkg/resilience"
)

const (
	// Subject is the NATS subject for incoming uploads.
	Subject = "engine.documents.ingest"
	// DLQSubject receives uploads that exhausted their retries.
	DLQSubject = "engine.documents.dlq"
	// DoneSubject announces successfully ingested documents.
	DoneSubject = "engine.documents.ingested"
	// MaxRetries before an upload is sent to the DLQ.
	MaxRetries = 3
	// EmbedWorkers bounds concurrent passage embeddings per document.
	EmbedWorkers = 4

	retryHeader = "X-Retry-Count"
)

// embedRetry absorbs short collaborator blips in-process; anything longer
// escalates to the message-level retry and DLQ path.
var embedRetry = fn.RetryOpts{
	MaxAttempts: 2,
	InitialWait: 250 * time.Millisecond,
	MaxWait:     time.Second,
	Jitter:      true,
}

// Deps holds the pipeline's collaborators. Breaker and Limiter are
// optional; when set they guard the embedding stage against a struggling
// backend.
type Deps struct {
	Extractor extract.Extractor
	Store     *docstore.Store
	Embedder  embed.Embedder
	Index     semantic.Index
	Breaker   *resilience.Breaker
	Limiter   *resilience.Limiter
	Logger    *slog.Logger
}

// Pipeline runs uploads through extract, validate, chunk, embed, and index.
// The stages are split at the store registration point so a post-chunk
// failure can be rolled back without ever touching a document that was
// already there.
type Pipeline struct {
	deps    Deps
	prepare fn.Stage[Upload, Chunked]
	finish  fn.Stage[Chunked, Embedded]
	log     *slog.Logger
}

// NewPipeline wires the stages. A nil Extractor uses the built-in format
// dispatch.
func NewPipeline(deps Deps) *Pipeline {
	if deps.Extractor == nil {
		deps.Extractor = extract.Auto{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	extracted := fn.Traced("ingest.extract", newExtract(deps.Extractor))
	validated := fn.Then(extracted, fn.Traced("ingest.validate", validate))
	prepare := fn.Then(validated, fn.Traced("ingest.chunk", newChunk(deps.Store)))

	embedStage := newEmbed(deps.Embedder)
	if deps.Breaker != nil {
		embedStage = resilience.BreakerStage(deps.Breaker, embedStage)
	}
	if deps.Limiter != nil {
		embedStage = resilience.LimitStage(deps.Limiter, embedStage)
	}
	embedded := fn.Traced("ingest.embed", fn.RetryStage(embedRetry, embedStage))
	finish := fn.Then(embedded, fn.Traced("ingest.index", newIndex(deps.Index, log)))

	return &Pipeline{deps: deps, prepare: prepare, finish: finish, log: log}
}

// Run ingests one upload and returns the passage count. A failure after the
// store registered the document rolls the registration back.
func (p *Pipeline) Run(ctx context.Context, up Upload) (int, error) {
	start := time.Now()

	chunked, err := p.prepare(ctx, up).Unwrap()
	if err != nil {
		return 0, err
	}

	emb, err := p.finish(ctx, chunked).Unwrap()
	if err != nil {
		p.rollback(ctx, chunked)
		return 0, err
	}
	p.log.Info("document ingested",
		"doc_id", up.DocID,
		"filename", up.Filename,
		"passages", len(emb.Passages),
		"elapsed", time.Since(start))
	return len(emb.Passages), nil
}

// RunDocument ingests a document whose pages are already extracted, as when
// the API receives pages inline. Same rollback discipline as Run.
func (p *Pipeline) RunDocument(ctx context.Context, doc domain.Document, replace bool) (int, error) {
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}
	ex := Extracted{
		Upload: Upload{DocID: doc.ID, Filename: doc.Filename, Replace: replace},
		Doc:    doc,
	}

	chunked, err := fn.Then(validate, fn.Traced("ingest.chunk", newChunk(p.deps.Store)))(ctx, ex).Unwrap()
	if err != nil {
		return 0, err
	}
	if _, err := p.finish(ctx, chunked).Unwrap(); err != nil {
		p.rollback(ctx, chunked)
		return 0, err
	}
	return len(chunked.Passages), nil
}

// rollback undoes a half-finished ingestion. A fresh ingest is removed from
// both sides; a replacement restores the outgoing version instead, whose
// position-derived passage ids still match the vectors indexed for it.
func (p *Pipeline) rollback(ctx context.Context, ch Chunked) {
	docID := ch.Doc.ID

	if ch.Previous != nil {
		if _, err := p.deps.Store.Replace(*ch.Previous); err != nil {
			p.log.Error("restoring replaced document failed", "doc_id", docID, "err", err)
			return
		}
		// Drop any vectors only the abandoned version introduced. Positions
		// both versions share were never removed, so search keeps working.
		keep := make(map[string]bool, len(ch.PreviousIDs))
		for _, id := range ch.PreviousIDs {
			keep[id] = true
		}
		newIDs := fn.Map(ch.Passages, func(p domain.Passage) string { return p.ID })
		newOnly := fn.Filter(newIDs, func(id string) bool { return !keep[id] })
		if len(newOnly) > 0 {
			if err := p.deps.Index.RemovePassages(ctx, newOnly); err != nil {
				p.log.Warn("index rollback prune failed", "doc_id", docID, "err", err)
			}
		}
		p.log.Warn("rolled back replacement, previous version restored", "doc_id", docID)
		return
	}

	if err := p.deps.Store.Delete(docID); err == nil {
		p.log.Warn("rolled back partial ingest", "doc_id", docID)
	}
	if err := p.deps.Index.RemoveDocument(ctx, docID); err != nil {
		p.log.Warn("index rollback failed", "doc_id", docID, "err", err)
	}
}

// --- stages ---

func newExtract(ex extract.Extractor) fn.Stage[Upload, Extracted] {
	return func(ctx context.Context, up Upload) fn.Result[Extracted] {
		pages, err := ex.Extract(ctx, up.Filename, up.Content)
		if err != nil {
			return fn.Err[Extracted](fmt.Errorf("extract %s: %w", up.Filename, err))
		}
		doc := domain.Document{
			ID:         up.DocID,
			Filename:   up.Filename,
			Pages:      pages,
			IngestedAt: time.Now().UTC(),
		}
		return fn.Ok(Extracted{Upload: up, Doc: doc})
	}
}

var validate fn.Stage[Extracted, Extracted] = func(_ context.Context, ex Extracted) fn.Result[Extracted] {
	if err := domain.ValidateDocument(ex.Doc); err != nil {
		return fn.Err[Extracted](err)
	}
	return fn.Ok(ex)
}

func newChunk(store *docstore.Store) fn.Stage[Extracted, Chunked] {
	return func(_ context.Context, ex Extracted) fn.Result[Chunked] {
		ch := Chunked{Extracted: ex}
		var err error
		if ex.Replace {
			// Snapshot the outgoing version before the swap so a failure
			// further down the pipeline can restore it.
			if prev, ok := store.Document(ex.Doc.ID); ok {
				prevPassages, _ := store.DocumentPassages(ex.Doc.ID)
				ch.Previous = &prev
				ch.PreviousIDs = fn.Map(prevPassages, func(p domain.Passage) string { return p.ID })
			}
			ch.Passages, err = store.Replace(ex.Doc)
		} else {
			ch.Passages, err = store.Ingest(ex.Doc)
		}
		if err != nil {
			return fn.Err[Chunked](err)
		}
		return fn.Ok(ch)
	}
}

func newEmbed(embedder embed.Embedder) fn.Stage[Chunked, Embedded] {
	return func(ctx context.Context, ch Chunked) fn.Result[Embedded] {
		results := fn.ParMapResult(ch.Passages, EmbedWorkers, func(p domain.Passage) fn.Result[semantic.Record] {
			vec, err := embedder.Embed(ctx, p.Text)
			if err != nil {
				return fn.Err[semantic.Record](domain.E(domain.KindCollaborator,
					fmt.Sprintf("embed passage %s", p.ID), err))
			}
			return fn.Ok(semantic.Record{PassageID: p.ID, DocumentID: p.DocumentID, Vector: vec})
		})
		records, err := fn.Collect(results).Unwrap()
		if err != nil {
			return fn.Err[Embedded](err)
		}
		return fn.Ok(Embedded{Chunked: ch, Records: records})
	}
}

func newIndex(index semantic.Index, log *slog.Logger) fn.Stage[Embedded, Embedded] {
	return func(ctx context.Context, emb Embedded) fn.Result[Embedded] {
		if err := index.Upsert(ctx, emb.Records); err != nil {
			return fn.Err[Embedded](fmt.Errorf("index upsert: %w", err))
		}
		if emb.Replace {
			// Upsert overwrote every surviving position; only passages the
			// new version no longer has need removing. The new version is
			// fully searchable at this point, so a failed prune is logged
			// rather than failing the ingestion.
			if stale := staleIDs(emb.PreviousIDs, emb.Passages); len(stale) > 0 {
				if err := index.RemovePassages(ctx, stale); err != nil {
					log.Warn("stale vector prune failed",
						"doc_id", emb.DocID, "stale", len(stale), "err", err)
				}
			}
		}
		return fn.Ok(emb)
	}
}

// staleIDs lists previous passage ids that the new passages no longer use.
func staleIDs(prev []string, cur []domain.Passage) []string {
	keep := make(map[string]bool, len(cur))
	for _, p := range cur {
		keep[p.ID] = true
	}
	return fn.Filter(prev, func(id string) bool { return !keep[id] })
}

// Reindex rebuilds all index records from the store in its deterministic
// passage order. The index is a derived projection, so this is always safe.
func Reindex(ctx context.Context, store *docstore.Store, embedder embed.Embedder, index semantic.Index) (int, error) {
	passages := store.Passages()
	results := fn.ParMapResult(passages, EmbedWorkers, func(p domain.Passage) fn.Result[semantic.Record] {
		vec, err := embedder.Embed(ctx, p.Text)
		if err != nil {
			return fn.Err[semantic.Record](fmt.Errorf("embed passage %s: %w", p.ID, err))
		}
		return fn.Ok(semantic.Record{PassageID: p.ID, DocumentID: p.DocumentID, Vector: vec})
	})
	records, err := fn.Collect(results).Unwrap()
	if err != nil {
		return 0, err
	}
	if err := index.Upsert(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// dlqMessage is published when an upload exhausts its retries.
type dlqMessage struct {
	Upload  Upload `json:"upload"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// Done announces a completed ingestion on DoneSubject.
type Done struct {
	DocID    string `json:"doc_id"`
	Passages int    `json:"passages"`
}

// StartConsumer subscribes the pipeline to the ingest subject with retry
// and dead-lettering. Transient failures are re-published with an
// incremented retry header; exhausted uploads go to the DLQ.
func StartConsumer(nc *nats.Conn, p *Pipeline) (*nats.Subscription, error) {
	log := p.log

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var up Upload
		if err := json.Unmarshal(msg.Data, &up); err != nil {
			log.Error("ingest: bad message", "err", err)
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		ctx := natsutil.Extract(msg)
		passages, err := p.Run(ctx, up)
		if err == nil {
			if err := natsutil.Publish(ctx, nc, DoneSubject, Done{DocID: up.DocID, Passages: passages}); err != nil {
				log.Error("ingest: done publish failed", "err", err)
			}
			return
		}

		retries++
		log.Error("ingest: pipeline failed",
			"doc_id", up.DocID, "retry", retries, "err", err)

		// Validation failures never succeed on retry.
		if retries >= MaxRetries || domain.KindOf(err) == domain.KindIngest {
			dlq := dlqMessage{Upload: up, Error: err.Error(), Retries: retries}
			if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
				log.Error("ingest: DLQ publish failed", "err", err)
			}
			return
		}

		retry := nats.NewMsg(Subject)
		retry.Data = msg.Data
		retry.Header = nats.Header{}
		retry.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
		natsutil.Inject(ctx, retry)
		if err := nc.PublishMsg(retry); err != nil {
			log.Error("ingest: retry publish failed", "err", err)
		}
	})
}
