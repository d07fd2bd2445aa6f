// Package retrieve fetches the passages most relevant to a structured query
// by embedding the question and searching the vector index.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/embed"
	"github.com/inceptlabs/inception-engine/engine/semantic"
)

// DefaultK is the retrieval depth. Larger K raises recall for the clause
// matcher but matcher cost grows linearly with it; 10 keeps tail latency
// acceptable while rarely dropping decisive clauses.
const DefaultK = 10

// PassageResolver resolves passage ids back to full records. The document
// store satisfies this.
type PassageResolver interface {
	Passage(id string) (domain.Passage, bool)
}

// Scored is a retrieved passage with its raw index similarity, carried
// forward so the clause matcher can blend it with lexical evidence.
type Scored struct {
	Passage    domain.Passage
	Similarity float64 // cosine in [-1, 1]
}

// Options configures retrieval depth.
type Options struct {
	K int
}

// DefaultOptions returns the default retrieval depth.
func DefaultOptions() Options { return Options{K: DefaultK} }

// Retriever runs index search and id resolution.
type Retriever struct {
	embedder embed.Embedder
	index    semantic.Index
	resolve  PassageResolver
	opts     Options
	logger   *slog.Logger
}

// New creates a Retriever.
func New(embedder embed.Embedder, index semantic.Index, resolve PassageResolver, opts Options, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	return &Retriever{embedder: embedder, index: index, resolve: resolve, opts: opts, logger: logger}
}

// Retrieve returns up to k scored passages in descending similarity order.
// k <= 0 selects the configured default. An empty corpus yields an empty
// result, not an error: "no evidence found" is a reportable outcome.
func (r *Retriever) Retrieve(ctx context.Context, q domain.Query, k int) ([]Scored, error) {
	if k <= 0 {
		k = r.opts.K
	}

	vector, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		// Retry with just the topic terms before escalating. A shorter
		// input can succeed where the full question timed out.
		terms := strings.Join(q.Terms, " ")
		if terms == "" || terms == q.Text {
			return nil, embedError(err)
		}
		r.logger.Warn("retrieve: query embed failed, retrying with terms only", "err", err)
		if vector, err = r.embedder.Embed(ctx, terms); err != nil {
			return nil, embedError(err)
		}
	}
	if isZero(vector) {
		// A query of pure stop words has no searchable content.
		return nil, nil
	}

	hits, err := r.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: search: %w", err)
	}

	out := make([]Scored, 0, len(hits))
	for _, h := range hits {
		p, ok := r.resolve.Passage(h.PassageID)
		if !ok {
			// Store and index drifted; skip rather than fail the query.
			r.logger.Warn("retrieve: indexed passage missing from store", "passage_id", h.PassageID)
			continue
		}
		out = append(out, Scored{Passage: p, Similarity: h.Score})
	}
	return out, nil
}

// embedError classifies an embedding failure: deadline errors surface as a
// retrieval timeout, everything else as collaborator trouble.
func embedError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.E(domain.KindTimeout, "query embedding timed out", err)
	}
	return domain.E(domain.KindCollaborator, "embed query", err)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
