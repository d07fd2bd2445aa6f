package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/inceptlabs/inception-engine/engine/decide"
	"github.com/inceptlabs/inception-engine/engine/docstore"
	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/embed"
	"github.com/inceptlabs/inception-engine/engine/llm"
	"github.com/inceptlabs/inception-engine/engine/match"
	"github.com/inceptlabs/inception-engine/engine/retrieve"
	"github.com/inceptlabs/inception-engine/engine/semantic"
	"github.com/inceptlabs/inception-engine/engine/understand"
)

// newTestService builds a service over an in-memory corpus. Each document is
// chunked, embedded, and indexed the way the ingest pipeline does it.
func newTestService(t *testing.T, docs ...domain.Document) *Service {
	t.Helper()

	store := docstore.New(docstore.DefaultChunkOptions())
	embedder := embed.NewHashing(embed.DefaultDimensions)
	index := semantic.NewMemory()

	for _, doc := range docs {
		passages, err := store.Ingest(doc)
		if err != nil {
			t.Fatalf("ingest %s: %v", doc.ID, err)
		}
		records := make([]semantic.Record, 0, len(passages))
		for _, p := range passages {
			vec, err := embedder.Embed(context.Background(), p.Text)
			if err != nil {
				t.Fatalf("embed: %v", err)
			}
			records = append(records, semantic.Record{PassageID: p.ID, DocumentID: p.DocumentID, Vector: vec})
		}
		if err := index.Upsert(context.Background(), records); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	parser := understand.New(llm.NewStub(), understand.DefaultOptions(), nil)
	retriever := retrieve.New(embedder, index, store, retrieve.DefaultOptions(), nil)
	return New(parser, retriever, match.New(match.DefaultOptions()), decide.New(decide.DefaultOptions()), llm.NewStub(), DefaultOptions(), nil)
}

func policyDoc() domain.Document {
	return domain.Document{
		ID:       "policy-1",
		Filename: "health-policy.pdf",
		Pages: []domain.Page{
			{Number: 1, Text: "Section 4: Surgical Procedures. Knee surgery is covered under this plan, subject to a $2,500 deductible. Prior authorization is required for all elective procedures."},
			{Number: 2, Text: "Section 9: Exclusions. Cosmetic surgery is not covered under any circumstances. Experimental treatments are excluded from this policy."},
		},
	}
}

func TestAskCoveredWithLimitation(t *testing.T) {
	svc := newTestService(t, policyDoc())

	res, err := svc.Ask(context.Background(), "Is knee surgery covered?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Decision != domain.DecisionCovered {
		t.Fatalf("decision = %s, want covered", res.Decision)
	}
	if res.Confidence <= 0 {
		t.Fatalf("confidence = %d, want > 0", res.Confidence)
	}

	var foundDeductible bool
	for _, l := range res.Details.Limitations {
		if strings.Contains(l, "$2,500") {
			foundDeductible = true
		}
	}
	if !foundDeductible {
		t.Fatalf("limitations missing the deductible clause: %v", res.Details.Limitations)
	}
	if len(res.Sources) == 0 || res.Sources[0].Document != "health-policy.pdf" {
		t.Fatalf("sources = %v", res.Sources)
	}
	if res.Summary == "" {
		t.Fatal("summary empty")
	}
}

func TestAskExcluded(t *testing.T) {
	svc := newTestService(t, policyDoc())

	res, err := svc.Ask(context.Background(), "Is cosmetic surgery covered?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Decision != domain.DecisionNotCovered {
		t.Fatalf("decision = %s, want not_covered", res.Decision)
	}
	if len(res.Details.Exclusions) == 0 {
		t.Fatal("exclusions empty for an excluded procedure")
	}
	if !strings.HasPrefix(res.Details.Coverage, "No") {
		t.Fatalf("coverage line = %q", res.Details.Coverage)
	}
}

func TestAskEmptyCorpus(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Ask(context.Background(), "Is dental cleaning covered?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Decision != domain.DecisionIndeterminate {
		t.Fatalf("decision = %s, want indeterminate", res.Decision)
	}
	if res.Confidence != 0 {
		t.Fatalf("confidence = %d, want 0", res.Confidence)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("sources = %v, want none", res.Sources)
	}
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(t, policyDoc())

	_, err := svc.Ask(context.Background(), "   ", 0)
	if err == nil {
		t.Fatal("expected error for blank question")
	}
	if domain.KindOf(err) != domain.KindEmptyQuery {
		t.Fatalf("kind = %s, want %s", domain.KindOf(err), domain.KindEmptyQuery)
	}
}

// downEmbedder simulates an unreachable embedding backend.
type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}
func (downEmbedder) Dimensions() int { return embed.DefaultDimensions }

func TestAskEmbedderDownDegradesToIndeterminate(t *testing.T) {
	base := newTestService(t, policyDoc())
	store := docstore.New(docstore.DefaultChunkOptions())
	retriever := retrieve.New(downEmbedder{}, semantic.NewMemory(), store, retrieve.DefaultOptions(), nil)
	svc := New(base.parser, retriever, base.matcher, base.evaluator, llm.NewStub(), DefaultOptions(), nil)

	res, err := svc.Ask(context.Background(), "Is knee surgery covered?", 0)
	if err != nil {
		t.Fatalf("collaborator outage must not fail the request: %v", err)
	}
	if res.Decision != domain.DecisionIndeterminate {
		t.Fatalf("decision = %s, want indeterminate", res.Decision)
	}
	if res.Confidence != 0 {
		t.Fatalf("confidence = %d, want 0", res.Confidence)
	}
	if !strings.Contains(res.Summary, "unavailable") {
		t.Fatalf("summary should explain the outage: %q", res.Summary)
	}
}

// failingSummarizer always errors; the pipeline must fall back to the
// template rather than surfacing the failure.
type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, string, domain.DecisionLabel, []string) (string, error) {
	return "", errors.New("model offline")
}

func TestAskSummarizerFailureFallsBack(t *testing.T) {
	base := newTestService(t, policyDoc())
	svc := New(base.parser, base.retriever, base.matcher, base.evaluator, failingSummarizer{}, Options{SummarizeTimeout: 100 * time.Millisecond}, nil)

	res, err := svc.Ask(context.Background(), "Is knee surgery covered?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Summary == "" {
		t.Fatal("summary empty after summarizer failure")
	}
	if res.Decision != domain.DecisionCovered {
		t.Fatalf("decision = %s", res.Decision)
	}
}
