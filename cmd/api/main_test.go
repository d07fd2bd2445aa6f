package main

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inceptlabs/inception-engine/engine/answer"
	"github.com/inceptlabs/inception-engine/engine/decide"
	"github.com/inceptlabs/inception-engine/engine/docstore"
	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/embed"
	"github.com/inceptlabs/inception-engine/engine/ingest"
	"github.com/inceptlabs/inception-engine/engine/llm"
	"github.com/inceptlabs/inception-engine/engine/match"
	"github.com/inceptlabs/inception-engine/engine/retrieve"
	"github.com/inceptlabs/inception-engine/engine/semantic"
	"github.com/inceptlabs/inception-engine/engine/understand"
	"github.com/inceptlabs/inception-engine/pkg/metrics"
)

func testAPI(t *testing.T) *apiServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := docstore.New(docstore.DefaultChunkOptions())
	index := semantic.NewMemory()
	embedder := embed.NewHashing(embed.DefaultDimensions)
	stub := llm.NewStub()
	reg := metrics.New()
	em := metrics.NewEngine(reg)

	pipeline := ingest.NewPipeline(ingest.Deps{
		Store: store, Embedder: embedder, Index: index, Logger: logger,
	})
	svc := answer.New(
		understand.New(stub, understand.DefaultOptions(), logger),
		retrieve.New(embedder, index, store, retrieve.DefaultOptions(), logger),
		match.New(match.DefaultOptions()),
		decide.New(decide.DefaultOptions()),
		stub,
		answer.Options{Metrics: em},
		logger,
	)
	return &apiServer{
		svc: svc, pipeline: pipeline, store: store, index: index,
		metrics: em, logger: logger,
	}
}

const runBody = `{
  "documents": [{
    "id": "policy-1",
    "filename": "health-policy.pdf",
    "pages": [
      {"number": 1, "text": "Knee surgery is covered under this plan, subject to a $2,500 deductible."}
    ]
  }],
  "query": "Is knee surgery covered?"
}`

func TestHandleRun(t *testing.T) {
	api := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleRun(rec, httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", strings.NewReader(runBody)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res domain.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Decision != domain.DecisionCovered {
		t.Fatalf("decision = %s, body = %s", res.Decision, rec.Body.String())
	}
	if res.ProcessingTime == "" {
		t.Fatal("processingTime missing")
	}
	if len(res.Sources) == 0 || res.Sources[0].Document != "health-policy.pdf" {
		t.Fatalf("sources = %v", res.Sources)
	}
}

func TestHandleRunHonorsK(t *testing.T) {
	api := testAPI(t)

	body := `{
  "documents": [{
    "id": "policy-1",
    "filename": "health-policy.pdf",
    "pages": [
      {"number": 1, "text": "Knee surgery is covered under this plan, subject to a $2,500 deductible."},
      {"number": 2, "text": "Section 9: Exclusions. Cosmetic surgery is not covered under any circumstances."}
    ]
  }],
  "query": "Is knee surgery covered?",
  "k": 1
}`
	rec := httptest.NewRecorder()
	api.handleRun(rec, httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res domain.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Sources) != 1 {
		t.Fatalf("k=1 should bound sources to one passage, got %v", res.Sources)
	}
	if res.Sources[0].Page != 1 {
		t.Errorf("source page = %d, want the best-ranked passage", res.Sources[0].Page)
	}
}

func TestHandleRunIsIdempotentPerDocument(t *testing.T) {
	api := testAPI(t)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		api.handleRun(rec, httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", strings.NewReader(runBody)))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
	}
	if api.store.Len() != 1 {
		t.Fatalf("store has %d documents, want 1", api.store.Len())
	}
}

func TestHandleRunEmptyQuery(t *testing.T) {
	api := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleRun(rec, httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run",
		strings.NewReader(`{"query": "   "}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Kind != string(domain.KindEmptyQuery) || body.Message == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestHandleRunBadJSON(t *testing.T) {
	api := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleRun(rec, httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run",
		strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Kind != string(domain.KindIngest) {
		t.Fatalf("kind = %s", body.Kind)
	}
}

func TestHandleUploadSynchronous(t *testing.T) {
	api := testAPI(t)

	body := `{"doc_id": "notes-1", "filename": "notes.txt", "content": "` +
		base64.StdEncoding.EncodeToString([]byte("Dental cleanings are covered twice per year.")) + `"}`
	rec := httptest.NewRecorder()
	api.handleUpload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if api.store.Len() != 1 {
		t.Fatalf("store has %d documents, want 1", api.store.Len())
	}
	if got := api.metrics.Documents.Value(); got != 1 {
		t.Errorf("documents gauge = %d, want 1", got)
	}
}

func TestHandleUploadBadFormat(t *testing.T) {
	api := testAPI(t)

	body := `{"doc_id": "d1", "filename": "report.docx", "content": "` +
		base64.StdEncoding.EncodeToString([]byte("binary")) + `"}`
	rec := httptest.NewRecorder()
	api.handleUpload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var e errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != string(domain.KindIngest) {
		t.Errorf("kind = %s, want %s", e.Kind, domain.KindIngest)
	}
}

func TestHandleHealth(t *testing.T) {
	api := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
