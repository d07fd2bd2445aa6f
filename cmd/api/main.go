// Package main implements the decision-engine API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

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
	"github.com/inceptlabs/inception-engine/pkg/mid"
	"github.com/inceptlabs/inception-engine/pkg/natsutil"
	"github.com/inceptlabs/inception-engine/pkg/ollama"
	"github.com/inceptlabs/inception-engine/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	CORSOrigin   string
	Collaborator string // "stub" or "ollama"
	OllamaURL    string
	EmbedModel   string
	ChatModel    string
	EmbedDims    int
	Index        string // "memory" or "qdrant"
	QdrantURL    string
	Collection   string
	NATSURL      string // optional; enables the async ingest consumer
	TopK         int
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		Collaborator: envOr("COLLABORATOR", "stub"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:   envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		ChatModel:    envOr("OLLAMA_CHAT_MODEL", "llama3.2"),
		EmbedDims:    envIntOr("EMBED_DIMENSIONS", embed.DefaultDimensions),
		Index:        envOr("INDEX", "memory"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "passages"),
		NATSURL:      os.Getenv("NATS_URL"),
		TopK:         envIntOr("TOP_K", retrieve.DefaultK),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	engineMetrics := metrics.NewEngine(reg)

	// --- Embedder + collaborator ---
	var (
		embedder   embed.Embedder
		collab     llm.Client
		summarizer llm.Summarizer
	)
	switch cfg.Collaborator {
	case "ollama":
		client := ollama.New(ollama.Options{
			BaseURL:    cfg.OllamaURL,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dimensions: cfg.EmbedDims,
		})
		embedder = client
		guarded := llm.Guard(client,
			resilience.NewBreaker(resilience.DefaultBreakerOpts),
			resilience.NewLimiter(10, 20))
		collab, summarizer = guarded, guarded
	default:
		stub := llm.NewStub()
		embedder = embed.NewHashing(cfg.EmbedDims)
		collab, summarizer = stub, stub
	}

	// --- Vector index ---
	var index semantic.Index
	switch cfg.Index {
	case "qdrant":
		qd, err := semantic.NewQdrant(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer qd.Close()
		if err := qd.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
			return fmt.Errorf("qdrant collection: %w", err)
		}
		index = qd
	default:
		index = semantic.NewMemory()
	}

	store := docstore.New(docstore.DefaultChunkOptions())

	pipeline := ingest.NewPipeline(ingest.Deps{
		Store:    store,
		Embedder: embedder,
		Index:    index,
		Logger:   logger,
	})

	svc := answer.New(
		understand.New(collab, understand.DefaultOptions(), logger),
		retrieve.New(embedder, index, store, retrieve.Options{K: cfg.TopK}, logger),
		match.New(match.DefaultOptions()),
		decide.New(decide.DefaultOptions()),
		summarizer,
		answer.Options{TopK: cfg.TopK, Metrics: engineMetrics},
		logger,
	)

	// --- Optional async ingest consumer ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var err error
		nc, err = nats.Connect(cfg.NATSURL, nats.Name("inception-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		if _, err := ingest.StartConsumer(nc, pipeline); err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		_, err = natsutil.Subscribe(nc, ingest.DoneSubject, logger, func(_ context.Context, d ingest.Done) {
			engineMetrics.Ingests.Inc()
			engineMetrics.Documents.Set(int64(store.Len()))
			logger.Info("document ingested", "doc_id", d.DocID, "passages", d.Passages)
		})
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		logger.Info("ingest consumer started", "subject", ingest.Subject)
	}

	// --- HTTP server ---
	api := &apiServer{
		svc:      svc,
		pipeline: pipeline,
		store:    store,
		index:    index,
		nc:       nc,
		metrics:  engineMetrics,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("POST /api/v1/hackrx/run", api.handleRun)
	mux.HandleFunc("POST /api/v1/documents", api.handleUpload)
	mux.HandleFunc("GET /api/v1/documents", api.handleListDocuments)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", api.handleDeleteDocument)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("inception-api"),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

type apiServer struct {
	svc      *answer.Service
	pipeline *ingest.Pipeline
	store    *docstore.Store
	index    semantic.Index
	nc       *nats.Conn // nil without NATS; uploads then run synchronously
	metrics  *metrics.Engine
	logger   *slog.Logger
}

func (a *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": a.store.Len(),
	})
}

// runRequest carries inline documents plus the question. Documents are
// upserted before the query runs, so re-posting the same corpus is allowed.
type runRequest struct {
	Documents []documentPayload `json:"documents"`
	Query     string            `json:"query"`
	K         int               `json:"k,omitempty"`
}

type documentPayload struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Pages    []domain.Page `json:"pages"`
}

func (a *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.E(domain.KindIngest, "invalid request body", err))
		return
	}

	start := time.Now()
	for _, dp := range req.Documents {
		doc := domain.Document{ID: dp.ID, Filename: dp.Filename, Pages: dp.Pages}
		_, known := a.store.Document(dp.ID)
		if _, err := a.pipeline.RunDocument(r.Context(), doc, known); err != nil {
			a.metrics.IngestFailures.Inc()
			a.logger.Error("inline ingest failed", "doc_id", dp.ID, "err", err)
			writeError(w, err)
			return
		}
		a.metrics.Ingests.Inc()
	}
	if len(req.Documents) > 0 {
		a.metrics.IngestSeconds.Since(start)
		a.metrics.Documents.Set(int64(a.store.Len()))
	}

	res, err := a.svc.Ask(r.Context(), req.Query, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUpload accepts a raw document upload. With NATS configured the
// upload is queued for the ingest worker; otherwise it is processed in the
// request.
func (a *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	var up ingest.Upload
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, domain.E(domain.KindIngest, "invalid request body", err))
		return
	}

	if a.nc != nil {
		if err := natsutil.Publish(r.Context(), a.nc, ingest.Subject, up); err != nil {
			writeError(w, fmt.Errorf("queue upload: %w", err))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "doc_id": up.DocID})
		return
	}

	start := time.Now()
	passages, err := a.pipeline.Run(r.Context(), up)
	if err != nil {
		a.metrics.IngestFailures.Inc()
		writeError(w, err)
		return
	}
	a.metrics.Ingests.Inc()
	a.metrics.IngestSeconds.Since(start)
	a.metrics.Documents.Set(int64(a.store.Len()))
	writeJSON(w, http.StatusCreated, map[string]any{"doc_id": up.DocID, "passages": passages})
}

func (a *apiServer) handleListDocuments(w http.ResponseWriter, _ *http.Request) {
	docs := a.store.Documents()
	type docInfo struct {
		ID         string    `json:"id"`
		Filename   string    `json:"filename"`
		Pages      int       `json:"pages"`
		IngestedAt time.Time `json:"ingested_at"`
	}
	out := make([]docInfo, len(docs))
	for i, d := range docs {
		out[i] = docInfo{ID: d.ID, Filename: d.Filename, Pages: len(d.Pages), IngestedAt: d.IngestedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	if err := a.index.RemoveDocument(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	a.metrics.Documents.Set(int64(a.store.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// errorBody is the {kind, message} error object surfaced to callers.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindEmptyQuery, domain.KindIngest:
		status = http.StatusBadRequest
	case domain.KindTimeout:
		status = http.StatusGatewayTimeout
	case domain.KindCollaborator:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorBody{Kind: string(kind), Message: domain.MessageOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
