// Package main runs the async ingestion worker: a NATS consumer feeding the
// ingestion pipeline into a Qdrant-backed index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/inceptlabs/inception-engine/engine/docstore"
	"github.com/inceptlabs/inception-engine/engine/embed"
	"github.com/inceptlabs/inception-engine/engine/ingest"
	"github.com/inceptlabs/inception-engine/engine/semantic"
	"github.com/inceptlabs/inception-engine/pkg/ollama"
	"github.com/inceptlabs/inception-engine/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	NATSURL      string
	Collaborator string
	OllamaURL    string
	EmbedModel   string
	EmbedDims    int
	QdrantURL    string
	Collection   string
}

func loadConfig() Config {
	return Config{
		NATSURL:      envOr("NATS_URL", nats.DefaultURL),
		Collaborator: envOr("COLLABORATOR", "stub"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:   envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		EmbedDims:    envIntOr("EMBED_DIMENSIONS", embed.DefaultDimensions),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "passages"),
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
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		embedder embed.Embedder
		breaker  *resilience.Breaker
		limiter  *resilience.Limiter
	)
	if cfg.Collaborator == "ollama" {
		embedder = ollama.New(ollama.Options{
			BaseURL:    cfg.OllamaURL,
			EmbedModel: cfg.EmbedModel,
			Dimensions: cfg.EmbedDims,
		})
		breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
		limiter = resilience.NewLimiter(10, 20)
	} else {
		embedder = embed.NewHashing(cfg.EmbedDims)
	}

	index, err := semantic.NewQdrant(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("qdrant collection: %w", err)
	}

	pipeline := ingest.NewPipeline(ingest.Deps{
		Store:    docstore.New(docstore.DefaultChunkOptions()),
		Embedder: embedder,
		Index:    index,
		Breaker:  breaker,
		Limiter:  limiter,
		Logger:   logger,
	})

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("inception-ingest"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, pipeline)
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("ingest worker started", "subject", ingest.Subject, "nats", cfg.NATSURL)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
