// Package main rebuilds the vector index from a directory of source
// documents. The index is a derived projection of the document store, so
// this is always safe to re-run; two runs over the same corpus produce
// identical rankings.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/inceptlabs/inception-engine/engine/docstore"
	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/embed"
	"github.com/inceptlabs/inception-engine/engine/extract"
	"github.com/inceptlabs/inception-engine/engine/ingest"
	"github.com/inceptlabs/inception-engine/engine/semantic"
	"github.com/inceptlabs/inception-engine/pkg/ollama"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("reindex failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	docsDir := envOr("DOCS_DIR", "./docs")
	qdrantURL := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "passages")

	var embedder embed.Embedder
	if envOr("COLLABORATOR", "stub") == "ollama" {
		embedder = ollama.New(ollama.Options{
			BaseURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
			EmbedModel: envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			Dimensions: dims(),
		})
	} else {
		embedder = embed.NewHashing(dims())
	}

	store := docstore.New(docstore.DefaultChunkOptions())
	if err := loadCorpus(ctx, store, docsDir, logger); err != nil {
		return err
	}

	index, err := semantic.NewQdrant(qdrantURL, collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("qdrant collection: %w", err)
	}

	n, err := ingest.Reindex(ctx, store, embedder, index)
	if err != nil {
		return err
	}
	logger.Info("reindex complete", "documents", store.Len(), "passages", n)
	return nil
}

func dims() int {
	if v := os.Getenv("EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return embed.DefaultDimensions
}

// loadCorpus extracts and chunks every supported file under dir.
// Unsupported formats are skipped with a warning rather than aborting the
// whole rebuild.
func loadCorpus(ctx context.Context, store *docstore.Store, dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read corpus dir: %w", err)
	}

	extractor := extract.Auto{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		pages, err := extractor.Extract(ctx, e.Name(), data)
		if err != nil {
			logger.Warn("skipping file", "file", e.Name(), "err", err)
			continue
		}
		doc := domain.Document{
			ID:         strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Filename:   e.Name(),
			Pages:      pages,
			IngestedAt: time.Now().UTC(),
		}
		if _, err := store.Ingest(doc); err != nil {
			return fmt.Errorf("ingest %s: %w", e.Name(), err)
		}
		logger.Info("loaded document", "file", e.Name(), "pages", len(pages))
	}
	return nil
}
