// Package main answers a single question against a local document corpus,
// printing the structured decision as JSON. Useful for trying the pipeline
// without running the API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/inceptlabs/inception-engine/engine/answer"
	"github.com/inceptlabs/inception-engine/engine/decide"
	"github.com/inceptlabs/inception-engine/engine/docstore"
	"github.com/inceptlabs/inception-engine/engine/embed"
	"github.com/inceptlabs/inception-engine/engine/ingest"
	"github.com/inceptlabs/inception-engine/engine/llm"
	"github.com/inceptlabs/inception-engine/engine/match"
	"github.com/inceptlabs/inception-engine/engine/retrieve"
	"github.com/inceptlabs/inception-engine/engine/semantic"
	"github.com/inceptlabs/inception-engine/engine/understand"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ask <question> [docs-dir]")
		os.Exit(2)
	}
	question := os.Args[1]
	docsDir := "./docs"
	if len(os.Args) > 2 {
		docsDir = os.Args[2]
	}

	if err := run(question, docsDir, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(question, docsDir string, logger *slog.Logger) error {
	ctx := context.Background()

	store := docstore.New(docstore.DefaultChunkOptions())
	index := semantic.NewMemory()
	embedder := embed.NewHashing(embed.DefaultDimensions)
	stub := llm.NewStub()

	pipeline := ingest.NewPipeline(ingest.Deps{
		Store:    store,
		Embedder: embedder,
		Index:    index,
		Logger:   logger,
	})

	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return fmt.Errorf("read corpus dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(docsDir, e.Name()))
		if err != nil {
			return err
		}
		up := ingest.Upload{
			DocID:    strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Filename: e.Name(),
			Content:  data,
		}
		if _, err := pipeline.Run(ctx, up); err != nil {
			logger.Warn("skipping file", "file", e.Name(), "err", err)
		}
	}
	if store.Len() == 0 {
		return fmt.Errorf("no ingestable documents in %s", docsDir)
	}

	svc := answer.New(
		understand.New(stub, understand.DefaultOptions(), logger),
		retrieve.New(embedder, index, store, retrieve.DefaultOptions(), logger),
		match.New(match.DefaultOptions()),
		decide.New(decide.DefaultOptions()),
		stub,
		answer.DefaultOptions(),
		logger,
	)

	res, err := svc.Ask(ctx, question, 0)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
