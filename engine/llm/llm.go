// Package llm defines the language-model collaborator capabilities the
// pipeline consumes: query understanding and summary generation. Both are
// pluggable so deterministic tests substitute the local stub.
package llm

import (
	"context"

	"github.com/inceptlabs/inception-engine/engine/domain"
)

// Understanding is the structured form extracted from a raw question.
type Understanding struct {
	Terms  []string      `json:"terms"`
	Intent domain.Intent `json:"intent"`
}

// Understander extracts topic terms and a decision intent from free text.
type Understander interface {
	Understand(ctx context.Context, text string) (Understanding, error)
}

// Summarizer produces a short natural-language summary of a decision from
// the question and the clause excerpts that drove it.
type Summarizer interface {
	Summarize(ctx context.Context, question string, label domain.DecisionLabel, clauses []string) (string, error)
}
