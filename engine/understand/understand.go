// Package understand turns a free-text question into a structured query.
// Semantic extraction is delegated to the language-model collaborator; the
// deterministic guards (empty check, truncation, fallback, intent default)
// are applied locally so the pipeline never blocks on the collaborator.
package understand

import (
	"context"
	"log/slog"
	"time"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/llm"
	"github.com/inceptlabs/inception-engine/pkg/tokens"
)

// Options configures the parser guards.
type Options struct {
	// MaxQueryRunes bounds the text sent to the collaborator to cap
	// downstream cost. Longer queries are truncated, not rejected.
	MaxQueryRunes int
	// Timeout bounds the collaborator call; on expiry the parser falls
	// back to a term-only query instead of failing the request.
	Timeout time.Duration
}

// DefaultOptions returns sensible parser defaults.
func DefaultOptions() Options {
	return Options{
		MaxQueryRunes: 512,
		Timeout:       5 * time.Second,
	}
}

// Parser builds domain.Query values from raw text.
type Parser struct {
	collab llm.Understander
	opts   Options
	logger *slog.Logger
}

// New creates a Parser. A nil collaborator means every query takes the
// term-only path.
func New(collab llm.Understander, opts Options, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxQueryRunes <= 0 {
		opts.MaxQueryRunes = DefaultOptions().MaxQueryRunes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Parser{collab: collab, opts: opts, logger: logger}
}

// Parse validates, truncates, and structures raw question text.
func (p *Parser) Parse(ctx context.Context, raw string) (domain.Query, error) {
	if err := domain.ValidateQueryText(raw); err != nil {
		return domain.Query{}, err
	}

	text := truncate(raw, p.opts.MaxQueryRunes)

	if p.collab == nil {
		return p.fallback(text), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	u, err := p.collab.Understand(callCtx, text)
	if err != nil {
		p.logger.Warn("understand: collaborator failed, using term-only query", "err", err)
		return p.fallback(text), nil
	}

	q := domain.Query{Text: text, Terms: u.Terms, Intent: u.Intent}
	if len(q.Terms) == 0 {
		q.Terms = tokens.Terms(text)
	}
	if !domain.ValidIntents[q.Intent] {
		q.Intent = domain.IntentGeneral
	}
	return q, nil
}

// fallback builds a term-only query from the raw text.
func (p *Parser) fallback(text string) domain.Query {
	return domain.Query{
		Text:     text,
		Terms:    tokens.Terms(text),
		Intent:   domain.IntentGeneral,
		Fallback: true,
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
