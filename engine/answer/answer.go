// Package answer orchestrates the query pipeline. It accepts a raw question,
// parses it, retrieves relevant passages, classifies their polarity, fuses a
// verdict, and assembles the structured response.
package answer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/inceptlabs/inception-engine/engine/assemble"
	"github.com/inceptlabs/inception-engine/engine/decide"
	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/llm"
	"github.com/inceptlabs/inception-engine/engine/match"
	"github.com/inceptlabs/inception-engine/engine/retrieve"
	"github.com/inceptlabs/inception-engine/engine/understand"
	"github.com/inceptlabs/inception-engine/pkg/metrics"
)

// Options configures the pipeline behaviour.
type Options struct {
	TopK             int
	SummarizeTimeout time.Duration
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Engine
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:             retrieve.DefaultK,
		SummarizeTimeout: 5 * time.Second,
	}
}

// Service is the pipeline orchestration service.
type Service struct {
	parser     *understand.Parser
	retriever  *retrieve.Retriever
	matcher    *match.Matcher
	evaluator  *decide.Evaluator
	summarizer llm.Summarizer
	opts       Options
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New creates the orchestration service. summarizer may be nil; summaries
// then come from the deterministic template.
func New(parser *understand.Parser, retriever *retrieve.Retriever, matcher *match.Matcher, evaluator *decide.Evaluator, summarizer llm.Summarizer, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieve.DefaultK
	}
	if opts.SummarizeTimeout <= 0 {
		opts.SummarizeTimeout = 5 * time.Second
	}
	return &Service{
		parser:     parser,
		retriever:  retriever,
		matcher:    matcher,
		evaluator:  evaluator,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
		tracer:     otel.Tracer("engine/answer"),
	}
}

// Ask runs the full pipeline for one question. k bounds how many passages
// are retrieved; zero or negative means the configured default. It fails
// only on invalid input or a retrieval-layer error; collaborator trouble
// degrades to fallback behaviour instead.
func (s *Service) Ask(ctx context.Context, raw string, k int) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "answer.Ask")
	defer span.End()

	if k <= 0 {
		k = s.opts.TopK
	}

	start := time.Now()
	s.logger.Info("pipeline start", "question_len", len(raw), "k", k)

	q, err := s.parser.Parse(ctx, raw)
	if err != nil {
		return domain.Result{}, err
	}
	span.SetAttributes(
		attribute.String("query.intent", string(q.Intent)),
		attribute.Bool("query.fallback", q.Fallback),
	)

	scored, err := s.retriever.Retrieve(ctx, q, k)
	if err != nil {
		if domain.KindOf(err) != domain.KindCollaborator {
			return domain.Result{}, err
		}
		// An unreachable embedding backend degrades the answer instead of
		// failing the request. Ingestion stays strict; queries do not.
		s.logger.Warn("retrieval collaborator unavailable, answering indeterminate", "err", err)
		return s.degraded(q, start), nil
	}

	matches := s.matcher.Classify(q, scored)
	decision := s.evaluator.Evaluate(matches)
	span.SetAttributes(
		attribute.Int("matches", len(matches)),
		attribute.String("decision", string(decision.Label)),
	)

	summary := s.summarize(ctx, q, decision)

	res := assemble.Assemble(q, decision, matches, summary, time.Since(start))
	if m := s.opts.Metrics; m != nil {
		m.QuerySeconds.Since(start)
		m.Decision(string(decision.Label))
		if q.Fallback {
			m.Fallbacks.Inc()
		}
	}
	s.logger.Info("pipeline done",
		"decision", decision.Label,
		"confidence", decision.Confidence,
		"matches", len(matches),
		"elapsed", time.Since(start))
	return res, nil
}

// degraded builds the indeterminate result returned when the evidence
// backend cannot be reached at query time.
func (s *Service) degraded(q domain.Query, start time.Time) domain.Result {
	d := domain.Decision{Label: domain.DecisionIndeterminate}
	summary := "The evidence backend is currently unavailable, so this question could not be evaluated against the document corpus. Please retry shortly."
	res := assemble.Assemble(q, d, nil, summary, time.Since(start))
	if m := s.opts.Metrics; m != nil {
		m.QuerySeconds.Since(start)
		m.Decision(string(d.Label))
		m.Fallbacks.Inc()
	}
	return res
}

// summarize asks the collaborator for a summary, falling back to the local
// template when it is unavailable, slow, or returns nothing.
func (s *Service) summarize(ctx context.Context, q domain.Query, d domain.Decision) string {
	clauses := make([]string, 0, len(d.Supporting)+len(d.Limiting)+len(d.Excluding))
	clauses = append(clauses, d.Supporting...)
	clauses = append(clauses, d.Limiting...)
	clauses = append(clauses, d.Excluding...)

	if s.summarizer == nil {
		return llm.TemplateSummary(q.Text, d.Label, clauses)
	}

	sumCtx, cancel := context.WithTimeout(ctx, s.opts.SummarizeTimeout)
	defer cancel()

	text, err := s.summarizer.Summarize(sumCtx, q.Text, d.Label, clauses)
	if err != nil || text == "" {
		if err != nil {
			s.logger.Warn("summarizer unavailable, using template", "err", err)
		}
		return llm.TemplateSummary(q.Text, d.Label, clauses)
	}
	return text
}
