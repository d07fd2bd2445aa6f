// Package match scores and classifies retrieved passages against a query.
// This is where semantic similarity and polarity detection must agree before
// a clause is allowed to influence a decision: passages below the relevance
// floor are dropped outright, and surviving text is labelled clause by
// clause so one passage can simultaneously grant coverage and impose a
// deductible.
package match

import (
	"strings"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/retrieve"
	"github.com/inceptlabs/inception-engine/pkg/tokens"
)

// Options configures scoring.
type Options struct {
	// RelevanceFloor drops low-scoring passages before classification so
	// noise never reaches the decision evaluator.
	RelevanceFloor float64
	// SimilarityWeight and LexicalWeight blend the retrieval similarity
	// (normalized to [0,1]) with the query-term overlap boost. They should
	// sum to 1.
	SimilarityWeight float64
	LexicalWeight    float64
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{
		RelevanceFloor:   0.2,
		SimilarityWeight: 0.65,
		LexicalWeight:    0.35,
	}
}

// Matcher classifies retrieved passages.
type Matcher struct {
	opts Options
}

// New creates a Matcher.
func New(opts Options) *Matcher {
	d := DefaultOptions()
	if opts.RelevanceFloor <= 0 {
		opts.RelevanceFloor = d.RelevanceFloor
	}
	if opts.SimilarityWeight <= 0 && opts.LexicalWeight <= 0 {
		opts.SimilarityWeight = d.SimilarityWeight
		opts.LexicalWeight = d.LexicalWeight
	}
	return &Matcher{opts: opts}
}

// Classify produces clause matches for each surviving passage, preserving
// retrieval order. A passage yields at most one match per label: its clause
// spans are classified individually and grouped, so mixed-polarity passages
// surface every polarity they contain.
func (m *Matcher) Classify(q domain.Query, passages []retrieve.Scored) []domain.ClauseMatch {
	fams := familiesFor(q.Intent)
	var out []domain.ClauseMatch

	for _, sp := range passages {
		score := m.score(q, sp)
		if score < m.opts.RelevanceFloor {
			continue
		}

		grouped := make(map[domain.Label][]string)
		for _, span := range splitClauses(sp.Passage.Text) {
			label := fams.classify(span)
			grouped[label] = append(grouped[label], span)
		}

		emitted := false
		// Fixed label order keeps output deterministic within a passage.
		for _, label := range []domain.Label{domain.LabelExcludes, domain.LabelLimits, domain.LabelSupports} {
			spans, ok := grouped[label]
			if !ok {
				continue
			}
			out = append(out, clauseMatch(sp, score, label, strings.Join(spans, "; ")))
			emitted = true
		}
		if !emitted {
			out = append(out, clauseMatch(sp, score, domain.LabelNeutral, excerpt(sp.Passage.Text)))
		}
	}
	return out
}

// score blends normalized retrieval similarity with lexical overlap, then
// dampens passages that never mention the query's subject. Decision
// vocabulary ("covered", "excluded", "deductible") is shared by every
// clause in a policy, so without the subject factor an exclusions section
// about an unrelated procedure scores nearly as high as the clause the
// question is actually about.
func (m *Matcher) score(q domain.Query, sp retrieve.Scored) float64 {
	sim := (sp.Similarity + 1) / 2 // cosine [-1,1] -> [0,1]
	lex := tokens.Overlap(q.Terms, sp.Passage.Text)
	s := m.opts.SimilarityWeight*sim + m.opts.LexicalWeight*lex
	if subj := subjectTerms(q.Terms); len(subj) > 0 {
		s *= 0.5 + 0.5*tokens.Overlap(subj, sp.Passage.Text)
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func clauseMatch(sp retrieve.Scored, score float64, label domain.Label, text string) domain.ClauseMatch {
	return domain.ClauseMatch{
		PassageID:  sp.Passage.ID,
		DocumentID: sp.Passage.DocumentID,
		Document:   sp.Passage.Document,
		Page:       sp.Passage.Page,
		Score:      score,
		Label:      label,
		Excerpt:    text,
	}
}

// splitClauses segments passage text into clause-sized spans: sentences
// first, then comma-separated clauses when both sides are substantial.
func splitClauses(text string) []string {
	var spans []string
	for _, sentence := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == ';' || r == '!' || r == '?' || r == '\n'
	}) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		spans = append(spans, splitOnCommas(sentence)...)
	}
	return spans
}

// splitOnCommas breaks a sentence at ", " when each resulting part has at
// least three words, so short appositives stay attached. Splitting only at
// comma-space keeps numbers like $2,500 intact.
func splitOnCommas(sentence string) []string {
	parts := strings.Split(sentence, ", ")
	if len(parts) == 1 {
		return []string{sentence}
	}

	var out []string
	var pending string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if pending == "" {
			pending = part
			continue
		}
		if len(strings.Fields(pending)) >= 3 && len(strings.Fields(part)) >= 3 {
			out = append(out, pending)
			pending = part
		} else {
			pending = pending + ", " + part
		}
	}
	if pending != "" {
		out = append(out, pending)
	}
	return out
}

// excerpt bounds neutral match text for display.
func excerpt(text string) string {
	const maxRunes = 240
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes]) + "…"
}
