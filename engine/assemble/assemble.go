// Package assemble builds the externally visible result structure. It never
// fails: missing upstream output degrades to an indeterminate result with
// empty lists.
package assemble

import (
	"fmt"
	"sort"
	"time"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/pkg/fn"
)

// Assemble produces the response contract from pipeline output. summary may
// be empty; elapsed is reported as the human-readable processingTime.
func Assemble(q domain.Query, d domain.Decision, matches []domain.ClauseMatch, summary string, elapsed time.Duration) domain.Result {
	if d.Label == "" {
		d.Label = domain.DecisionIndeterminate
	}

	res := domain.Result{
		Query:          q.Text,
		Confidence:     d.Confidence,
		ProcessingTime: fmt.Sprintf("%.1fs", elapsed.Seconds()),
		Decision:       d.Label,
		Summary:        summary,
		Details: domain.Details{
			Coverage:    coverageLine(d.Label),
			Conditions:  orEmpty(d.Supporting),
			Limitations: orEmpty(d.Limiting),
			Exclusions:  orEmpty(d.Excluding),
		},
		Sources: sources(matches),
	}
	if res.Summary == "" {
		res.Summary = coverageLine(d.Label)
	}
	return res
}

// coverageLine renders the one-line coverage statement from the verdict.
func coverageLine(label domain.DecisionLabel) string {
	switch label {
	case domain.DecisionCovered:
		return "Yes - covered under the reviewed policy documents"
	case domain.DecisionNotCovered:
		return "No - an exclusion in the reviewed documents applies"
	default:
		return "Unable to determine from the provided documents"
	}
}

// sources deduplicates citations by (document, page), keeping the strongest
// score, and ranks them by descending relevance. Ties order by document
// then page so output is stable.
func sources(matches []domain.ClauseMatch) []domain.Source {
	best := make(map[string]domain.Source)
	for _, m := range matches {
		if m.Document == "" {
			continue
		}
		key := fmt.Sprintf("%s#%d", m.Document, m.Page)
		rel := int(m.Score*100 + 0.5)
		if rel > 100 {
			rel = 100
		}
		if prev, ok := best[key]; !ok || rel > prev.Relevance {
			best[key] = domain.Source{Document: m.Document, Page: m.Page, Relevance: rel}
		}
	}

	out := make([]domain.Source, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		if out[i].Document != out[j].Document {
			return out[i].Document < out[j].Document
		}
		return out[i].Page < out[j].Page
	})
	return out
}

func orEmpty(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return fn.UniqueBy(xs, func(s string) string { return s })
}
