// Package decide fuses classified clause matches into a single verdict.
// The precedence is fixed policy, not an implementation detail: strong
// exclusions first, then support, then default-indeterminate. False
// negatives are preferred over false positives in a compliance domain,
// so an exclusion clearing the threshold wins regardless of how strongly
// competing support evidence scores. Topicality is the matcher's job:
// by the time a match reaches the evaluator, its score already reflects
// how well the clause talks about the query's subject.
package decide

import (
	"math"

	"github.com/inceptlabs/inception-engine/engine/domain"
)

// Options configures the fusion thresholds.
type Options struct {
	// ExclusionOverride is the score above which an excludes match
	// forces not_covered.
	ExclusionOverride float64
	// LimitDampening controls how strongly limitation clauses reduce the
	// confidence of a covered verdict.
	LimitDampening float64
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{
		ExclusionOverride: 0.6,
		LimitDampening:    0.35,
	}
}

// Evaluator applies the fusion state machine.
type Evaluator struct {
	opts Options
}

// New creates an Evaluator.
func New(opts Options) *Evaluator {
	d := DefaultOptions()
	if opts.ExclusionOverride <= 0 {
		opts.ExclusionOverride = d.ExclusionOverride
	}
	if opts.LimitDampening <= 0 {
		opts.LimitDampening = d.LimitDampening
	}
	return &Evaluator{opts: opts}
}

// Evaluate fuses matches into a Decision.
func (e *Evaluator) Evaluate(matches []domain.ClauseMatch) domain.Decision {
	d := domain.Decision{
		Label:      domain.DecisionIndeterminate,
		Supporting: []string{},
		Limiting:   []string{},
		Excluding:  []string{},
	}

	var supScores, limScores []float64
	overriding := 0.0

	for _, m := range matches {
		switch m.Label {
		case domain.LabelSupports:
			d.Supporting = append(d.Supporting, m.Excerpt)
			supScores = append(supScores, m.Score)
		case domain.LabelLimits:
			d.Limiting = append(d.Limiting, m.Excerpt)
			limScores = append(limScores, m.Score)
		case domain.LabelExcludes:
			d.Excluding = append(d.Excluding, m.Excerpt)
			if m.Score > e.opts.ExclusionOverride && m.Score > overriding {
				overriding = m.Score
			}
		}
	}

	switch {
	case len(matches) == 0:
		// No evidence survived filtering.
		return d

	case overriding > 0:
		d.Label = domain.DecisionNotCovered
		d.Confidence = toPercent(overriding)

	case len(supScores) > 0:
		d.Label = domain.DecisionCovered
		conf := mean(supScores) * (1 - e.opts.LimitDampening*mean(limScores))
		d.Confidence = toPercent(conf)

	default:
		// Limits or neutral evidence only: not enough to decide.
		d.Label = domain.DecisionIndeterminate
		d.Confidence = 0
	}
	return d
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func toPercent(score float64) int {
	p := int(math.Round(score * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
