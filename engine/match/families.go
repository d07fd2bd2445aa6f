package match

import (
	"strings"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/pkg/fn"
)

// Marker families for polarity detection. Order of evaluation matters:
// negation/exclusion markers are checked first so "not covered" never
// classifies as support, then limitation markers, then affirmative ones.
var (
	exclusionMarkers = []string{
		"not covered", "no coverage", "not be covered", "does not cover",
		"excluded", "exclusion", "not eligible", "ineligible",
		"denied", "shall not", "will not", "except for", "does not apply",
	}
	limitMarkers = []string{
		"deductible", "maximum", "limit", "cap of", "capped", "up to",
		"co-pay", "copay", "coinsurance", "waiting period", "subject to",
		"per incident", "per year", "no more than",
	}
	supportMarkers = []string{
		"covered", "coverage", "eligible", "included", "reimburse",
		"payable", "benefit", "entitled", "required", "must be",
		"provided that", "authorization", "medically necessary",
	}
)

// extraLimitMarkers sharpen detection when the query itself asks about
// limits or deductibles.
var extraLimitMarkers = []string{"threshold", "allowance", "quota"}

// markerTerms are decision vocabulary rather than query subject matter.
// They are stripped before measuring whether a passage talks about the
// same thing the question asks about.
var markerTerms = map[string]bool{
	"cover": true, "covered": true, "coverage": true,
	"exclude": true, "excluded": true, "exclusion": true,
	"eligible": true, "eligibility": true,
	"limit": true, "limitation": true, "deductible": true,
	"policy": true, "plan": true, "claim": true,
	"benefit": true, "insurance": true,
}

// subjectTerms strips decision vocabulary from the query terms, leaving
// the words that name what is being asked about. Queries made entirely of
// decision vocabulary keep their terms unchanged.
func subjectTerms(terms []string) []string {
	out := fn.Filter(terms, func(t string) bool { return !markerTerms[t] })
	if len(out) == 0 {
		return terms
	}
	return out
}

// families bundles the marker sets used for one classification run.
type families struct {
	exclusions []string
	limits     []string
	supports   []string
}

// familiesFor selects marker sets for the query intent.
func familiesFor(intent domain.Intent) families {
	f := families{
		exclusions: exclusionMarkers,
		limits:     limitMarkers,
		supports:   supportMarkers,
	}
	if intent == domain.IntentLimit {
		f.limits = append(append([]string{}, limitMarkers...), extraLimitMarkers...)
	}
	return f
}

// classify labels a single clause span. Exclusions take precedence over
// limits, limits over supports; anything unmatched is neutral.
func (f families) classify(span string) domain.Label {
	s := strings.ToLower(span)
	for _, m := range f.exclusions {
		if strings.Contains(s, m) {
			return domain.LabelExcludes
		}
	}
	for _, m := range f.limits {
		if strings.Contains(s, m) {
			return domain.LabelLimits
		}
	}
	for _, m := range f.supports {
		if strings.Contains(s, m) {
			return domain.LabelSupports
		}
	}
	return domain.LabelNeutral
}
