package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/pkg/tokens"
)

// Stub is a deterministic local collaborator. It extracts terms lexically and
// tags intent from marker words, so the full pipeline runs offline with
// reproducible output.
type Stub struct{}

// NewStub creates the deterministic collaborator.
func NewStub() *Stub { return &Stub{} }

func (s *Stub) Understand(_ context.Context, text string) (Understanding, error) {
	return Understanding{
		Terms:  tokens.Terms(text),
		Intent: ruleIntent(text),
	}, nil
}

func (s *Stub) Summarize(_ context.Context, question string, label domain.DecisionLabel, clauses []string) (string, error) {
	return TemplateSummary(question, label, clauses), nil
}

// ruleIntent tags the decision intent from marker words in the question.
func ruleIntent(text string) domain.Intent {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "limit"), strings.Contains(t, "maximum"),
		strings.Contains(t, "deductible"), strings.Contains(t, "cap"):
		return domain.IntentLimit
	case strings.Contains(t, "cover"), strings.Contains(t, "exclu"),
		strings.Contains(t, "eligib"), strings.Contains(t, "claim"):
		return domain.IntentCoverage
	default:
		return domain.IntentGeneral
	}
}

// TemplateSummary is the fallback summary used when no model-backed
// summarizer is available or the collaborator call fails.
func TemplateSummary(question string, label domain.DecisionLabel, clauses []string) string {
	var verdict string
	switch label {
	case domain.DecisionCovered:
		verdict = "The reviewed documents indicate this is covered"
	case domain.DecisionNotCovered:
		verdict = "The reviewed documents indicate this is not covered"
	default:
		verdict = "The reviewed documents do not contain enough evidence to decide"
	}
	if len(clauses) == 0 {
		return verdict + "."
	}
	return fmt.Sprintf("%s, based on %d relevant clause(s), e.g.: %q.", verdict, len(clauses), clauses[0])
}
