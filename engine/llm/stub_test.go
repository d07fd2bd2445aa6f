package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/inceptlabs/inception-engine/engine/domain"
)

func TestStub_Understand(t *testing.T) {
	s := NewStub()
	tests := []struct {
		text   string
		intent domain.Intent
		term   string
	}{
		{"Does this policy cover knee surgery?", domain.IntentCoverage, "knee"},
		{"What is the maximum coverage limit for emergency procedures?", domain.IntentLimit, "emergency"},
		{"What documentation is required for approval?", domain.IntentGeneral, "documentation"},
		{"Are there any exclusions for pre-existing conditions?", domain.IntentCoverage, "pre-existing"},
	}
	for _, tt := range tests {
		u, err := s.Understand(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("Understand(%q): %v", tt.text, err)
		}
		if u.Intent != tt.intent {
			t.Errorf("intent for %q = %s, want %s", tt.text, u.Intent, tt.intent)
		}
		found := false
		for _, term := range u.Terms {
			if term == tt.term {
				found = true
			}
		}
		if !found {
			t.Errorf("terms for %q = %v, missing %q", tt.text, u.Terms, tt.term)
		}
	}
}

func TestTemplateSummary(t *testing.T) {
	s := TemplateSummary("q", domain.DecisionCovered, []string{"knee surgery is covered"})
	if !strings.Contains(s, "is covered") || !strings.Contains(s, "knee surgery") {
		t.Errorf("unexpected summary: %s", s)
	}

	s = TemplateSummary("q", domain.DecisionIndeterminate, nil)
	if !strings.Contains(s, "not contain enough evidence") {
		t.Errorf("unexpected summary: %s", s)
	}

	s = TemplateSummary("q", domain.DecisionNotCovered, []string{"cosmetic procedures are not covered"})
	if !strings.Contains(s, "not covered") {
		t.Errorf("unexpected summary: %s", s)
	}
}
