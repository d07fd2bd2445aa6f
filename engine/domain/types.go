// Package domain defines core domain types, constants, and validation for the
// decision-engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// Page is one page of extracted document text.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document is an ingested source file. Documents are immutable once ingested;
// re-uploading replaces the whole document rather than mutating it.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Pages      []Page    `json:"pages"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Passage is a bounded, citable unit of document text. Passages are created
// during ingestion, never mutated, and removed only with their owning document.
type Passage struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Document   string    `json:"document"` // source filename, for citations
	Page       int       `json:"page"`
	Start      int       `json:"start"` // rune offset within the page text
	End        int       `json:"end"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// Intent is the decision-type a query is asking about.
type Intent string

const (
	IntentGeneral  Intent = "general"
	IntentCoverage Intent = "coverage-check"
	IntentLimit    Intent = "limit-check"
)

// ValidIntents is the set of recognised intent tags.
var ValidIntents = map[Intent]bool{
	IntentGeneral: true, IntentCoverage: true, IntentLimit: true,
}

// Query is a parsed question: the raw text plus its derived structured form.
// Queries are created per request and never persisted.
type Query struct {
	Text     string   `json:"text"`
	Terms    []string `json:"terms"`
	Intent   Intent   `json:"intent"`
	Fallback bool     `json:"fallback,omitempty"` // built without the language-model collaborator
}

// Label classifies a retrieved passage's polarity with respect to a query.
type Label string

const (
	LabelSupports Label = "supports"
	LabelLimits   Label = "limits"
	LabelExcludes Label = "excludes"
	LabelNeutral  Label = "neutral"
)

// ClauseMatch links one retrieved passage to one query. Ephemeral, produced
// fresh per query.
type ClauseMatch struct {
	PassageID  string  `json:"passage_id"`
	DocumentID string  `json:"document_id"`
	Document   string  `json:"document"`
	Page       int     `json:"page"`
	Score      float64 `json:"score"` // 0-1
	Label      Label   `json:"label"`
	Excerpt    string  `json:"excerpt"`
}

// DecisionLabel is the terminal verdict for a query.
type DecisionLabel string

const (
	DecisionCovered       DecisionLabel = "covered"
	DecisionNotCovered    DecisionLabel = "not_covered"
	DecisionIndeterminate DecisionLabel = "indeterminate"
)

// Decision is the fused verdict over all surviving clause matches.
type Decision struct {
	Label      DecisionLabel `json:"label"`
	Confidence int           `json:"confidence"` // 0-100
	Supporting []string      `json:"supporting"`
	Limiting   []string      `json:"limiting"`
	Excluding  []string      `json:"excluding"`
}

// Source is a ranked citation backing a decision.
type Source struct {
	Document  string `json:"document"`
	Page      int    `json:"page"`
	Relevance int    `json:"relevance"` // 0-100
}

// Details groups clause excerpts by polarity for the external contract.
type Details struct {
	Coverage    string   `json:"coverage"`
	Conditions  []string `json:"conditions"`
	Limitations []string `json:"limitations"`
	Exclusions  []string `json:"exclusions"`
}

// Result is the externally visible response. Field names follow the
// established client contract, including the camelCase processingTime.
type Result struct {
	Query          string        `json:"query"`
	Confidence     int           `json:"confidence"`
	ProcessingTime string        `json:"processingTime"`
	Decision       DecisionLabel `json:"decision"`
	Summary        string        `json:"summary"`
	Details        Details       `json:"details"`
	Sources        []Source      `json:"sources"`
}
