package domain

import (
	"fmt"
	"strings"
)

// ValidateDocument checks a document before ingestion. Every page must carry
// extractable text; a single bad page aborts that document only.
func ValidateDocument(doc Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return E(KindIngest, "document", ErrEmptyDocumentID)
	}
	if len(doc.Pages) == 0 {
		return E(KindIngest, fmt.Sprintf("document %q", doc.ID), ErrNoPages)
	}
	for _, p := range doc.Pages {
		if strings.TrimSpace(p.Text) == "" {
			return E(KindIngest, fmt.Sprintf("document %q page %d", doc.ID, p.Number), ErrEmptyPage)
		}
	}
	return nil
}

// ValidateQueryText checks raw query text before any pipeline stage runs.
func ValidateQueryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return E(KindEmptyQuery, "query", ErrEmptyQuery)
	}
	return nil
}
