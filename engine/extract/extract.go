// Package extract turns uploaded files into page-structured text. PDF and
// plain-text formats are supported; everything else is rejected at the door
// so malformed uploads never reach the chunker.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/inceptlabs/inception-engine/engine/domain"
)

// MaxFileSize bounds uploads. Larger files are rejected before any parsing.
const MaxFileSize = 10 << 20 // 10 MiB

// Extractor is the text-extraction collaborator the ingestion pipeline
// consumes. Implementations are black boxes; the default dispatches on the
// filename extension.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) ([]domain.Page, error)
}

// Auto is the default Extractor over the built-in format handlers.
type Auto struct{}

func (Auto) Extract(_ context.Context, name string, data []byte) ([]domain.Page, error) {
	return Pages(name, data)
}

// Pages extracts page-structured text from an uploaded file, dispatching on
// the filename extension.
func Pages(filename string, data []byte) ([]domain.Page, error) {
	if len(data) == 0 {
		return nil, domain.E(domain.KindIngest, "file is empty", nil)
	}
	if len(data) > MaxFileSize {
		return nil, domain.E(domain.KindIngest,
			fmt.Sprintf("file exceeds %d byte limit", MaxFileSize), nil)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		return pdfPages(data)
	case ".txt", ".md":
		return textPages(data), nil
	default:
		return nil, domain.E(domain.KindIngest,
			fmt.Sprintf("unsupported file format %q", ext), nil)
	}
}

// pdfPages extracts one Page per PDF page. Pages with no extractable text
// are skipped rather than failing the document.
func pdfPages(data []byte) ([]domain.Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.E(domain.KindIngest, "parse pdf", err)
	}

	var pages []domain.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, domain.E(domain.KindIngest,
				fmt.Sprintf("extract pdf page %d", i), err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, domain.E(domain.KindIngest, "pdf has no extractable text", nil)
	}
	return pages, nil
}

// textPages splits plain text into pages at form feeds. Without form feeds
// the whole file is a single page.
func textPages(data []byte) []domain.Page {
	var pages []domain.Page
	for _, part := range strings.Split(string(data), "\f") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: len(pages) + 1, Text: part})
	}
	return pages
}
