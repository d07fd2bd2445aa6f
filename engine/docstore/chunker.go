package docstore

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/inceptlabs/inception-engine/engine/domain"
)

const (
	// DefaultMaxWords is the target number of words per passage.
	DefaultMaxWords = 120
	// DefaultOverlapWords is the number of words shared between adjacent
	// passages, so a clause falling on a boundary survives whole in at
	// least one passage.
	DefaultOverlapWords = 20
)

// ChunkOptions bounds passage size and overlap.
type ChunkOptions struct {
	MaxWords     int
	OverlapWords int
}

// DefaultChunkOptions returns the default chunking bounds.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{MaxWords: DefaultMaxWords, OverlapWords: DefaultOverlapWords}
}

// sentence is a sentence with its rune span within the page text.
type sentence struct {
	text  string
	start int
	end   int
}

// splitSentences splits page text into sentences using punctuation and
// newlines, tracking rune offsets for citation spans.
func splitSentences(text string) []sentence {
	var out []sentence
	runes := []rune(text)
	start := 0

	flush := func(end int) {
		raw := string(runes[start:end])
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lead := len([]rune(raw)) - len([]rune(strings.TrimLeft(raw, " \t\n\r")))
			out = append(out, sentence{
				text:  trimmed,
				start: start + lead,
				end:   start + lead + len([]rune(trimmed)),
			})
		}
		start = end
	}

	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if r == '\n' || i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	flush(len(runes))
	return out
}

// chunkPage groups a page's sentences into passages of at most MaxWords
// words with OverlapWords of trailing context carried forward.
func chunkPage(doc domain.Document, page domain.Page, opts ChunkOptions) []domain.Passage {
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	if opts.OverlapWords < 0 {
		opts.OverlapWords = 0
	}

	sentences := splitSentences(page.Text)
	if len(sentences) == 0 {
		return nil
	}

	var passages []domain.Passage
	idx := 0
	start := 0

	for start < len(sentences) {
		words := 0
		end := start
		for end < len(sentences) {
			w := wordCount(sentences[end].text)
			if words+w > opts.MaxWords && words > 0 {
				break
			}
			words += w
			end++
		}

		parts := make([]string, 0, end-start)
		for _, s := range sentences[start:end] {
			parts = append(parts, s.text)
		}

		passages = append(passages, domain.Passage{
			ID:         passageID(doc.ID, page.Number, idx),
			DocumentID: doc.ID,
			Document:   doc.Filename,
			Page:       page.Number,
			Start:      sentences[start].start,
			End:        sentences[end-1].end,
			Text:       strings.Join(parts, " "),
		})
		idx++

		if end == len(sentences) {
			break
		}

		// Step back far enough to carry OverlapWords of context.
		overlap := 0
		next := end
		for next > start && overlap < opts.OverlapWords {
			next--
			overlap += wordCount(sentences[next].text)
		}
		if next == start {
			next = end // forward progress for oversized sentences
		}
		start = next
	}
	return passages
}

// passageID derives a stable identifier from the passage's position, so
// re-chunking the same document reproduces identical ids.
func passageID(docID string, page, idx int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d-%d", docID, page, idx))).String()
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
