// Package tokens provides the shared lexical normalization used by query
// understanding, clause matching, and the local hashing embedder. No external
// dependencies.
package tokens

import "strings"

// stopWords are dropped during term extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true,
	"at": true, "by": true, "from": true, "as": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"what": true, "where": true, "when": true, "how": true, "which": true,
	"who": true, "whom": true, "this": true, "that": true, "these": true,
	"those": true, "i": true, "me": true, "my": true, "it": true,
	"its": true, "and": true, "but": true, "or": true, "any": true,
	"there": true, "under": true, "if": true, "then": true, "than": true,
}

// Normalize lowercases a word, strips surrounding punctuation, and folds
// trivial plurals so "procedures" and "procedure" compare equal.
func Normalize(w string) string {
	w = strings.ToLower(strings.Trim(w, "?.,!;:'\"()[]"))
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		w = w[:len(w)-1]
	}
	return w
}

// Terms extracts normalized content words from text, preserving order and
// dropping stop words, duplicates, and fragments shorter than three runes.
func Terms(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(text) {
		n := Normalize(w)
		if len(n) < 3 || stopWords[n] {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// All extracts every normalized word from text, stop words included.
// The hashing embedder uses this so negations still shape the vector.
func All(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		n := Normalize(w)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Overlap returns the fraction of terms that occur in text, in [0, 1].
// Comparison is normalization-insensitive, so "cover" matches "covered"
// via shared prefix when the stem is at least four runes.
func Overlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		if n := Normalize(w); n != "" {
			present[n] = struct{}{}
		}
	}
	hits := 0
	for _, term := range terms {
		if _, ok := present[term]; ok {
			hits++
			continue
		}
		for p := range present {
			if sharedStem(term, p) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(terms))
}

// sharedStem reports whether one word is a prefix of the other and the
// common part is long enough to be meaningful.
func sharedStem(a, b string) bool {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	return len(short) >= 4 && strings.HasPrefix(long, short)
}
