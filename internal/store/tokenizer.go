package store

import (
	"strings"
	"unicode"
)

// MinTokenLength is the minimum token length kept by the tokenizer.
const MinTokenLength = 2

// DefaultStopWords are common English words filtered from queries and
// indexed text. Tag vocabularies are short noun phrases, so a small list
// is enough.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"in", "is", "it", "of", "on", "or", "the", "to", "was", "with",
}

// BuildStopWordMap converts a stop word list to a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// Tokenize lowercases text and splits on any non-alphanumeric rune,
// dropping tokens shorter than MinTokenLength.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= MinTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stop map[string]struct{}) []string {
	if len(stop) == 0 {
		return tokens
	}
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := stop[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// buildMatchQuery turns user query text into an FTS5 MATCH expression.
// Tokens are double-quoted to neutralize FTS5 operators and joined with
// OR: any matching term qualifies a candidate, relevance ranking does the
// rest.
func buildMatchQuery(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}
