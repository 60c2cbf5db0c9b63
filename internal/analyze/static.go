package analyze

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/medialens/medialens/internal/store"
)

// StaticModelIdentifier names the built-in offline backend.
const StaticModelIdentifier = "static-hash-v1"

// Hash-vector weights: whole tokens carry most of the signal, character
// trigrams catch partial matches.
const (
	tokenWeight  = 0.7
	ngramWeight  = 0.3
	ngramSize    = 3
	minTokenSize = 2
)

// StaticEmbedder produces deterministic hash-based embeddings without a
// model backend. Semantic quality is limited to term overlap, but index
// and query vectors live in the same space, which keeps the whole
// pipeline exercisable offline.
type StaticEmbedder struct {
	dimensions int
}

// NewStaticEmbedder creates an embedder with the given vector width.
func NewStaticEmbedder(dimensions int) *StaticEmbedder {
	return &StaticEmbedder{dimensions: dimensions}
}

// Verify interface implementation
var _ QueryEmbedder = (*StaticEmbedder)(nil)

// EmbedQuery implements QueryEmbedder.
func (e *StaticEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *StaticEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimensions)

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vec
	}

	for _, token := range splitWords(trimmed) {
		vec[hashToIndex(token, e.dimensions)] += tokenWeight
	}

	compact := compactAlnum(trimmed)
	for i := 0; i+ngramSize <= len(compact); i++ {
		vec[hashToIndex(compact[i:i+ngramSize], e.dimensions)] += ngramWeight
	}

	return normalize(vec)
}

// StaticAnalyzer derives tags and a summary from the file name alone and
// embeds them with StaticEmbedder. It stands in for a real vision/audio
// model when none is configured.
type StaticAnalyzer struct {
	embedder *StaticEmbedder
}

// NewStaticAnalyzer creates the offline analyzer.
func NewStaticAnalyzer(dimensions int) *StaticAnalyzer {
	return &StaticAnalyzer{embedder: NewStaticEmbedder(dimensions)}
}

// Verify interface implementation
var _ Analyzer = (*StaticAnalyzer)(nil)

// Analyze implements Analyzer.
func (a *StaticAnalyzer) Analyze(ctx context.Context, path string, mediaType store.MediaType) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	words := splitWords(base)

	// Parent directory names often carry album or shoot context.
	if parent := filepath.Base(filepath.Dir(path)); parent != "." && parent != string(filepath.Separator) {
		words = append(words, splitWords(parent)...)
	}

	tags := dedupe(words)
	summary := strings.Join(splitWords(base), " ")
	if summary == "" {
		summary = base
	}

	return &Analysis{
		Tags:            tags,
		Summary:         &summary,
		Embedding:       a.embedder.embed(strings.Join(tags, " ") + " " + summary),
		ModelIdentifier: StaticModelIdentifier,
	}, nil
}

// Embedder returns the paired query embedder, guaranteeing index and
// query vectors share a space.
func (a *StaticAnalyzer) Embedder() *StaticEmbedder {
	return a.embedder
}

func splitWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenSize {
			out = append(out, f)
		}
	}
	return out
}

func dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func compactAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalize(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vec
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
