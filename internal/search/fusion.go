package search

import (
	"sort"
	"time"
)

// branchScores carries one candidate's raw scores before normalization.
type branchScores struct {
	id          string
	lexical     float64
	semantic    float64
	hasLexical  bool
	hasSemantic bool
	processedAt time.Time
}

// fused is one candidate after normalization and weighting.
type fused struct {
	id           string
	combined     float64
	lexicalNorm  float64
	semanticNorm float64
	processedAt  time.Time
}

// scoredCandidate is a branch result fed into fusion.
type scoredCandidate struct {
	ID          string
	Score       float64
	ProcessedAt time.Time
}

// fuse merges the two candidate sets with a normalized weighted sum.
//
// Each branch's raw scores are min-max normalized to [0, 1] within its
// own result set, so BM25 magnitudes and cosine similarities become
// comparable. A candidate absent from a branch contributes 0 for that
// branch. Results are ordered by combined score descending, then
// processed_at descending, then id.
func fuse(lexical, semantic []scoredCandidate, w Weights) []fused {
	byID := make(map[string]*branchScores, len(lexical)+len(semantic))

	for _, c := range lexical {
		byID[c.ID] = &branchScores{
			id:          c.ID,
			lexical:     c.Score,
			hasLexical:  true,
			processedAt: c.ProcessedAt,
		}
	}
	for _, c := range semantic {
		if b, ok := byID[c.ID]; ok {
			b.semantic = c.Score
			b.hasSemantic = true
			if b.processedAt.IsZero() {
				b.processedAt = c.ProcessedAt
			}
			continue
		}
		byID[c.ID] = &branchScores{
			id:          c.ID,
			semantic:    c.Score,
			hasSemantic: true,
			processedAt: c.ProcessedAt,
		}
	}

	lexMin, lexMax := scoreRange(lexical)
	semMin, semMax := scoreRange(semantic)

	out := make([]fused, 0, len(byID))
	for _, b := range byID {
		var lexNorm, semNorm float64
		if b.hasLexical {
			lexNorm = normalize(b.lexical, lexMin, lexMax)
		}
		if b.hasSemantic {
			semNorm = normalize(b.semantic, semMin, semMax)
		}
		out = append(out, fused{
			id:           b.id,
			combined:     w.Lexical*lexNorm + w.Semantic*semNorm,
			lexicalNorm:  lexNorm,
			semanticNorm: semNorm,
			processedAt:  b.processedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].combined != out[j].combined {
			return out[i].combined > out[j].combined
		}
		if !out[i].processedAt.Equal(out[j].processedAt) {
			return out[i].processedAt.After(out[j].processedAt)
		}
		return out[i].id < out[j].id
	})

	return out
}

func scoreRange(cands []scoredCandidate) (min, max float64) {
	if len(cands) == 0 {
		return 0, 0
	}
	min, max = cands[0].Score, cands[0].Score
	for _, c := range cands[1:] {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}
	return min, max
}

// normalize maps v into [0, 1] within [min, max]. A degenerate range
// (single candidate or all-equal scores) maps to 1: the branch returned
// it, so it is that branch's best evidence.
func normalize(v, min, max float64) float64 {
	if max == min {
		return 1
	}
	return (v - min) / (max - min)
}
