package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_OverlapOutranksSingleBranch(t *testing.T) {
	now := time.Now()
	lexical := []scoredCandidate{
		{ID: "both", Score: 6.0, ProcessedAt: now},
		{ID: "lex-only", Score: 5.0, ProcessedAt: now},
		{ID: "lex-weak", Score: 1.0, ProcessedAt: now},
	}
	semantic := []scoredCandidate{
		{ID: "both", Score: 0.8, ProcessedAt: now},
		{ID: "sem-only", Score: 0.9, ProcessedAt: now},
		{ID: "sem-weak", Score: 0.1, ProcessedAt: now},
	}

	ranked := fuse(lexical, semantic, Weights{Lexical: 0.3, Semantic: 0.7})

	require.Len(t, ranked, 5)
	// Evidence from both branches beats the single-branch leaders.
	assert.Equal(t, "both", ranked[0].id)
	assert.Greater(t, ranked[0].combined, ranked[1].combined)
}

func TestFuse_MinMaxNormalization(t *testing.T) {
	lexical := []scoredCandidate{
		{ID: "best", Score: 10},
		{ID: "mid", Score: 6},
		{ID: "worst", Score: 2},
	}

	ranked := fuse(lexical, nil, Weights{Lexical: 1})

	require.Len(t, ranked, 3)
	assert.Equal(t, "best", ranked[0].id)
	assert.InDelta(t, 1.0, ranked[0].lexicalNorm, 1e-9)
	assert.InDelta(t, 0.5, ranked[1].lexicalNorm, 1e-9)
	assert.InDelta(t, 0.0, ranked[2].lexicalNorm, 1e-9)
}

func TestFuse_DegenerateRangeMapsToOne(t *testing.T) {
	ranked := fuse([]scoredCandidate{{ID: "only", Score: 3.7}}, nil, Weights{Lexical: 1})

	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.0, ranked[0].combined, 1e-9)
}

func TestFuse_MissingBranchContributesZero(t *testing.T) {
	lexical := []scoredCandidate{
		{ID: "a", Score: 10},
		{ID: "b", Score: 2},
	}
	semantic := []scoredCandidate{
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.1},
	}

	ranked := fuse(lexical, semantic, Weights{Lexical: 0.3, Semantic: 0.7})

	byID := make(map[string]fused)
	for _, f := range ranked {
		byID[f.id] = f
	}

	// "a" has only the lexical component: 0.3 * 1.0
	assert.InDelta(t, 0.3, byID["a"].combined, 1e-9)
	assert.Zero(t, byID["a"].semanticNorm)
	// "b" gets both: 0.3 * 0.0 + 0.7 * 1.0
	assert.InDelta(t, 0.7, byID["b"].combined, 1e-9)
	// "c" has only the semantic worst: 0.7 * 0.0
	assert.InDelta(t, 0.0, byID["c"].combined, 1e-9)
}

func TestFuse_MonotoneInSemanticScore(t *testing.T) {
	lexical := []scoredCandidate{
		{ID: "x", Score: 5},
		{ID: "y", Score: 5},
	}
	low := fuse(lexical, []scoredCandidate{
		{ID: "x", Score: 0.2},
		{ID: "y", Score: 0.8},
	}, Weights{Lexical: 0.3, Semantic: 0.7})
	high := fuse(lexical, []scoredCandidate{
		{ID: "x", Score: 0.9},
		{ID: "y", Score: 0.8},
	}, Weights{Lexical: 0.3, Semantic: 0.7})

	// Raising x's semantic score above y's must flip the order.
	assert.Equal(t, "y", low[0].id)
	assert.Equal(t, "x", high[0].id)
}

func TestFuse_TieBreaksByRecencyThenID(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	lexical := []scoredCandidate{
		{ID: "b-old", Score: 5, ProcessedAt: older},
		{ID: "a-new", Score: 5, ProcessedAt: newer},
		{ID: "c-old", Score: 5, ProcessedAt: older},
	}

	ranked := fuse(lexical, nil, Weights{Lexical: 1})

	require.Len(t, ranked, 3)
	assert.Equal(t, "a-new", ranked[0].id)
	assert.Equal(t, "b-old", ranked[1].id)
	assert.Equal(t, "c-old", ranked[2].id)
}
