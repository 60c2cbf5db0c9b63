// Package search implements hybrid retrieval: lexical and semantic
// candidates fetched in parallel, fused by normalized weighted sum, cut
// off below a relevance floor.
package search

import (
	"time"

	"github.com/medialens/medialens/internal/store"
)

// Weights splits the combined score between the two branches.
// They are expected to sum to 1.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// Config controls ranking.
type Config struct {
	Weights Weights

	// MinScore drops fused results below this combined score.
	MinScore float64

	// CandidateMultiplier over-fetches each branch relative to the
	// requested limit so fusion has enough overlap to work with.
	CandidateMultiplier int

	// DefaultLimit applies when the caller passes no limit.
	DefaultLimit int
}

// DefaultConfig returns the stock ranking parameters: semantic-leaning
// weights and a cutoff tuned against the embedding model's score range.
func DefaultConfig() Config {
	return Config{
		Weights:             Weights{Lexical: 0.3, Semantic: 0.7},
		MinScore:            0.18,
		CandidateMultiplier: 3,
		DefaultLimit:        20,
	}
}

// Options is one search request.
type Options struct {
	Query   string
	Filters store.Filters

	// Limit and Offset paginate the ranked results. Total always counts
	// the full post-cutoff candidate set.
	Limit  int
	Offset int

	// MinScore overrides Config.MinScore when > 0.
	MinScore float64
}

// Result is one ranked hit. LexicalScore and SemanticScore are the
// normalized per-branch scores in [0, 1]; a branch that did not return
// the record contributes 0.
type Result struct {
	Record        *store.MediaRecord
	Score         float64
	LexicalScore  float64
	SemanticScore float64
}

// Response is a ranked result page.
type Response struct {
	Results []Result

	// Total counts all candidates that survived the cutoff, before the
	// limit was applied.
	Total int

	// LexicalOnly is set when the semantic branch was unavailable and
	// ranking degraded to lexical scores alone.
	LexicalOnly bool

	Took time.Duration
}
