package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/medialens/medialens/internal/analyze"
	lenserr "github.com/medialens/medialens/internal/errors"
	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

// Engine runs hybrid searches over the record store and vector index.
// A nil embedder or vector index degrades every search to lexical-only.
type Engine struct {
	store    store.RecordStore
	vectors  *vector.Index
	embedder analyze.QueryEmbedder
	config   Config
	logger   *slog.Logger
}

// NewEngine creates a search engine. embedder and vectors may be nil.
func NewEngine(recordStore store.RecordStore, vectors *vector.Index, embedder analyze.QueryEmbedder, cfg Config, logger *slog.Logger) *Engine {
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 3
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    recordStore,
		vectors:  vectors,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}
}

// Search executes one hybrid query.
//
// Both branches run in parallel. A semantic branch failure is not fatal:
// the search degrades to lexical ranking and flags the response. Only
// the loss of both branches is an error.
func (e *Engine) Search(ctx context.Context, opts Options) (*Response, error) {
	start := time.Now()

	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return &Response{Results: []Result{}}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	minScore := e.config.MinScore
	if opts.MinScore > 0 {
		minScore = opts.MinScore
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	candidateK := (limit + offset) * e.config.CandidateMultiplier

	var (
		lexResults []*store.LexicalResult
		semResults []vector.Result
		lexErr     error
		semErr     error
	)

	// Branch errors are captured per branch, never returned from the
	// group: one branch failing must not cancel the other.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lexResults, lexErr = e.store.SearchLexical(gctx, query, opts.Filters, candidateK)
		return nil
	})

	g.Go(func() error {
		semResults, semErr = e.searchSemantic(gctx, query, candidateK)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lexicalOnly := false
	if semErr != nil {
		e.logger.Warn("semantic branch unavailable, ranking lexically",
			slog.String("error", semErr.Error()))
		semResults = nil
		lexicalOnly = true
	}
	if lexErr != nil {
		if semErr != nil {
			return nil, lexErr
		}
		e.logger.Warn("lexical branch failed, ranking semantically",
			slog.String("error", lexErr.Error()))
		lexResults = nil
	}

	// Hydrate candidates and apply filters the vector index cannot. The
	// lexical branch already filtered in SQL, but hydration needs the
	// records anyway.
	records := make(map[string]*store.MediaRecord)
	lexCands := make([]scoredCandidate, 0, len(lexResults))
	for _, r := range lexResults {
		rec, err := e.store.Get(ctx, r.ID)
		if err != nil {
			continue // index/store drift, skip
		}
		records[r.ID] = rec
		lexCands = append(lexCands, scoredCandidate{ID: r.ID, Score: r.Score, ProcessedAt: rec.ProcessedAt})
	}

	semCands := make([]scoredCandidate, 0, len(semResults))
	for _, r := range semResults {
		rec, ok := records[r.ID]
		if !ok {
			var err error
			rec, err = e.store.Get(ctx, r.ID)
			if err != nil {
				continue
			}
			records[r.ID] = rec
		}
		if !matchesFilters(rec, opts.Filters) {
			continue
		}
		semCands = append(semCands, scoredCandidate{ID: r.ID, Score: r.Score, ProcessedAt: rec.ProcessedAt})
	}

	weights := e.config.Weights
	if lexicalOnly {
		weights = Weights{Lexical: 1}
	}

	ranked := fuse(lexCands, semCands, weights)

	results := make([]Result, 0, limit)
	total := 0
	for _, f := range ranked {
		if f.combined < minScore {
			continue
		}
		total++
		if total <= offset {
			continue
		}
		if len(results) < limit {
			results = append(results, Result{
				Record:        records[f.id],
				Score:         f.combined,
				LexicalScore:  f.lexicalNorm,
				SemanticScore: f.semanticNorm,
			})
		}
	}

	return &Response{
		Results:     results,
		Total:       total,
		LexicalOnly: lexicalOnly,
		Took:        time.Since(start),
	}, nil
}

// searchSemantic embeds the query and searches the vector index.
func (e *Engine) searchSemantic(ctx context.Context, query string, k int) ([]vector.Result, error) {
	if e.embedder == nil || e.vectors == nil {
		return nil, lenserr.New(lenserr.ErrCodeInferenceFailed, "no query embedder configured", nil)
	}

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCodeInferenceFailed, err)
	}

	return e.vectors.SearchSimilar(ctx, vec, k)
}

// matchesFilters applies record-level filters to semantic candidates.
// Mirrors the SQL filter semantics in the store.
func matchesFilters(rec *store.MediaRecord, f store.Filters) bool {
	if f.MediaType != "" && rec.MediaType != f.MediaType {
		return false
	}
	if f.Tag != "" {
		needle := strings.ToLower(f.Tag)
		found := false
		for _, tag := range rec.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.DateFrom.IsZero() && rec.ProcessedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && rec.ProcessedAt.After(f.DateTo) {
		return false
	}
	return true
}
