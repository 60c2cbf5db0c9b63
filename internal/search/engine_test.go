package search

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

// fakeEmbedder returns a fixed query vector, or an error.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type engineEnv struct {
	engine  *Engine
	store   *store.SQLiteStore
	vectors *vector.Index
}

func newEngineEnv(t *testing.T, embedder *fakeEmbedder, cfg Config) *engineEnv {
	t.Helper()

	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	vx, err := vector.New(vector.DefaultConfig(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vx.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	var eng *Engine
	if embedder == nil {
		eng = NewEngine(s, vx, nil, cfg, logger)
	} else {
		eng = NewEngine(s, vx, embedder, cfg, logger)
	}
	return &engineEnv{engine: eng, store: s, vectors: vx}
}

func (e *engineEnv) addRecord(t *testing.T, path string, tags []string, summary string, embedding []float32, mediaType store.MediaType) *store.MediaRecord {
	t.Helper()
	rec := &store.MediaRecord{
		ID:          store.RecordID(path),
		Path:        path,
		MediaType:   mediaType,
		Tags:        tags,
		Summary:     &summary,
		Embedding:   embedding,
		ProcessedAt: time.Now().UTC().Truncate(time.Second),
		Status:      store.StatusIndexed,
	}
	require.NoError(t, e.store.Upsert(context.Background(), rec))
	if len(embedding) > 0 {
		require.NoError(t, e.vectors.Upsert(rec.ID, embedding))
	}
	return rec
}

func TestSearch_HybridCombinesBranches(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	env := newEngineEnv(t, embedder, DefaultConfig())

	// Matches both branches: tag hit and nearly identical vector.
	both := env.addRecord(t, "/m/sunset-beach.mp4", []string{"sunset"}, "Sunset at the beach",
		[]float32{0.98, 0.1, 0}, store.MediaTypeVideo)
	// Lexical only: tag hit, orthogonal vector.
	env.addRecord(t, "/m/sunset-city.mp4", []string{"sunset"}, "Sunset in the city",
		[]float32{0, 0, 1}, store.MediaTypeVideo)
	// Semantic only: no matching terms, close vector.
	env.addRecord(t, "/m/dusk.mp4", []string{"evening"}, "Dusk light",
		[]float32{0.95, 0.2, 0}, store.MediaTypeVideo)

	resp, err := env.engine.Search(context.Background(), Options{Query: "sunset"})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.False(t, resp.LexicalOnly)
	assert.Equal(t, both.ID, resp.Results[0].Record.ID)
	assert.Greater(t, resp.Results[0].LexicalScore, 0.0)
	assert.Greater(t, resp.Results[0].SemanticScore, 0.0)
}

func TestSearch_NoEmbedder_FallsBackToLexical(t *testing.T) {
	env := newEngineEnv(t, nil, DefaultConfig())
	env.addRecord(t, "/m/sunset.mp4", []string{"sunset"}, "Sunset clip",
		[]float32{1, 0, 0}, store.MediaTypeVideo)

	resp, err := env.engine.Search(context.Background(), Options{Query: "sunset"})
	require.NoError(t, err)

	assert.True(t, resp.LexicalOnly)
	require.Len(t, resp.Results, 1)
	assert.Zero(t, resp.Results[0].SemanticScore)
	// With the lexical weight at 1, a sole match scores full marks.
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
}

func TestSearch_EmbedderFailure_DegradesNotFails(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("model unavailable")}
	env := newEngineEnv(t, embedder, DefaultConfig())
	env.addRecord(t, "/m/sunset.mp4", []string{"sunset"}, "Sunset clip",
		[]float32{1, 0, 0}, store.MediaTypeVideo)

	resp, err := env.engine.Search(context.Background(), Options{Query: "sunset"})
	require.NoError(t, err)

	assert.True(t, resp.LexicalOnly)
	require.Len(t, resp.Results, 1)
}

func TestSearch_MinScoreCutoff(t *testing.T) {
	env := newEngineEnv(t, nil, DefaultConfig())
	env.addRecord(t, "/m/sunset.mp4", []string{"sunset"}, "Sunset clip",
		nil, store.MediaTypeVideo)

	resp, err := env.engine.Search(context.Background(), Options{Query: "sunset", MinScore: 1.01})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestSearch_FiltersApplyToSemanticCandidates(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	env := newEngineEnv(t, embedder, DefaultConfig())

	// Semantically close but the wrong media type: must be filtered out
	// even though the vector index knows nothing about filters.
	env.addRecord(t, "/m/close.jpg", []string{"evening"}, "Evening shot",
		[]float32{0.99, 0.05, 0}, store.MediaTypeImage)
	video := env.addRecord(t, "/m/sunset.mp4", []string{"sunset"}, "Sunset clip",
		[]float32{0.9, 0.3, 0}, store.MediaTypeVideo)

	resp, err := env.engine.Search(context.Background(), Options{
		Query:   "sunset evening",
		Filters: store.Filters{MediaType: store.MediaTypeVideo},
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, video.ID, resp.Results[0].Record.ID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	env := newEngineEnv(t, nil, DefaultConfig())

	resp, err := env.engine.Search(context.Background(), Options{Query: "   "})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestSearch_TotalCountsBeyondLimit(t *testing.T) {
	env := newEngineEnv(t, nil, DefaultConfig())
	paths := []string{"/m/a.mp4", "/m/b.mp4", "/m/c.mp4", "/m/d.mp4"}
	for _, p := range paths {
		env.addRecord(t, p, []string{"sunset"}, "Sunset take", nil, store.MediaTypeVideo)
	}

	resp, err := env.engine.Search(context.Background(), Options{Query: "sunset", Limit: 2})
	require.NoError(t, err)

	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 4, resp.Total)
}

func TestSearch_OffsetPaginatesWithoutOverlap(t *testing.T) {
	env := newEngineEnv(t, nil, DefaultConfig())
	paths := []string{"/m/a.mp4", "/m/b.mp4", "/m/c.mp4", "/m/d.mp4", "/m/e.mp4"}
	for _, p := range paths {
		env.addRecord(t, p, []string{"sunset"}, "Sunset take", nil, store.MediaTypeVideo)
	}

	first, err := env.engine.Search(context.Background(), Options{Query: "sunset", Limit: 2})
	require.NoError(t, err)
	second, err := env.engine.Search(context.Background(), Options{Query: "sunset", Limit: 2, Offset: 2})
	require.NoError(t, err)
	third, err := env.engine.Search(context.Background(), Options{Query: "sunset", Limit: 2, Offset: 4})
	require.NoError(t, err)

	assert.Equal(t, 5, first.Total)
	assert.Len(t, first.Results, 2)
	assert.Len(t, second.Results, 2)
	assert.Len(t, third.Results, 1)

	seen := map[string]bool{}
	for _, page := range [][]Result{first.Results, second.Results, third.Results} {
		for _, r := range page {
			assert.False(t, seen[r.Record.ID])
			seen[r.Record.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestSearch_ContextCancelled(t *testing.T) {
	env := newEngineEnv(t, nil, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.engine.Search(ctx, Options{Query: "sunset"})
	assert.Error(t, err)
}
