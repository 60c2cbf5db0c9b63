package api

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medialens/medialens/internal/analyze"
	lenserr "github.com/medialens/medialens/internal/errors"
	"github.com/medialens/medialens/internal/fingerprint"
	"github.com/medialens/medialens/internal/index"
	"github.com/medialens/medialens/internal/search"
	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

// stubAnalyzer tags every file with its base name and embeds a fixed
// vector, enough to exercise the full pipeline.
type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(ctx context.Context, path string, mediaType store.MediaType) (*analyze.Analysis, error) {
	summary := "clip " + filepath.Base(path)
	return &analyze.Analysis{
		Tags:            []string{filepath.Base(path)},
		Summary:         &summary,
		Embedding:       []float32{1, 0, 0},
		ModelIdentifier: "stub-v1",
	}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newService(t *testing.T) *Service {
	t.Helper()

	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	vx, err := vector.New(vector.DefaultConfig(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vx.Close() })

	prints, err := fingerprint.New(fingerprint.ModeStat, 0)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	coord := index.New(s, vx, stubAnalyzer{}, prints, index.DefaultConfig(), logger)
	t.Cleanup(func() { _ = coord.Close() })

	engine := search.NewEngine(s, vx, stubEmbedder{}, search.DefaultConfig(), logger)

	return New(s, coord, engine, vx, logger)
}

func writeMedia(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("frames"), 0o644))
	return path
}

func TestProcessThenSearchAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeMedia(t, dir, "sunset.mp4")
	rec, err := svc.Process(ctx, path, false)
	require.NoError(t, err)
	assert.Equal(t, store.StatusIndexed, rec.Status)

	resp, err := svc.Search(ctx, search.Options{Query: "sunset"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, rec.ID, resp.Results[0].Record.ID)

	list, err := svc.List(ctx, store.Filters{}, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Records, 1)
	assert.Equal(t, rec.ID, list.Records[0].ID)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Path, got.Path)
}

func TestProcessDirectory(t *testing.T) {
	svc := newService(t)
	dir := t.TempDir()
	writeMedia(t, dir, "a.mp4")
	writeMedia(t, dir, "b.jpg")

	summary, err := svc.ProcessDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Indexed)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.Records[store.StatusIndexed])
	assert.Equal(t, 2, status.VectorCount)
	assert.Zero(t, status.InFlight)
}

func TestSearch_ValidatesInput(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, search.Options{Query: ""})
	assert.True(t, lenserr.HasCode(err, lenserr.ErrCodeConfigInvalid))

	_, err = svc.Search(ctx, search.Options{Query: "x", Limit: -1})
	assert.True(t, lenserr.HasCode(err, lenserr.ErrCodeConfigInvalid))

	_, err = svc.Search(ctx, search.Options{Query: "x", Filters: store.Filters{MediaType: "audio"}})
	assert.True(t, lenserr.HasCode(err, lenserr.ErrCodeConfigInvalid))
}

func TestList_ValidatesInput(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, store.Filters{}, "alphabetical", 10, 0)
	assert.True(t, lenserr.HasCode(err, lenserr.ErrCodeConfigInvalid))

	_, err = svc.List(ctx, store.Filters{}, "", 10, -1)
	assert.True(t, lenserr.HasCode(err, lenserr.ErrCodeConfigInvalid))

	// Oversized limits are clamped, not rejected.
	list, err := svc.List(ctx, store.Filters{}, "", MaxPageSize*10, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, list.Limit)
}

func TestProcess_RequiresPath(t *testing.T) {
	svc := newService(t)

	_, err := svc.Process(context.Background(), "", false)
	assert.True(t, lenserr.HasCode(err, lenserr.ErrCodeConfigInvalid))
}
