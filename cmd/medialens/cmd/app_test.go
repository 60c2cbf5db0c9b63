package cmd

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func indexedRecord(path string, embedding []float32) *store.MediaRecord {
	return &store.MediaRecord{
		ID:              store.RecordID(path),
		Path:            path,
		MediaType:       store.MediaTypeVideo,
		SizeBytes:       2048,
		ModifiedTime:    time.Unix(1700000000, 0).UTC(),
		Fingerprint:     "stat:2048:1700000000",
		Embedding:       embedding,
		ProcessedAt:     time.Unix(1750000000, 0).UTC(),
		ModelIdentifier: "test-model",
		Status:          store.StatusIndexed,
	}
}

func newVectorIndex(t *testing.T) *vector.Index {
	t.Helper()
	vx, err := vector.New(vector.Config{Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vx.Close() })
	return vx
}

func TestRestoreVectors_RebuildsWhenSnapshotBehindStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	older := indexedRecord("/media/older.mp4", []float32{1, 0, 0})
	newer := indexedRecord("/media/newer.mp4", []float32{0, 1, 0})
	require.NoError(t, s.Upsert(ctx, older))

	// Snapshot written before the second record was indexed, as after a
	// crash between indexing and a clean shutdown.
	snapshot := filepath.Join(t.TempDir(), "vectors.hnsw")
	stale := newVectorIndex(t)
	require.NoError(t, stale.Upsert(older.ID, older.Embedding))
	require.NoError(t, stale.Save(snapshot))

	require.NoError(t, s.Upsert(ctx, newer))

	vx := newVectorIndex(t)
	require.NoError(t, restoreVectors(ctx, vx, s, snapshot, discardLogger()))

	assert.Equal(t, 2, vx.Count())
	assert.True(t, vx.Contains(older.ID))
	assert.True(t, vx.Contains(newer.ID))
}

func TestRestoreVectors_RebuildsWhenSnapshotHasOtherMembers(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	kept := indexedRecord("/media/kept.mp4", []float32{1, 0, 0})
	require.NoError(t, s.Upsert(ctx, kept))

	// Same count, different membership: the snapshot still holds a
	// record the store no longer has.
	snapshot := filepath.Join(t.TempDir(), "vectors.hnsw")
	stale := newVectorIndex(t)
	require.NoError(t, stale.Upsert(store.RecordID("/media/deleted.mp4"), []float32{0, 0, 1}))
	require.NoError(t, stale.Save(snapshot))

	vx := newVectorIndex(t)
	require.NoError(t, restoreVectors(ctx, vx, s, snapshot, discardLogger()))

	assert.Equal(t, 1, vx.Count())
	assert.True(t, vx.Contains(kept.ID))
	assert.False(t, vx.Contains(store.RecordID("/media/deleted.mp4")))
}

func TestRestoreVectors_MissingSnapshotRebuildsFromStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec := indexedRecord("/media/only.mp4", []float32{0, 1, 0})
	require.NoError(t, s.Upsert(ctx, rec))

	vx := newVectorIndex(t)
	missing := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, restoreVectors(ctx, vx, s, missing, discardLogger()))

	assert.Equal(t, 1, vx.Count())
	assert.True(t, vx.Contains(rec.ID))
}

func TestRestoreVectors_FreshSnapshotLoads(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec := indexedRecord("/media/fresh.mp4", []float32{1, 0, 0})
	require.NoError(t, s.Upsert(ctx, rec))

	snapshot := filepath.Join(t.TempDir(), "vectors.hnsw")
	saved := newVectorIndex(t)
	require.NoError(t, saved.Upsert(rec.ID, rec.Embedding))
	require.NoError(t, saved.Save(snapshot))

	vx := newVectorIndex(t)
	require.NoError(t, restoreVectors(ctx, vx, s, snapshot, discardLogger()))

	assert.Equal(t, 1, vx.Count())
	assert.True(t, vx.Contains(rec.ID))
}
