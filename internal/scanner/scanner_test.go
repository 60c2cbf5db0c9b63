package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medialens/medialens/internal/store"
)

func collect(t *testing.T, ch <-chan Result) map[string]Result {
	t.Helper()
	out := make(map[string]Result)
	for r := range ch {
		out[filepath.Base(r.Path)] = r
	}
	return out
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScan_DiscoversMediaByExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "clip.mp4"))
	touch(t, filepath.Join(dir, "photo.JPG")) // case-insensitive
	touch(t, filepath.Join(dir, "nested", "deep.webm"))
	touch(t, filepath.Join(dir, "notes.txt"))

	ch, err := Scan(context.Background(), Options{RootDir: dir})
	require.NoError(t, err)
	results := collect(t, ch)

	require.Len(t, results, 3)
	assert.Equal(t, store.MediaTypeVideo, results["clip.mp4"].MediaType)
	assert.Equal(t, store.MediaTypeImage, results["photo.JPG"].MediaType)
	assert.Equal(t, store.MediaTypeVideo, results["deep.webm"].MediaType)
}

func TestScan_SkipsHiddenByDefault(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, ".cache", "thumb.png"))
	touch(t, filepath.Join(dir, ".hidden.mp4"))
	touch(t, filepath.Join(dir, "visible.mp4"))

	ch, err := Scan(context.Background(), Options{RootDir: dir})
	require.NoError(t, err)
	results := collect(t, ch)

	require.Len(t, results, 1)
	assert.Contains(t, results, "visible.mp4")

	ch, err = Scan(context.Background(), Options{RootDir: dir, IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, collect(t, ch), 3)
}

func TestScan_OversizeIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	ch, err := Scan(context.Background(), Options{RootDir: dir, MaxFileSize: 1024})
	require.NoError(t, err)
	results := collect(t, ch)

	require.Contains(t, results, "big.mp4")
	assert.Error(t, results["big.mp4"].Err)
}

func TestScan_RootMustBeDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mp4")
	touch(t, file)

	_, err := Scan(context.Background(), Options{RootDir: file})
	assert.Error(t, err)

	_, err = Scan(context.Background(), Options{RootDir: filepath.Join(dir, "absent")})
	assert.Error(t, err)
}

func TestMediaTypeFor(t *testing.T) {
	mt, ok := MediaTypeFor("/media/a.MOV")
	assert.True(t, ok)
	assert.Equal(t, store.MediaTypeVideo, mt)

	mt, ok = MediaTypeFor("/media/b.webp")
	assert.True(t, ok)
	assert.Equal(t, store.MediaTypeImage, mt)

	_, ok = MediaTypeFor("/media/c.txt")
	assert.False(t, ok)
}
