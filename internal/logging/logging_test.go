package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_FileLoggingWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medialens.log")

	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path, Quiet: true})
	require.NoError(t, err)

	logger.Info("indexed", slog.String("id", "abc123"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"indexed"`)
	assert.Contains(t, string(data), `"id":"abc123"`)
}

func TestSetup_LevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medialens.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, Quiet: true})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestRotatingWriter_RotatesAtThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medialens.log")

	w, err := NewRotatingWriter(path, 1, 2) // 1 MiB threshold
	require.NoError(t, err)
	defer w.Close()

	line := []byte(strings.Repeat("x", 64*1024) + "\n")
	for i := 0; i < 20; i++ { // ~1.25 MiB total
		_, err := w.Write(line)
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1<<20))
}

func TestRotatingWriter_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medialens.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	line := []byte(strings.Repeat("x", 64*1024) + "\n")
	for i := 0; i < 60; i++ { // several rotations
		_, err := w.Write(line)
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}
