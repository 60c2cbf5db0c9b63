// Package scanner discovers media files under a library root and streams
// them to the caller. Discovery is IO-bound and cheap; the expensive work
// happens later in the indexing pipeline, so results are streamed rather
// than collected.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/medialens/medialens/internal/store"
)

// DefaultMaxFileSize caps discovered files at 50 GiB; anything larger is
// reported as skipped rather than silently dropped.
const DefaultMaxFileSize = 50 << 30

// videoExtensions and imageExtensions are the recognized media formats.
var (
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".webm": {},
	}
	imageExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".bmp": {},
	}
)

// MediaTypeFor maps a path to its media type by extension.
// The second return is false for unrecognized extensions.
func MediaTypeFor(path string) (store.MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := videoExtensions[ext]; ok {
		return store.MediaTypeVideo, true
	}
	if _, ok := imageExtensions[ext]; ok {
		return store.MediaTypeImage, true
	}
	return "", false
}

// Options controls a scan.
type Options struct {
	// RootDir is the library root. Defaults to ".".
	RootDir string

	// MaxFileSize skips files larger than this many bytes.
	// Defaults to DefaultMaxFileSize.
	MaxFileSize int64

	// IncludeHidden descends into dot-directories and reports dot-files.
	IncludeHidden bool
}

// Result is one discovered media file, or a per-entry error.
// Err is set for entries that could not be read; the scan continues.
type Result struct {
	Path         string
	MediaType    store.MediaType
	SizeBytes    int64
	ModifiedTime time.Time
	Err          error
}

// Scan walks the library root and streams recognized media files.
// The channel closes when the walk finishes or ctx is cancelled.
func Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve library root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root is not a directory: %s", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	results := make(chan Result, 64)

	go func() {
		defer close(results)

		_ = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				select {
				case results <- Result{Path: path, Err: err}:
				case <-ctx.Done():
					return filepath.SkipAll
				}
				return nil
			}

			name := d.Name()
			if d.IsDir() {
				if !opts.IncludeHidden && path != absRoot && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
				return nil
			}

			mediaType, ok := MediaTypeFor(path)
			if !ok {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				select {
				case results <- Result{Path: path, Err: err}:
				case <-ctx.Done():
					return filepath.SkipAll
				}
				return nil
			}
			if fi.Size() > maxSize {
				select {
				case results <- Result{Path: path, Err: fmt.Errorf("file exceeds size limit (%d > %d bytes)", fi.Size(), maxSize)}:
				case <-ctx.Done():
					return filepath.SkipAll
				}
				return nil
			}

			select {
			case results <- Result{
				Path:         path,
				MediaType:    mediaType,
				SizeBytes:    fi.Size(),
				ModifiedTime: fi.ModTime(),
			}:
			case <-ctx.Done():
				return filepath.SkipAll
			}
			return nil
		})
	}()

	return results, nil
}
