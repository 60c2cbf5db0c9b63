//go:build ignore

// Package main generates a synthetic media library for benchmarking.
// The files carry real media extensions and descriptive names so the
// scanner, fingerprinting, and the static analyzer all get realistic
// input, but the contents are random bytes.
// Usage: go run scripts/generate-test-corpus.go -files 500 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of media files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	maxKB     = flag.Int("max-kb", 256, "Maximum file size in KiB")
)

var videoExts = []string{".mp4", ".mov", ".mkv", ".avi", ".webm"}
var imageExts = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

var subjects = []string{
	"sunset", "birthday", "hiking", "beach", "concert", "graduation",
	"wedding", "roadtrip", "snowstorm", "barbecue", "marathon", "aquarium",
	"fireworks", "campfire", "harvest", "parade", "skyline", "waterfall",
}

var qualifiers = []string{
	"golden", "candid", "aerial", "slow", "night", "spring", "winter",
	"family", "closeup", "panorama", "timelapse", "vintage",
}

var folders = []string{
	"2023/summer", "2023/winter", "2024/spring", "2024/trips",
	"2025/events", "phone-backup", "camera-roll", "archive",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for i := 0; i < *numFiles; i++ {
		name := fileName(rng, i)
		dir := filepath.Join(*outputDir, folders[rng.Intn(len(folders))])
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, "mkdir:", err)
			os.Exit(1)
		}

		size := 1024 + rng.Intn(*maxKB*1024)
		data := make([]byte, size)
		rng.Read(data)

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("generated %d media files under %s\n", *numFiles, *outputDir)
}

// fileName builds names like "golden-sunset-0042.mp4" so the hash
// analyzer derives stable, overlapping tag sets across the corpus.
func fileName(rng *rand.Rand, i int) string {
	parts := []string{
		qualifiers[rng.Intn(len(qualifiers))],
		subjects[rng.Intn(len(subjects))],
		fmt.Sprintf("%04d", i),
	}
	ext := videoExts[rng.Intn(len(videoExts))]
	if rng.Intn(3) == 0 {
		ext = imageExts[rng.Intn(len(imageExts))]
	}
	return strings.Join(parts, "-") + ext
}
