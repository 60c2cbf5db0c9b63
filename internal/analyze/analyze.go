// Package analyze defines the boundary to the inference collaborators:
// the media analyzer that turns a file into tags, text, and an embedding,
// and the query embedder that turns search text into a vector in the same
// space. The engine treats both as opaque; implementations live behind
// these interfaces.
package analyze

import (
	"context"

	"github.com/medialens/medialens/internal/store"
)

// Analysis is the full output of analyzing one media file.
type Analysis struct {
	// Tags in model output order; the order is preserved through storage.
	Tags []string

	// Summary, Description, TranscriptText and TranscriptLanguage are nil
	// when the analyzer produced nothing for the field (e.g. transcripts
	// for images).
	Summary            *string
	Description        *string
	TranscriptText     *string
	TranscriptLanguage *string

	// Embedding is the fixed-dimension semantic vector.
	Embedding []float32

	// DurationSeconds is zero for still images.
	DurationSeconds float64
	Resolution      string

	// ModelIdentifier names the model version that produced this output.
	ModelIdentifier string
}

// Analyzer produces derived content for a media file. Implementations
// must honor ctx cancellation; the coordinator applies the per-job
// timeout through it.
type Analyzer interface {
	Analyze(ctx context.Context, path string, mediaType store.MediaType) (*Analysis, error)
}

// QueryEmbedder embeds search text into the same vector space as stored
// media embeddings. Mixing embedders across index and query is a
// configuration error surfaced as a dimension mismatch at best.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
