// Package store provides durable persistence for media records plus the
// derived full-text index over their textual fields. The record table and
// the lexical index live in the same SQLite database so a single
// transaction covers both.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// MediaType identifies the kind of media a record describes.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
)

// Status is the lifecycle state of a record.
type Status string

const (
	// StatusPending marks a record discovered but not yet processed.
	StatusPending Status = "pending"
	// StatusProcessing marks a record with an in-flight job holding its lock.
	StatusProcessing Status = "processing"
	// StatusIndexed marks a record whose fingerprint and derived content
	// were written together.
	StatusIndexed Status = "indexed"
	// StatusFailed marks a failed attempt; the fingerprint is left
	// untouched so the file stays eligible for retry.
	StatusFailed Status = "failed"
)

// MediaRecord is one indexed media file.
// Summary, Description, TranscriptText and TranscriptLanguage are pointers
// because absence is distinct from the empty string.
type MediaRecord struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	MediaType    MediaType `json:"media_type"`
	SizeBytes    int64     `json:"size_bytes"`
	ModifiedTime time.Time `json:"modified_time"`

	DurationSeconds float64 `json:"duration_seconds"`
	Resolution      string  `json:"resolution,omitempty"`

	// Fingerprint is the change signature. It is only ever written
	// together with the derived fields below (Upsert is atomic).
	Fingerprint string `json:"fingerprint,omitempty"`

	// Tags keep model output order.
	Tags               []string `json:"tags"`
	Summary            *string  `json:"summary,omitempty"`
	Description        *string  `json:"description,omitempty"`
	TranscriptText     *string  `json:"transcript_text,omitempty"`
	TranscriptLanguage *string  `json:"transcript_language,omitempty"`

	// Embedding is the fixed-dimension vector, nil until computed.
	// Excluded from JSON output; it is storage detail, not API surface.
	Embedding []float32 `json:"-"`

	ProcessedAt       time.Time `json:"processed_at"`
	ProcessingSeconds float64   `json:"processing_seconds"`
	ModelIdentifier   string    `json:"model_identifier,omitempty"`

	Status        Status `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// HasEmbedding reports whether the record carries a non-empty vector.
func (r *MediaRecord) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// RecordID derives the stable, immutable record id from the canonical
// absolute path. Same derivation as the file ids in the original index.
func RecordID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:16]
}

// Filters narrows Query and SearchLexical results.
// Zero values mean "no filter".
type Filters struct {
	// MediaType matches exactly when non-empty.
	MediaType MediaType
	// Tag matches any tag by substring when non-empty.
	Tag string
	// DateFrom/DateTo bound processed_at inclusively when non-zero.
	DateFrom time.Time
	DateTo   time.Time
}

// Sort selects the ordering of Query results.
type Sort string

const (
	SortDateDesc     Sort = "date_desc"
	SortDateAsc      Sort = "date_asc"
	SortDurationDesc Sort = "duration_desc"
	SortDurationAsc  Sort = "duration_asc"
)

// LexicalResult is a single lexical search candidate.
type LexicalResult struct {
	ID          string
	Score       float64 // higher is better
	ProcessedAt time.Time
}

// RecordStore is the durable table of media records plus the derived
// lexical index. Writes are serialized; reads see consistent snapshots.
type RecordStore interface {
	// Upsert writes all fields of one record atomically, rebuilding its
	// lexical index entry in the same transaction.
	Upsert(ctx context.Context, rec *MediaRecord) error

	// Get returns a record by id, or ErrCodeNotFound.
	Get(ctx context.Context, id string) (*MediaRecord, error)

	// GetByPath returns a record by path (O(1) keyed lookup), or
	// ErrCodeNotFound.
	GetByPath(ctx context.Context, path string) (*MediaRecord, error)

	// EnsurePending creates the record in pending state if it does not
	// exist, and returns the stored record either way. Existing records
	// are never overwritten by this call.
	EnsurePending(ctx context.Context, rec *MediaRecord) (*MediaRecord, error)

	// MarkProcessing transitions a record to processing.
	MarkProcessing(ctx context.Context, id string) error

	// MarkFailed transitions a record to failed(reason). The fingerprint
	// and derived content are left untouched.
	MarkFailed(ctx context.Context, id, reason string) error

	// Delete removes a record and its lexical entry. Unknown ids are a
	// no-op.
	Delete(ctx context.Context, id string) error

	// Query returns a page of records matching the filters plus the total
	// match count, both computed in one snapshot.
	Query(ctx context.Context, f Filters, sort Sort, limit, offset int) ([]*MediaRecord, int, error)

	// SearchLexical returns candidates ranked by field-weighted term
	// relevance: tags above summary/description above transcript.
	SearchLexical(ctx context.Context, text string, f Filters, limit int) ([]*LexicalResult, error)

	// AllEmbeddings returns id -> vector for every record with an
	// embedding; used to rebuild the vector index on cold start.
	AllEmbeddings(ctx context.Context) (map[string][]float32, error)

	// CountByStatus returns record counts per lifecycle state.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	Close() error
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1
