package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	lenserr "github.com/medialens/medialens/internal/errors"
)

// Column weights for bm25(): tag matches rank above summary/description,
// which rank above transcript. The id column is unindexed and weighted 0.
const (
	weightTags        = 4.0
	weightSummary     = 2.0
	weightDescription = 2.0
	weightTranscript  = 1.0
)

// SQLiteStore implements RecordStore on SQLite with FTS5.
// WAL mode lets readers proceed on a consistent snapshot while a write is
// in progress; writeMu enforces the single-writer discipline on top.
type SQLiteStore struct {
	writeMu   sync.Mutex
	db        *sql.DB
	path      string
	closed    bool
	closeMu   sync.RWMutex
	stopWords map[string]struct{}
}

// Verify interface implementation at compile time
var _ RecordStore = (*SQLiteStore)(nil)

// Open creates or opens the record store database.
// If path is empty, an in-memory store is created for testing.
func Open(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, lenserr.StoreError(fmt.Sprintf("create data directory %s", dir), err)
		}
		// busy_timeout handles lock contention gracefully
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, lenserr.StoreError("open database", err)
	}

	if path == "" {
		// A second connection to :memory: would be a second database.
		db.SetMaxOpenConns(1)
	} else {
		// One writer, a handful of snapshot readers.
		db.SetMaxOpenConns(4)
	}
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params may be
	// ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, lenserr.StoreError("set pragma", err)
		}
	}

	s := &SQLiteStore{
		db:        db,
		path:      path,
		stopWords: BuildStopWordMap(DefaultStopWords),
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, lenserr.StoreError("initialize schema", err)
	}

	return s, nil
}

// initSchema creates the record table, its indexes, and the colocated
// FTS5 lexical index.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS media_records (
		id                  TEXT PRIMARY KEY,
		path                TEXT NOT NULL UNIQUE,
		media_type          TEXT NOT NULL,
		size_bytes          INTEGER NOT NULL DEFAULT 0,
		modified_time       INTEGER,
		duration_seconds    REAL NOT NULL DEFAULT 0,
		resolution          TEXT NOT NULL DEFAULT '',
		fingerprint         TEXT NOT NULL DEFAULT '',
		tags                TEXT NOT NULL DEFAULT '[]',
		summary             TEXT,
		description         TEXT,
		transcript_text     TEXT,
		transcript_language TEXT,
		embedding           BLOB,
		processed_at        INTEGER,
		processing_seconds  REAL NOT NULL DEFAULT 0,
		model_identifier    TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL DEFAULT 'pending',
		failure_reason      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_media_records_processed_at ON media_records(processed_at);
	CREATE INDEX IF NOT EXISTS idx_media_records_media_type ON media_records(media_type);

	-- Derived lexical index, rebuilt from the record on every upsert.
	CREATE VIRTUAL TABLE IF NOT EXISTS media_fts USING fts5(
		id UNINDEXED,
		tags,
		summary,
		description,
		transcript,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Upsert writes all fields of one record and rebuilds its lexical index
// entry inside a single transaction. A reader never observes a fresh
// fingerprint paired with stale derived content.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *MediaRecord) error {
	if rec.ID == "" {
		rec.ID = RecordID(rec.Path)
	}

	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return lenserr.InternalError("encode tags", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lenserr.StoreError("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO media_records (
			id, path, media_type, size_bytes, modified_time,
			duration_seconds, resolution, fingerprint, tags,
			summary, description, transcript_text, transcript_language,
			embedding, processed_at, processing_seconds, model_identifier,
			status, failure_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path                = excluded.path,
			media_type          = excluded.media_type,
			size_bytes          = excluded.size_bytes,
			modified_time       = excluded.modified_time,
			duration_seconds    = excluded.duration_seconds,
			resolution          = excluded.resolution,
			fingerprint         = excluded.fingerprint,
			tags                = excluded.tags,
			summary             = excluded.summary,
			description         = excluded.description,
			transcript_text     = excluded.transcript_text,
			transcript_language = excluded.transcript_language,
			embedding           = excluded.embedding,
			processed_at        = excluded.processed_at,
			processing_seconds  = excluded.processing_seconds,
			model_identifier    = excluded.model_identifier,
			status              = excluded.status,
			failure_reason      = excluded.failure_reason`,
		rec.ID, rec.Path, string(rec.MediaType), rec.SizeBytes, unixOrNil(rec.ModifiedTime),
		rec.DurationSeconds, rec.Resolution, rec.Fingerprint, string(tagsJSON),
		rec.Summary, rec.Description, rec.TranscriptText, rec.TranscriptLanguage,
		encodeEmbedding(rec.Embedding), unixOrNil(rec.ProcessedAt), rec.ProcessingSeconds,
		rec.ModelIdentifier, string(rec.Status), rec.FailureReason,
	)
	if err != nil {
		return lenserr.WriteError("upsert record "+rec.ID, err)
	}

	// Rebuild the FTS row. FTS5 has no REPLACE, so delete + insert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM media_fts WHERE id = ?`, rec.ID); err != nil {
		return lenserr.WriteError("clear lexical entry "+rec.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO media_fts (id, tags, summary, description, transcript)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		strings.Join(rec.Tags, " "),
		deref(rec.Summary),
		deref(rec.Description),
		deref(rec.TranscriptText),
	); err != nil {
		return lenserr.WriteError("index lexical entry "+rec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return lenserr.WriteError("commit upsert "+rec.ID, err)
	}
	return nil
}

// Get returns a record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*MediaRecord, error) {
	return s.getWhere(ctx, "id = ?", id)
}

// GetByPath returns a record by path; the unique path index makes the
// lookup O(1) relative to library size.
func (s *SQLiteStore) GetByPath(ctx context.Context, path string) (*MediaRecord, error) {
	return s.getWhere(ctx, "path = ?", path)
}

func (s *SQLiteStore) getWhere(ctx context.Context, where string, arg any) (*MediaRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM media_records WHERE `+where, arg)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, lenserr.NotFound(fmt.Sprint(arg))
	}
	if err != nil {
		return nil, lenserr.StoreError("read record", err)
	}
	return rec, nil
}

// EnsurePending inserts the record in pending state if absent and returns
// the stored row. Existing records are never overwritten.
func (s *SQLiteStore) EnsurePending(ctx context.Context, rec *MediaRecord) (*MediaRecord, error) {
	if rec.ID == "" {
		rec.ID = RecordID(rec.Path)
	}

	s.writeMu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO media_records
			(id, path, media_type, size_bytes, modified_time, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, string(rec.MediaType), rec.SizeBytes,
		unixOrNil(rec.ModifiedTime), string(StatusPending),
	)
	s.writeMu.Unlock()
	if err != nil {
		return nil, lenserr.StoreError("ensure pending "+rec.ID, err)
	}

	return s.Get(ctx, rec.ID)
}

// MarkProcessing transitions a record to processing.
func (s *SQLiteStore) MarkProcessing(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusProcessing, "")
}

// MarkFailed transitions a record to failed(reason). Fingerprint and
// derived content stay untouched so the next submit retries the file.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.setStatus(ctx, id, StatusFailed, reason)
}

func (s *SQLiteStore) setStatus(ctx context.Context, id string, status Status, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE media_records SET status = ?, failure_reason = ? WHERE id = ?`,
		string(status), reason, id)
	if err != nil {
		return lenserr.WriteError("set status "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lenserr.NotFound(id)
	}
	return nil
}

// Delete removes a record and its lexical entry in one transaction.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lenserr.StoreError("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_records WHERE id = ?`, id); err != nil {
		return lenserr.WriteError("delete record "+id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM media_fts WHERE id = ?`, id); err != nil {
		return lenserr.WriteError("delete lexical entry "+id, err)
	}
	if err := tx.Commit(); err != nil {
		return lenserr.WriteError("commit delete "+id, err)
	}
	return nil
}

// Query returns one page plus the total count, both read in a single
// transaction so pagination stays stable under concurrent inserts.
func (s *SQLiteStore) Query(ctx context.Context, f Filters, sort Sort, limit, offset int) ([]*MediaRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where, args := buildFilterClause(f, "media_records")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, lenserr.StoreError("begin query", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM media_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, lenserr.StoreError("count records", err)
	}

	query := selectColumns + ` FROM media_records` + where + orderClause(sort) + ` LIMIT ? OFFSET ?`
	rows, err := tx.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, lenserr.StoreError("query records", err)
	}
	defer rows.Close()

	var page []*MediaRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, lenserr.StoreError("scan record", err)
		}
		page = append(page, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, lenserr.StoreError("iterate records", err)
	}

	return page, total, nil
}

// SearchLexical runs a field-weighted FTS5 query. bm25() returns negative
// scores where lower is better; they are negated so higher is better.
func (s *SQLiteStore) SearchLexical(ctx context.Context, text string, f Filters, limit int) ([]*LexicalResult, error) {
	if limit <= 0 {
		limit = 50
	}

	tokens := FilterStopWords(Tokenize(text), s.stopWords)
	if len(tokens) == 0 {
		return []*LexicalResult{}, nil
	}

	where, args := buildFilterClause(f, "r")
	filterSQL := ""
	if where != "" {
		filterSQL = " AND " + strings.TrimPrefix(where, " WHERE ")
	}

	query := fmt.Sprintf(`
		SELECT media_fts.id,
		       bm25(media_fts, 0, %g, %g, %g, %g) AS score,
		       r.processed_at
		FROM media_fts
		JOIN media_records r ON r.id = media_fts.id
		WHERE media_fts MATCH ?%s
		ORDER BY score, r.processed_at DESC, r.id
		LIMIT ?`,
		weightTags, weightSummary, weightDescription, weightTranscript, filterSQL)

	queryArgs := append([]any{buildMatchQuery(tokens)}, args...)
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		// FTS5 reports invalid match expressions as errors; treat as no
		// results, matching user expectations for odd queries.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []*LexicalResult{}, nil
		}
		return nil, lenserr.StoreError("lexical search", err)
	}
	defer rows.Close()

	var results []*LexicalResult
	for rows.Next() {
		var (
			id          string
			score       float64
			processedAt sql.NullInt64
		)
		if err := rows.Scan(&id, &score, &processedAt); err != nil {
			return nil, lenserr.StoreError("scan lexical result", err)
		}
		results = append(results, &LexicalResult{
			ID:          id,
			Score:       -score,
			ProcessedAt: timeOrZero(processedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, lenserr.StoreError("iterate lexical results", err)
	}

	return results, nil
}

// AllEmbeddings returns every stored embedding for vector-index rebuild.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM media_records WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, lenserr.StoreError("read embeddings", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, lenserr.StoreError("scan embedding", err)
		}
		if vec := decodeEmbedding(blob); len(vec) > 0 {
			out[id] = vec
		}
	}
	return out, rows.Err()
}

// CountByStatus returns record counts per lifecycle state.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM media_records GROUP BY status`)
	if err != nil {
		return nil, lenserr.StoreError("count by status", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, lenserr.StoreError("scan status count", err)
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

const selectColumns = `SELECT
	id, path, media_type, size_bytes, modified_time,
	duration_seconds, resolution, fingerprint, tags,
	summary, description, transcript_text, transcript_language,
	embedding, processed_at, processing_seconds, model_identifier,
	status, failure_reason`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*MediaRecord, error) {
	var (
		rec          MediaRecord
		mediaType    string
		modifiedTime sql.NullInt64
		tagsJSON     string
		embedding    []byte
		processedAt  sql.NullInt64
		status       string
	)

	err := row.Scan(
		&rec.ID, &rec.Path, &mediaType, &rec.SizeBytes, &modifiedTime,
		&rec.DurationSeconds, &rec.Resolution, &rec.Fingerprint, &tagsJSON,
		&rec.Summary, &rec.Description, &rec.TranscriptText, &rec.TranscriptLanguage,
		&embedding, &processedAt, &rec.ProcessingSeconds, &rec.ModelIdentifier,
		&status, &rec.FailureReason,
	)
	if err != nil {
		return nil, err
	}

	rec.MediaType = MediaType(mediaType)
	rec.Status = Status(status)
	rec.ModifiedTime = timeOrZero(modifiedTime)
	rec.ProcessedAt = timeOrZero(processedAt)
	rec.Embedding = decodeEmbedding(embedding)
	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", rec.ID, err)
	}

	return &rec, nil
}

// buildFilterClause renders Filters into a WHERE clause. The tag filter
// matches a substring of any tag via json_each over the stored array.
func buildFilterClause(f Filters, table string) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.MediaType != "" {
		conds = append(conds, table+".media_type = ?")
		args = append(args, string(f.MediaType))
	}
	if f.Tag != "" {
		conds = append(conds,
			`EXISTS (SELECT 1 FROM json_each(`+table+`.tags) WHERE json_each.value LIKE ?)`)
		args = append(args, "%"+f.Tag+"%")
	}
	if !f.DateFrom.IsZero() {
		conds = append(conds, table+".processed_at >= ?")
		args = append(args, f.DateFrom.Unix())
	}
	if !f.DateTo.IsZero() {
		conds = append(conds, table+".processed_at <= ?")
		args = append(args, f.DateTo.Unix())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderClause renders the sort key; id is always the final tie-break so
// paging is deterministic.
func orderClause(sort Sort) string {
	switch sort {
	case SortDateAsc:
		return ` ORDER BY processed_at ASC, id ASC`
	case SortDurationDesc:
		return ` ORDER BY duration_seconds DESC, id ASC`
	case SortDurationAsc:
		return ` ORDER BY duration_seconds ASC, id ASC`
	default: // SortDateDesc
		return ` ORDER BY processed_at DESC, id ASC`
	}
}

func unixOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func timeOrZero(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks little-endian float32 bytes.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
