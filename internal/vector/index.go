// Package vector provides the in-memory approximate-nearest-neighbor
// index over media embeddings. The durable copy of every vector lives in
// the record store; this index is derived state and can always be rebuilt
// from it.
package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	lenserr "github.com/medialens/medialens/internal/errors"
)

// Config controls the HNSW graph parameters.
type Config struct {
	// Dimensions is the fixed embedding width. Vectors of any other
	// width are rejected.
	Dimensions int

	// M is the maximum number of graph neighbors per node.
	M int

	// EfSearch is the search beam width.
	EfSearch int
}

// DefaultConfig returns parameters tuned for sentence-embedding sized
// vectors and libraries in the low tens of thousands of records.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   40,
	}
}

// Result is one nearest-neighbor candidate.
type Result struct {
	ID string
	// Score is cosine similarity in [-1, 1]; higher is more similar.
	Score float64
}

// Index is the in-memory vector index. Safe for concurrent use: lookups
// take a read lock, mutations a write lock.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	// string record id <-> internal graph key
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// indexMetadata carries the id mappings alongside the exported graph.
type indexMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

// New creates an empty index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, lenserr.ConfigError(
			fmt.Sprintf("vector dimensions must be positive, got %d", cfg.Dimensions), nil)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 40
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Upsert inserts or replaces the vector for one record id.
// Replacement uses lazy deletion: the old graph node is orphaned rather
// than removed, because coder/hnsw breaks when the last node is deleted.
func (ix *Index) Upsert(id string, vec []float32) error {
	if len(vec) != ix.config.Dimensions {
		return dimensionError(ix.config.Dimensions, len(vec))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return lenserr.InternalError("vector index is closed", nil)
	}

	if oldKey, ok := ix.idMap[id]; ok {
		delete(ix.keyMap, oldKey)
		delete(ix.idMap, id)
	}

	key := ix.nextKey
	ix.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	ix.graph.Add(hnsw.MakeNode(key, normalized))
	ix.idMap[id] = key
	ix.keyMap[key] = id

	return nil
}

// Remove drops a record id from the index. Unknown ids are a no-op.
// The graph node is orphaned, not deleted; Rebuild compacts.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return
	}
	if key, ok := ix.idMap[id]; ok {
		delete(ix.keyMap, key)
		delete(ix.idMap, id)
	}
}

// SearchSimilar returns up to k nearest neighbors of the query vector,
// ordered by descending cosine similarity with id as the tie-break.
func (ix *Index) SearchSimilar(ctx context.Context, query []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != ix.config.Dimensions {
		return nil, dimensionError(ix.config.Dimensions, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, lenserr.InternalError("vector index is closed", nil)
	}
	if ix.graph.Len() == 0 {
		return []Result{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	// Over-fetch to compensate for lazy-deleted orphans still in the graph.
	orphans := ix.graph.Len() - len(ix.idMap)
	nodes := ix.graph.Search(normalized, k+orphans)

	results := make([]Result, 0, k)
	for _, node := range nodes {
		id, ok := ix.keyMap[node.Key]
		if !ok {
			continue // orphaned by lazy deletion
		}
		// CosineDistance = 1 - cos, so similarity = 1 - distance.
		sim := 1.0 - float64(ix.graph.Distance(normalized, node.Value))
		results = append(results, Result{ID: id, Score: sim})
		if len(results) == k {
			break
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// Rebuild replaces the index contents from the durable store's
// id -> embedding map, discarding any accumulated orphans.
func (ix *Index) Rebuild(ctx context.Context, embeddings map[string][]float32) error {
	for id, vec := range embeddings {
		if len(vec) != ix.config.Dimensions {
			return dimensionError(ix.config.Dimensions, len(vec)).WithDetail("id", id)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return lenserr.InternalError("vector index is closed", nil)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = ix.config.M
	graph.EfSearch = ix.config.EfSearch
	graph.Ml = 0.25

	idMap := make(map[string]uint64, len(embeddings))
	keyMap := make(map[uint64]string, len(embeddings))

	// Deterministic insertion order keeps rebuilds reproducible.
	ids := make([]string, 0, len(embeddings))
	for id := range embeddings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var key uint64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec := make([]float32, len(embeddings[id]))
		copy(vec, embeddings[id])
		normalizeInPlace(vec)

		graph.Add(hnsw.MakeNode(key, vec))
		idMap[id] = key
		keyMap[key] = id
		key++
	}

	ix.graph = graph
	ix.idMap = idMap
	ix.keyMap = keyMap
	ix.nextKey = key

	return nil
}

// Contains reports whether the id currently has a live vector.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.idMap[id]
	return ok
}

// Count returns the number of live vectors (orphans excluded).
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idMap)
}

// Dimensions returns the configured embedding width.
func (ix *Index) Dimensions() int {
	return ix.config.Dimensions
}

// Save writes the graph and id mappings to disk atomically
// (temp file + rename). The snapshot only speeds up the next start;
// losing it costs a rebuild, not data.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return lenserr.InternalError("vector index is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}

	if err := ix.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot file: %w", err)
	}

	return ix.saveMetadata(path + ".meta")
}

func (ix *Index) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := indexMetadata{
		IDMap:   ix.idMap,
		NextKey: ix.nextKey,
		Config:  ix.config,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a snapshot written by Save. Returns os.ErrNotExist when
// no snapshot is present so callers can fall back to Rebuild.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return lenserr.InternalError("vector index is closed", nil)
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return err
	}
	var meta indexMetadata
	err = gob.NewDecoder(metaFile).Decode(&meta)
	_ = metaFile.Close()
	if err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Config.Dimensions != ix.config.Dimensions {
		return dimensionError(ix.config.Dimensions, meta.Config.Dimensions)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	// coder/hnsw Import needs an io.ByteReader.
	if err := ix.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	ix.idMap = meta.IDMap
	ix.nextKey = meta.NextKey
	ix.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		ix.keyMap[key] = id
	}

	return nil
}

// Close releases the index. Idempotent.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.graph = nil
	return nil
}

func dimensionError(want, got int) *lenserr.MediaError {
	return lenserr.New(lenserr.ErrCodeDimensionMismatch,
		fmt.Sprintf("embedding dimension mismatch: want %d, got %d", want, got), nil)
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
