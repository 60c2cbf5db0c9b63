// Package api is the retrieval engine's front door. It validates
// requests, delegates to the coordinator and search engine, and shapes
// responses for transports (CLI today) without leaking internals.
package api

import (
	"context"
	"fmt"
	"log/slog"

	lenserr "github.com/medialens/medialens/internal/errors"
	"github.com/medialens/medialens/internal/index"
	"github.com/medialens/medialens/internal/search"
	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

// MaxPageSize caps List and Search page sizes.
const MaxPageSize = 100

// Service exposes the engine's operations.
type Service struct {
	store   store.RecordStore
	coord   *index.Coordinator
	engine  *search.Engine
	vectors *vector.Index
	logger  *slog.Logger
}

// New creates a Service.
func New(recordStore store.RecordStore, coord *index.Coordinator, engine *search.Engine, vectors *vector.Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   recordStore,
		coord:   coord,
		engine:  engine,
		vectors: vectors,
		logger:  logger,
	}
}

// Process indexes one media file (or skips it when unchanged) and
// returns its record. force reprocesses even an unchanged file.
func (s *Service) Process(ctx context.Context, path string, force bool) (*store.MediaRecord, error) {
	if path == "" {
		return nil, lenserr.ConfigError("path is required", nil)
	}
	return s.coord.Submit(ctx, path, force)
}

// ProcessDirectory scans a library root and processes everything in it.
func (s *Service) ProcessDirectory(ctx context.Context, root string) (*index.DirectorySummary, error) {
	if root == "" {
		return nil, lenserr.ConfigError("directory is required", nil)
	}
	return s.coord.SubmitDirectory(ctx, root)
}

// Search runs a hybrid query.
func (s *Service) Search(ctx context.Context, opts search.Options) (*search.Response, error) {
	if opts.Query == "" {
		return nil, lenserr.ConfigError("query is required", nil)
	}
	var err error
	opts.Limit, err = normalizeLimit(opts.Limit, 0)
	if err != nil {
		return nil, err
	}
	if opts.Offset < 0 {
		return nil, lenserr.ConfigError(fmt.Sprintf("offset must not be negative, got %d", opts.Offset), nil)
	}
	if err := validateFilters(opts.Filters); err != nil {
		return nil, err
	}
	return s.engine.Search(ctx, opts)
}

// ListResponse is one page of records plus the total match count, the
// shape a paginating client needs.
type ListResponse struct {
	Records []*store.MediaRecord
	Total   int
	Limit   int
	Offset  int
}

// List returns a filtered, sorted page of records.
func (s *Service) List(ctx context.Context, f store.Filters, sort store.Sort, limit, offset int) (*ListResponse, error) {
	limit, err := normalizeLimit(limit, 50)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, lenserr.ConfigError(fmt.Sprintf("offset must not be negative, got %d", offset), nil)
	}
	if sort == "" {
		sort = store.SortDateDesc
	}
	switch sort {
	case store.SortDateDesc, store.SortDateAsc, store.SortDurationDesc, store.SortDurationAsc:
	default:
		return nil, lenserr.ConfigError(fmt.Sprintf("unknown sort key %q", sort), nil)
	}
	if err := validateFilters(f); err != nil {
		return nil, err
	}

	records, total, err := s.store.Query(ctx, f, sort, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Records: records, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id string) (*store.MediaRecord, error) {
	if id == "" {
		return nil, lenserr.ConfigError("id is required", nil)
	}
	return s.store.Get(ctx, id)
}

// Status reports engine health counters.
type Status struct {
	Records     map[store.Status]int
	VectorCount int
	InFlight    int
}

// Status returns the current engine counters.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Records: counts, InFlight: s.coord.InFlight()}
	if s.vectors != nil {
		st.VectorCount = s.vectors.Count()
	}
	return st, nil
}

func normalizeLimit(limit, fallback int) (int, error) {
	if limit < 0 {
		return 0, lenserr.ConfigError(fmt.Sprintf("limit must not be negative, got %d", limit), nil)
	}
	if limit == 0 {
		if fallback > 0 {
			return fallback, nil
		}
		return 0, nil // search engine applies its own default
	}
	if limit > MaxPageSize {
		return MaxPageSize, nil
	}
	return limit, nil
}

func validateFilters(f store.Filters) error {
	if f.MediaType != "" && f.MediaType != store.MediaTypeVideo && f.MediaType != store.MediaTypeImage {
		return lenserr.ConfigError(fmt.Sprintf("unknown media type %q", f.MediaType), nil)
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return lenserr.ConfigError("date range is inverted", nil)
	}
	return nil
}
