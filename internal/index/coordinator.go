// Package index coordinates media processing jobs: per-record
// deduplication, bounded admission to the heavy analysis stage, and the
// commit protocol that keeps the durable store and the vector index in
// step.
package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/medialens/medialens/internal/analyze"
	lenserr "github.com/medialens/medialens/internal/errors"
	"github.com/medialens/medialens/internal/fingerprint"
	"github.com/medialens/medialens/internal/scanner"
	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

// ConflictPolicy decides what a Submit does when the same record already
// has a job in flight.
type ConflictPolicy string

const (
	// PolicyWait joins the in-flight job and returns its result.
	PolicyWait ConflictPolicy = "wait"
	// PolicyReject returns ErrCodeAlreadyProcessing immediately.
	PolicyReject ConflictPolicy = "reject"
)

// Config controls the coordinator.
type Config struct {
	// MaxConcurrentJobs bounds how many analyses run at once.
	MaxConcurrentJobs int

	// JobTimeout bounds one analysis call.
	JobTimeout time.Duration

	// ConflictPolicy applies when a Submit hits an in-flight job for the
	// same record.
	ConflictPolicy ConflictPolicy
}

// DefaultConfig returns the coordinator defaults: one job at a time,
// ten-minute analysis timeout, waiters join in-flight jobs.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 1,
		JobTimeout:        10 * time.Minute,
		ConflictPolicy:    PolicyWait,
	}
}

// flight is one in-progress job. Joiners block on done and read rec/err
// afterwards. When every joiner has given up before the job is admitted,
// abandon is closed and the queued job yields its spot.
type flight struct {
	done chan struct{}
	rec  *store.MediaRecord
	err  error

	mu        sync.Mutex
	joiners   int
	abandoned bool
	abandon   chan struct{}
}

func (f *flight) addJoiner() {
	f.mu.Lock()
	f.joiners++
	f.mu.Unlock()
}

func (f *flight) dropJoiner() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joiners--
	if f.joiners == 0 && !f.abandoned {
		f.abandoned = true
		close(f.abandon)
	}
}

// Coordinator owns job admission and execution.
type Coordinator struct {
	store    store.RecordStore
	vectors  *vector.Index
	analyzer analyze.Analyzer
	prints   *fingerprint.Computer
	config   Config
	logger   *slog.Logger

	// admission bounds concurrent analyses across all records.
	admission *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]*flight
	closed   bool
}

// New creates a Coordinator.
func New(
	recordStore store.RecordStore,
	vectors *vector.Index,
	analyzer analyze.Analyzer,
	prints *fingerprint.Computer,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = PolicyWait
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		store:     recordStore,
		vectors:   vectors,
		analyzer:  analyzer,
		prints:    prints,
		config:    cfg,
		logger:    logger,
		admission: semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		inflight:  make(map[string]*flight),
	}
}

// Submit processes one media file and returns its record. force skips
// the fingerprint gate and reprocesses even an unchanged file.
//
// Concurrent submits for the same record collapse onto a single job:
// with PolicyWait later callers block and receive the shared result,
// with PolicyReject they fail fast with ErrCodeAlreadyProcessing.
//
// Expected processing failures (analysis errors, timeouts, corrupt
// input) are recorded on the returned record as status failed with a nil
// error; infrastructure failures (store writes, dimension mismatches)
// return an error.
//
// A force submit that finds a job already in flight joins it and takes
// that job's result; the in-flight job's own force flag governs. Callers
// that need a guaranteed reprocess should resubmit once the flight
// completes.
func (c *Coordinator) Submit(ctx context.Context, path string, force bool) (*store.MediaRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, lenserr.InternalError("resolve path "+path, err)
	}

	mediaType, ok := scanner.MediaTypeFor(abs)
	if !ok {
		return nil, lenserr.New(lenserr.ErrCodeUnsupportedFormat,
			"unsupported media format: "+abs, nil)
	}

	id := store.RecordID(abs)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, lenserr.InternalError("coordinator is closed", nil)
	}
	if existing, ok := c.inflight[id]; ok {
		c.mu.Unlock()
		if c.config.ConflictPolicy == PolicyReject {
			return nil, lenserr.AlreadyProcessing(id)
		}
		return c.join(ctx, existing)
	}

	f := &flight{done: make(chan struct{}), abandon: make(chan struct{})}
	c.inflight[id] = f
	c.mu.Unlock()

	// The flight runs detached from the submitter's context: a joined
	// job must not die because its first caller gave up. The analysis
	// timeout bounds it instead.
	go c.run(f, id, abs, mediaType, force)

	return c.join(ctx, f)
}

// join waits for a flight to finish or the caller's context to end.
// A flight whose analysis has started keeps running after its callers
// leave; one still queued for admission gives up instead.
func (c *Coordinator) join(ctx context.Context, f *flight) (*store.MediaRecord, error) {
	f.addJoiner()
	select {
	case <-f.done:
		return f.rec, f.err
	case <-ctx.Done():
		f.dropJoiner()
		return nil, ctx.Err()
	}
}

// run executes one job end to end and releases the per-record slot.
func (c *Coordinator) run(f *flight, id, path string, mediaType store.MediaType, force bool) {
	defer func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		close(f.done)
	}()

	f.rec, f.err = c.process(f, id, path, mediaType, force)
}

// InFlight returns the number of records with a job in progress.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// SubmitDirectory scans a library root and submits every discovered
// media file, fanning out so the cheap fingerprint checks overlap while
// the admission semaphore still bounds the analyses. It returns summary
// counts; scan errors are reported in the summary, not fatal.
func (c *Coordinator) SubmitDirectory(ctx context.Context, root string) (*DirectorySummary, error) {
	results, err := scanner.Scan(ctx, scanner.Options{RootDir: root})
	if err != nil {
		return nil, err
	}

	summary := &DirectorySummary{}
	var summaryMu sync.Mutex

	var g errgroup.Group
	fanout := 2 * c.config.MaxConcurrentJobs
	if fanout < 4 {
		fanout = 4
	}
	g.SetLimit(fanout)

	for res := range results {
		if ctx.Err() != nil {
			break
		}
		if res.Err != nil {
			summaryMu.Lock()
			summary.Errors = append(summary.Errors, PathError{Path: res.Path, Err: res.Err})
			summaryMu.Unlock()
			continue
		}

		g.Go(func() error {
			// Snapshot the prior state so a smart skip is distinguishable
			// from a fresh index.
			prior, _ := c.store.GetByPath(ctx, res.Path)

			rec, err := c.Submit(ctx, res.Path, false)

			summaryMu.Lock()
			defer summaryMu.Unlock()
			switch {
			case err != nil:
				if ctx.Err() == nil {
					summary.Errors = append(summary.Errors, PathError{Path: res.Path, Err: err})
				}
			case rec.Status == store.StatusFailed:
				summary.Failed++
			case prior != nil && prior.Status == store.StatusIndexed &&
				prior.Fingerprint == rec.Fingerprint && prior.ProcessedAt.Equal(rec.ProcessedAt):
				summary.Skipped++
			case rec.Status == store.StatusIndexed:
				summary.Indexed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// DirectorySummary aggregates one SubmitDirectory run.
type DirectorySummary struct {
	Indexed int
	Skipped int
	Failed  int
	Errors  []PathError
}

// PathError pairs a path with the error it produced.
type PathError struct {
	Path string
	Err  error
}

// Close rejects further submits and waits for in-flight jobs to finish.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	flights := make([]*flight, 0, len(c.inflight))
	for _, f := range c.inflight {
		flights = append(flights, f)
	}
	c.mu.Unlock()

	for _, f := range flights {
		<-f.done
	}
	return nil
}
