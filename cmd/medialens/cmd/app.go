package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/medialens/medialens/internal/analyze"
	"github.com/medialens/medialens/internal/api"
	"github.com/medialens/medialens/internal/config"
	"github.com/medialens/medialens/internal/fingerprint"
	"github.com/medialens/medialens/internal/index"
	"github.com/medialens/medialens/internal/lockfile"
	"github.com/medialens/medialens/internal/logging"
	"github.com/medialens/medialens/internal/search"
	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

// app wires the engine together for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *api.Service

	store      *store.SQLiteStore
	vectors    *vector.Index
	coord      *index.Coordinator
	lock       *lockfile.Lock
	logCleanup func()
}

// openApp builds the full engine from configuration. The caller must
// call close.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Paths.Data = dataDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, logCleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.LogFilePath(),
		Quiet:    quiet,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, logCleanup: logCleanup}

	a.lock, err = lockfile.Acquire(cfg.LockPath())
	if err != nil {
		a.close()
		return nil, err
	}

	a.store, err = store.Open(cfg.DatabasePath())
	if err != nil {
		a.close()
		return nil, err
	}

	a.vectors, err = vector.New(vector.Config{
		Dimensions: cfg.Vector.Dimensions,
		M:          cfg.Vector.M,
		EfSearch:   cfg.Vector.EfSearch,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	if err := restoreVectors(ctx, a.vectors, a.store, cfg.VectorSnapshotPath(), logger); err != nil {
		a.close()
		return nil, err
	}

	prints, err := fingerprint.New(fingerprint.Mode(cfg.Index.FingerprintMode), 0)
	if err != nil {
		a.close()
		return nil, err
	}

	analyzer := analyze.NewStaticAnalyzer(cfg.Vector.Dimensions)

	a.coord = index.New(a.store, a.vectors, analyzer, prints, index.Config{
		MaxConcurrentJobs: cfg.Index.MaxConcurrentJobs,
		JobTimeout:        cfg.Index.JobTimeout.Std(),
		ConflictPolicy:    index.ConflictPolicy(cfg.Index.ConflictPolicy),
	}, logger)

	engine := search.NewEngine(a.store, a.vectors, analyzer.Embedder(), search.Config{
		Weights: search.Weights{
			Lexical:  cfg.Search.LexicalWeight,
			Semantic: cfg.Search.SemanticWeight,
		},
		MinScore:            cfg.Search.MinScore,
		CandidateMultiplier: cfg.Search.CandidateMultiplier,
		DefaultLimit:        cfg.Search.MaxResults,
	}, logger)

	a.service = api.New(a.store, a.coord, engine, a.vectors, logger)
	return a, nil
}

// restoreVectors fills the derived vector index at startup. It prefers
// the snapshot but verifies it against the durable store: a snapshot
// written before a crash misses records indexed since, so any drift in
// membership falls back to a full rebuild.
func restoreVectors(ctx context.Context, vx *vector.Index, recStore store.RecordStore, snapshotPath string, logger *slog.Logger) error {
	embeddings, err := recStore.AllEmbeddings(ctx)
	if err != nil {
		return err
	}

	loadErr := vx.Load(snapshotPath)
	if loadErr == nil {
		stale := vx.Count() != len(embeddings)
		for id := range embeddings {
			if stale {
				break
			}
			stale = !vx.Contains(id)
		}
		if !stale {
			return nil
		}
		logger.Warn("vector snapshot out of step with store, rebuilding",
			slog.Int("snapshot", vx.Count()),
			slog.Int("store", len(embeddings)))
	} else if !os.IsNotExist(loadErr) {
		logger.Warn("vector snapshot unusable, rebuilding",
			slog.String("error", loadErr.Error()))
	}

	return vx.Rebuild(ctx, embeddings)
}

// close tears the app down in reverse order, snapshotting the vector
// index so the next start skips the rebuild.
func (a *app) close() {
	if a.coord != nil {
		_ = a.coord.Close()
	}
	if a.vectors != nil {
		if a.cfg != nil {
			if err := a.vectors.Save(a.cfg.VectorSnapshotPath()); err != nil {
				a.logger.Warn("save vector snapshot", slog.String("error", err.Error()))
			}
		}
		_ = a.vectors.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.lock != nil {
		_ = a.lock.Release()
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
}
