package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	lenserr "github.com/medialens/medialens/internal/errors"
	"github.com/medialens/medialens/internal/store"
)

// process runs one job: fingerprint gate, bounded analysis, atomic
// persist. It runs on a background context so abandoning submitters
// never kill a job whose analysis has started; the analysis timeout
// bounds the expensive stage instead. A job still queued for admission
// when its last caller leaves gives up before analyzing.
func (c *Coordinator) process(f *flight, id, path string, mediaType store.MediaType, force bool) (*store.MediaRecord, error) {
	ctx := context.Background()
	log := c.logger.With(slog.String("id", id), slog.String("path", path))

	existing, err := c.store.GetByPath(ctx, path)
	if err != nil && !lenserr.HasCode(err, lenserr.ErrCodeNotFound) {
		return nil, err
	}

	stored := ""
	if existing != nil && existing.Status == store.StatusIndexed {
		stored = existing.Fingerprint
	}

	shouldProcess, currentSig, err := c.prints.ShouldProcess(path, stored)
	if err != nil {
		return nil, err
	}
	if !shouldProcess && !force {
		log.Debug("fingerprint unchanged, skipping")
		return existing, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, lenserr.NotFound(path)
	}

	_, err = c.store.EnsurePending(ctx, &store.MediaRecord{
		ID:           id,
		Path:         path,
		MediaType:    mediaType,
		SizeBytes:    info.Size(),
		ModifiedTime: info.ModTime().UTC(),
	})
	if err != nil {
		return nil, err
	}
	// Admission gate: only MaxConcurrentJobs analyses at once. The
	// per-record slot is already held, so this only orders distinct
	// records. A queued job every caller has abandoned yields its spot
	// instead of running an analysis nobody waits for; the record stays
	// pending and the next submit retries it.
	admitCtx, cancelAdmit := context.WithCancel(ctx)
	defer cancelAdmit()
	go func() {
		select {
		case <-f.abandon:
			cancelAdmit()
		case <-admitCtx.Done():
		}
	}()
	if err := c.admission.Acquire(admitCtx, 1); err != nil {
		log.Debug("queued job abandoned before admission")
		return nil, context.Canceled
	}
	defer c.admission.Release(1)
	select {
	case <-f.abandon:
		log.Debug("queued job abandoned before admission")
		return nil, context.Canceled
	default:
	}

	if err := c.store.MarkProcessing(ctx, id); err != nil {
		return nil, err
	}

	start := time.Now()
	analysisCtx, cancel := context.WithTimeout(ctx, c.config.JobTimeout)
	analysis, err := c.analyzer.Analyze(analysisCtx, path, mediaType)
	cancel()

	if err != nil {
		return c.recordFailure(ctx, log, id, err)
	}

	// An analyzer may legitimately return no embedding; the record is
	// still indexed for lexical search. Only a present embedding of the
	// wrong width is an infrastructure fault.
	if c.vectors != nil && len(analysis.Embedding) > 0 && len(analysis.Embedding) != c.vectors.Dimensions() {
		dimErr := lenserr.New(lenserr.ErrCodeDimensionMismatch,
			"analyzer embedding width does not match the vector index", nil).
			WithDetail("id", id)
		if markErr := c.store.MarkFailed(ctx, id, dimErr.Error()); markErr != nil {
			log.Error("mark failed after dimension mismatch", slog.String("error", markErr.Error()))
		}
		return nil, dimErr
	}

	rec := &store.MediaRecord{
		ID:                 id,
		Path:               path,
		MediaType:          mediaType,
		SizeBytes:          info.Size(),
		ModifiedTime:       info.ModTime().UTC(),
		DurationSeconds:    analysis.DurationSeconds,
		Resolution:         analysis.Resolution,
		Fingerprint:        currentSig,
		Tags:               analysis.Tags,
		Summary:            analysis.Summary,
		Description:        analysis.Description,
		TranscriptText:     analysis.TranscriptText,
		TranscriptLanguage: analysis.TranscriptLanguage,
		Embedding:          analysis.Embedding,
		ProcessedAt:        time.Now().UTC().Truncate(time.Second),
		ProcessingSeconds:  time.Since(start).Seconds(),
		ModelIdentifier:    analysis.ModelIdentifier,
		Status:             store.StatusIndexed,
	}
	// Durable store first; the vector index is derived state.
	if err := c.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	if c.vectors != nil && rec.HasEmbedding() {
		if err := c.vectors.Upsert(id, rec.Embedding); err != nil {
			return nil, err
		}
	}

	log.Info("indexed",
		slog.String("media_type", string(mediaType)),
		slog.Float64("processing_seconds", rec.ProcessingSeconds))
	return rec, nil
}

// recordFailure persists an expected analysis failure and returns the
// failed record with a nil error. The stored fingerprint stays
// untouched, so the next submit retries the file.
func (c *Coordinator) recordFailure(ctx context.Context, log *slog.Logger, id string, cause error) (*store.MediaRecord, error) {
	reason := failureReason(cause)
	log.Warn("analysis failed", slog.String("reason", reason))

	if err := c.store.MarkFailed(ctx, id, reason); err != nil {
		return nil, err
	}
	return c.store.Get(ctx, id)
}

// failureReason maps an analyzer error to the stored failure reason.
func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return lenserr.New(lenserr.ErrCodeTimeout, "analysis timed out", nil).Error()
	}
	if code := lenserr.GetCode(err); code != "" {
		return err.Error()
	}
	return lenserr.Wrap(lenserr.ErrCodeInferenceFailed, err).Error()
}
