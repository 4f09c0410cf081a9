package simplemedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia/derive"
	"github.com/tendant/simple-media/pkg/simplemedia/profile"
)

type ingestOutcome struct {
	result *IngestResult
	err    error
}

// Ingest runs Received -> Validated -> Deriving -> Committed, or ends in
// Rejected or Failed. A failed ingest leaves no record and no artifacts.
//
// Once derivation starts the pipeline no longer follows ctx cancellation:
// a caller that goes away gets ctx.Err(), while the job still resolves to a
// commit or a purge in the background. Close waits for those.
func (s *service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	req = NormalizeIngestRequest(req)
	if err := ValidateIngestRequest(req); err != nil {
		return nil, &IngestError{Op: "validate", Err: err}
	}

	prof, err := profile.Select(req.ProcessingType, req.Quality)
	if err != nil {
		return nil, &IngestError{Op: "select_profile", Err: err}
	}
	if !prof.QualityApplied {
		s.logger.Debug("quality does not apply to processing type", "processing_type", req.ProcessingType, "quality", req.Quality)
	}

	id := s.newID()
	source, size, err := s.storeUpload(id, req)
	if err != nil {
		return nil, &IngestError{ContentID: id, Op: "store_upload", Err: err}
	}

	done := make(chan ingestOutcome, 1)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		result, err := s.derive(context.WithoutCancel(ctx), id, req, prof, source, size)
		done <- ingestOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		s.logger.Warn("caller left during ingest, continuing in background", "content_id", id)
		return nil, &IngestError{ContentID: id, Op: "ingest", Err: ctx.Err()}
	}
}

// storeUpload copies the upload to its stored location, enforcing the size limit.
func (s *service) storeUpload(id string, req IngestRequest) (string, int64, error) {
	path, err := s.layout.UploadPathFor(id, filepath.Ext(req.OriginalFilename))
	if err != nil {
		return "", 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}

	n, err := io.Copy(file, io.LimitReader(req.File, s.maxUploadBytes+1))
	closeErr := file.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("failed to write upload file: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("failed to close upload file: %w", closeErr)
	case n > s.maxUploadBytes:
		err = fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, s.maxUploadBytes)
	case n == 0:
		err = ErrMissingFile
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

func (s *service) derive(ctx context.Context, id string, req IngestRequest, prof profile.Profile, source string, size int64) (*IngestResult, error) {
	started := time.Now()
	logger := s.logger.With("content_id", id, "profile", prof.Name)

	if err := s.eventSink.IngestStarted(ctx, id, req.ProcessingType); err != nil {
		logger.Warn("event sink failed", "event", "ingest_started", "error", err)
	}

	fail := func(op string, err error) (*IngestResult, error) {
		logger.Error("ingest failed", "op", op, "error", err)
		if perr := s.purge(ctx, id); perr != nil {
			logger.Error("failed to purge partial artifacts", "error", perr)
		}
		if rerr := os.Remove(source); rerr != nil && !os.IsNotExist(rerr) {
			logger.Warn("failed to remove stored upload", "error", rerr)
		}
		ierr := &IngestError{ContentID: id, Op: op, Err: err}
		if serr := s.eventSink.IngestFailed(ctx, id, ierr.Reason()); serr != nil {
			logger.Warn("event sink failed", "event", "ingest_failed", "error", serr)
		}
		return nil, ierr
	}

	duration := s.probe(ctx, source)

	output, err := s.mainOutput(id, prof)
	if err != nil {
		return fail("layout", err)
	}
	thumbPath, err := s.layout.ThumbnailPathFor(id)
	if err != nil {
		return fail("layout", err)
	}

	mainCtx, cancelMain := ctx, context.CancelFunc(func() {})
	if s.jobTimeout > 0 {
		mainCtx, cancelMain = context.WithTimeout(ctx, s.jobTimeout)
	}
	defer cancelMain()
	thumbCtx, cancelThumb := context.WithCancel(ctx)
	defer cancelThumb()

	mainJob := s.executor.Start(mainCtx, derive.Invocation{
		Input:  source,
		Output: output,
		Args:   prof.Args(output),
	}, s.observer(logger, "main"))

	thumbProfile := profile.Thumbnail(duration)
	thumbJob := s.executor.Start(thumbCtx, derive.Invocation{
		Input:  source,
		Output: thumbPath,
		Args:   thumbProfile.Args(thumbPath),
	}, s.observer(logger, "thumbnail"))

	mainOutcome, _ := mainJob.Wait(context.Background())
	if !mainOutcome.OK() {
		// Nothing may write into the layout once purge starts.
		cancelThumb()
		thumbJob.Wait(context.Background())
		return fail("derive", mainOutcome.Err)
	}

	thumbOK := s.awaitThumbnail(logger, thumbJob, cancelThumb)
	if !thumbOK {
		if err := os.Remove(thumbPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove partial thumbnail", "error", err)
		}
	}

	if s.store != nil {
		if err := s.publishMain(ctx, prof, output); err != nil {
			return fail("publish", &derive.Error{Reason: "artifact publication failed", Err: err})
		}
		if thumbOK {
			if err := s.publishFile(ctx, thumbPath); err != nil {
				logger.Warn("thumbnail publication failed", "error", err)
				thumbOK = false
			}
		}
	}

	if !thumbOK {
		if err := s.eventSink.ThumbnailFailed(ctx, id); err != nil {
			logger.Warn("event sink failed", "event", "thumbnail_failed", "error", err)
		}
	}

	now := s.now()
	streamingURL := s.streamingURL(id, prof.Kind)
	record := &ContentRecord{
		ID:               id,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		UploaderID:       req.UploaderID,
		UploadTimestamp:  now,
		ProcessingType:   req.ProcessingType,
		Quality:          req.Quality,
		DurationSeconds:  duration,
		FileSizeBytes:    size,
		OriginalFilename: req.OriginalFilename,
		StreamingURL:     &streamingURL,
		Views:            0,
		Likes:            0,
		Status:           StatusAvailable,
		LastUpdated:      now,
	}
	if thumbOK {
		thumbnailURL := s.thumbnailURL(id)
		record.ThumbnailURL = &thumbnailURL
	}

	if err := s.catalog.Put(ctx, record); err != nil {
		return fail("commit", err)
	}

	if s.store != nil {
		// Published copies are the delivery source from here on.
		if err := s.layout.Purge(ctx, id); err != nil {
			logger.Warn("failed to remove local copies of published artifacts", "error", err)
		}
	}

	if req.DeleteOriginal {
		if err := os.Remove(source); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to delete original upload", "error", err)
		}
	}

	elapsed := time.Since(started)
	if err := s.eventSink.IngestCompleted(ctx, record, elapsed); err != nil {
		logger.Warn("event sink failed", "event", "ingest_completed", "error", err)
	}
	logger.Info("ingest committed", "processing_type", record.ProcessingType, "thumbnail", thumbOK, "elapsed", elapsed)

	return &IngestResult{
		Record:            record.Clone(),
		ThumbnailFailed:   !thumbOK,
		DerivationElapsed: elapsed,
	}, nil
}

// awaitThumbnail waits up to the thumbnail timeout. On timeout the job is
// cancelled and drained so it cannot write after the ingest returns.
func (s *service) awaitThumbnail(logger *slog.Logger, job *derive.Job, cancel context.CancelFunc) bool {
	timer := time.NewTimer(s.thumbnailTimeout)
	defer timer.Stop()

	select {
	case <-job.Done():
	case <-timer.C:
		logger.Warn("thumbnail derivation timed out", "timeout", s.thumbnailTimeout)
		cancel()
	}

	outcome, _ := job.Wait(context.Background())
	if !outcome.OK() {
		logger.Warn("thumbnail derivation failed", "error", errors.Join(ErrThumbnailFailed, outcome.Err))
		return false
	}
	return true
}

func (s *service) mainOutput(id string, prof profile.Profile) (string, error) {
	if prof.Kind == profile.Segmented {
		return s.layout.PlaylistPathFor(id)
	}
	return s.layout.ConvertedPathFor(id)
}

func (s *service) probe(ctx context.Context, source string) float64 {
	if s.prober == nil {
		return 0
	}
	seconds, err := s.prober.Duration(ctx, source)
	if err != nil || seconds < 0 {
		s.logger.Warn("failed to probe duration", "error", err)
		return 0
	}
	return seconds
}

func (s *service) observer(logger *slog.Logger, artifact string) derive.Observer {
	return func(ev derive.Event) {
		logger.Debug("derivation event", "artifact", artifact, "event", ev.Kind, "percent", ev.Percent)
	}
}

func (s *service) publishMain(ctx context.Context, prof profile.Profile, output string) error {
	if prof.Kind != profile.Segmented {
		return s.publishFile(ctx, output)
	}
	return filepath.WalkDir(filepath.Dir(output), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return s.publishFile(ctx, path)
	})
}

func (s *service) publishFile(ctx context.Context, path string) error {
	key, err := s.layout.Key(path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	params := UploadParams{ObjectKey: key, MimeType: ContentTypeFor(key)}
	if err := s.store.Upload(ctx, file, params); err != nil {
		return &StorageError{Backend: s.storeName, Key: key, Op: "upload", Err: err}
	}
	return nil
}

// ContentTypeFor returns the delivery content type of an artifact name.
func ContentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
