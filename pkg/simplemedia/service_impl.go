package simplemedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-media/pkg/simplemedia/derive"
	"github.com/tendant/simple-media/pkg/simplemedia/layout"
	"github.com/tendant/simple-media/pkg/simplemedia/profile"
)

// Defaults for ingest limits.
const (
	DefaultMaxUploadBytes   int64 = 100 << 20
	DefaultThumbnailTimeout       = 30 * time.Second
	DefaultURLPrefix              = "/api/v1"
)

// service implements the Service interface
type service struct {
	catalog   Catalog
	lister    Lister
	layout    *layout.Manager
	executor  *derive.Executor
	prober    derive.Prober
	store     ArtifactStore
	storeName string
	eventSink EventSink
	logger    *slog.Logger

	urlPrefix        string
	maxUploadBytes   int64
	thumbnailTimeout time.Duration
	jobTimeout       time.Duration
	now              func() time.Time
	newID            func() string

	inflight sync.WaitGroup
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithCatalog sets the catalog for the service
func WithCatalog(catalog Catalog) Option {
	return func(s *service) {
		s.catalog = catalog
	}
}

// WithLister sets the ranking engine behind the preview listings
func WithLister(lister Lister) Option {
	return func(s *service) {
		s.lister = lister
	}
}

// WithLayout sets where derived artifacts are written
func WithLayout(m *layout.Manager) Option {
	return func(s *service) {
		s.layout = m
	}
}

// WithExecutor sets the derivation job executor
func WithExecutor(e *derive.Executor) Option {
	return func(s *service) {
		s.executor = e
	}
}

// WithProber sets the duration prober. Without one, durations are recorded as 0.
func WithProber(p derive.Prober) Option {
	return func(s *service) {
		s.prober = p
	}
}

// WithArtifactStore publishes derived artifacts to store and delivers from it
func WithArtifactStore(name string, store ArtifactStore) Option {
	return func(s *service) {
		s.storeName = name
		s.store = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithURLPrefix sets the path prefix of derived artifact URLs
func WithURLPrefix(prefix string) Option {
	return func(s *service) {
		s.urlPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithMaxUploadBytes limits the size of an upload
func WithMaxUploadBytes(n int64) Option {
	return func(s *service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithThumbnailTimeout bounds how long an ingest waits for its thumbnail
// once the main artifact is done
func WithThumbnailTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.thumbnailTimeout = d
		}
	}
}

// WithJobTimeout bounds the main artifact invocation. Zero means no bound.
func WithJobTimeout(d time.Duration) Option {
	return func(s *service) {
		s.jobTimeout = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithIDGenerator overrides content id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *service) {
		s.newID = newID
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:        NewNoopEventSink(),
		logger:           slog.Default(),
		urlPrefix:        DefaultURLPrefix,
		maxUploadBytes:   DefaultMaxUploadBytes,
		thumbnailTimeout: DefaultThumbnailTimeout,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            func() string { return uuid.New().String() },
	}

	for _, option := range options {
		option(s)
	}

	if s.catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if s.layout == nil {
		return nil, fmt.Errorf("layout is required")
	}
	if s.executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}

// Record operations

func (s *service) Get(ctx context.Context, id string) (*ContentRecord, error) {
	return s.catalog.Get(ctx, id)
}

func (s *service) Update(ctx context.Context, id string, patch ContentPatch) (*ContentRecord, error) {
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}
	return s.catalog.Update(ctx, id, patch)
}

// Delete removes the record, then its artifacts. Unknown ids are a no-op.
func (s *service) Delete(ctx context.Context, id string) error {
	_, err := s.catalog.Get(ctx, id)
	if errors.Is(err, ErrContentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.purge(ctx, id); err != nil {
		// The record is gone; leftover files are only logged.
		s.logger.Error("failed to purge artifacts of deleted content", "content_id", id, "error", err)
	}

	if err := s.eventSink.ContentDeleted(ctx, id); err != nil {
		s.logger.Warn("event sink failed", "event", "content_deleted", "content_id", id, "error", err)
	}
	return nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]*ContentRecord, error) {
	return s.catalog.List(ctx, filter)
}

func (s *service) RecordView(ctx context.Context, id string) error {
	return s.catalog.IncrementViews(ctx, id)
}

func (s *service) RecordLike(ctx context.Context, id string) error {
	return s.catalog.IncrementLikes(ctx, id)
}

func (s *service) Categories(ctx context.Context) (map[string]int, error) {
	return s.catalog.Categories(ctx)
}

// Listings

var errNoLister = errors.New("listing is not configured")

func (s *service) ListPreviews(ctx context.Context, query ListQuery) (*PreviewPage, error) {
	if s.lister == nil {
		return nil, errNoLister
	}
	return s.lister.List(ctx, query)
}

func (s *service) Featured(ctx context.Context, limit int) ([]Preview, error) {
	if s.lister == nil {
		return nil, errNoLister
	}
	return s.lister.Featured(ctx, limit)
}

func (s *service) Search(ctx context.Context, query string) ([]Preview, error) {
	if s.lister == nil {
		return nil, errNoLister
	}
	return s.lister.Search(ctx, query)
}

// Artifact delivery

func (s *service) OpenArtifact(ctx context.Context, kind ArtifactKind, id, name string) (io.ReadCloser, error) {
	key, err := s.artifactKey(kind, id, name)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		rc, err := s.store.Download(ctx, key)
		if err != nil {
			if errors.Is(err, ErrArtifactNotFound) {
				return nil, err
			}
			return nil, &StorageError{Backend: s.storeName, Key: key, Op: "download", Err: err}
		}
		return rc, nil
	}
	return s.layout.Open(key)
}

func (s *service) artifactKey(kind ArtifactKind, id, name string) (string, error) {
	switch kind {
	case ArtifactStream:
		if name == "" || name != path.Base(name) || strings.ContainsAny(name, `\`) || name == ".." {
			return "", ErrArtifactNotFound
		}
		prefix, err := s.layout.StreamingPrefix(id)
		if err != nil {
			return "", ErrArtifactNotFound
		}
		return prefix + "/" + name, nil
	case ArtifactMedia:
		p, err := s.layout.ConvertedPathFor(id)
		if err != nil {
			return "", ErrArtifactNotFound
		}
		return s.layout.Key(p)
	case ArtifactThumbnail:
		p, err := s.layout.ThumbnailPathFor(id)
		if err != nil {
			return "", ErrArtifactNotFound
		}
		return s.layout.Key(p)
	default:
		return "", ErrArtifactNotFound
	}
}

// purge removes every artifact of id locally and, when configured, from the store.
func (s *service) purge(ctx context.Context, id string) error {
	var errs []error
	if err := s.layout.Purge(ctx, id); err != nil {
		errs = append(errs, err)
	}

	if s.store != nil {
		prefix, err := s.layout.StreamingPrefix(id)
		if err == nil {
			err = s.store.DeletePrefix(ctx, prefix+"/")
		}
		if err != nil {
			errs = append(errs, &StorageError{Backend: s.storeName, Key: prefix, Op: "delete_prefix", Err: err})
		}
		for _, kind := range []ArtifactKind{ArtifactMedia, ArtifactThumbnail} {
			key, err := s.artifactKey(kind, id, "")
			if err != nil {
				continue
			}
			if err := s.store.Delete(ctx, key); err != nil {
				errs = append(errs, &StorageError{Backend: s.storeName, Key: key, Op: "delete", Err: err})
			}
		}
	}
	return errors.Join(errs...)
}

// Close waits for detached ingests to resolve, or for ctx to end.
func (s *service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *service) streamingURL(id string, kind RenditionKind) string {
	if kind == profile.SingleFile {
		return fmt.Sprintf("%s/media/%s.mp4", s.urlPrefix, id)
	}
	return fmt.Sprintf("%s/stream/%s/%s", s.urlPrefix, id, profile.PlaylistName)
}

func (s *service) thumbnailURL(id string) string {
	return fmt.Sprintf("%s/thumbnails/%s.jpg", s.urlPrefix, id)
}
