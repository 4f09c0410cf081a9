package simplemedia

import (
	"context"
	"io"
	"time"
)

// Catalog is the authoritative index of content records. Implementations
// keep the per-category aggregate consistent with every Put, Update and
// Delete, and give readers a consistent snapshot.
type Catalog interface {
	// Put inserts or replaces a record.
	Put(ctx context.Context, record *ContentRecord) error
	// Get returns ErrContentNotFound for an unknown id.
	Get(ctx context.Context, id string) (*ContentRecord, error)
	// List returns matching records, newest upload first.
	List(ctx context.Context, filter ListFilter) ([]*ContentRecord, error)
	// Update merges patch and returns ErrContentNotFound for an unknown id.
	Update(ctx context.Context, id string, patch ContentPatch) (*ContentRecord, error)
	// Delete is a no-op for an unknown id.
	Delete(ctx context.Context, id string) error
	// IncrementViews is a no-op for an unknown id.
	IncrementViews(ctx context.Context, id string) error
	// IncrementLikes is a no-op for an unknown id.
	IncrementLikes(ctx context.Context, id string) error
	// Categories returns a snapshot of the per-category counts.
	Categories(ctx context.Context) (map[string]int, error)
	// Search matches query against title and description, case-insensitively.
	Search(ctx context.Context, query string) ([]*ContentRecord, error)
	// Featured returns up to limit records by views+likes, highest first.
	Featured(ctx context.Context, limit int) ([]*ContentRecord, error)
}

// Lister serves ranked listings over a catalog.
type Lister interface {
	List(ctx context.Context, query ListQuery) (*PreviewPage, error)
	Featured(ctx context.Context, limit int) ([]Preview, error)
	Search(ctx context.Context, query string) ([]Preview, error)
}

// UploadParams describes an artifact being published.
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// ArtifactStore holds published artifacts under slash separated keys.
type ArtifactStore interface {
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)
	// Delete and DeletePrefix succeed when nothing matches.
	Delete(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// EventSink receives ingest lifecycle events.
// Errors are logged by the caller and never fail an operation.
type EventSink interface {
	IngestStarted(ctx context.Context, contentID string, pt ProcessingType) error
	IngestCompleted(ctx context.Context, record *ContentRecord, elapsed time.Duration) error
	IngestFailed(ctx context.Context, contentID string, reason string) error
	ThumbnailFailed(ctx context.Context, contentID string) error
	ContentDeleted(ctx context.Context, contentID string) error
}
