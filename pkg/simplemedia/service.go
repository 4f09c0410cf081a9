package simplemedia

import (
	"context"
	"io"
)

// Service defines the main interface for the simple-media library
type Service interface {
	// Ingest validates an upload, derives its artifacts and commits a record.
	// A record becomes visible only once its main artifact exists.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)

	// Record operations
	Get(ctx context.Context, id string) (*ContentRecord, error)
	Update(ctx context.Context, id string, patch ContentPatch) (*ContentRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*ContentRecord, error)
	RecordView(ctx context.Context, id string) error
	RecordLike(ctx context.Context, id string) error
	Categories(ctx context.Context) (map[string]int, error)

	// Ranked listings, served by the configured Lister
	ListPreviews(ctx context.Context, query ListQuery) (*PreviewPage, error)
	Featured(ctx context.Context, limit int) ([]Preview, error)
	Search(ctx context.Context, query string) ([]Preview, error)

	// OpenArtifact returns a derived artifact for delivery. For ArtifactStream,
	// name is a file inside the segmented rendition; it is ignored otherwise.
	OpenArtifact(ctx context.Context, kind ArtifactKind, id, name string) (io.ReadCloser, error)

	// Close waits for ingests still resolving after their callers left.
	Close(ctx context.Context) error
}
