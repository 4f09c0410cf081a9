package simplemedia

import (
	"io"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia/profile"
)

// ProcessingType is the derivation mode chosen at upload.
type ProcessingType = profile.ProcessingType

// Quality is the profile tier chosen at upload.
type Quality = profile.Quality

const (
	ProcessingStreaming = profile.Streaming
	ProcessingConvert   = profile.Convert

	QualityLow    = profile.Low
	QualityMedium = profile.Medium
	QualityHigh   = profile.High
)

// RenditionKind is the caller-facing shape of the main artifact.
type RenditionKind = profile.RenditionKind

// Status is the lifecycle state of a content record.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusProcessing, StatusFailed:
		return true
	}
	return false
}

// DefaultCategory is assigned when no category is supplied.
const DefaultCategory = "uncategorized"

// ContentRecord describes one ingested item and its derived artifacts.
type ContentRecord struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Category         string         `json:"category"`
	UploaderID       string         `json:"uploaderId"`
	UploadTimestamp  time.Time      `json:"uploadTimestamp"`
	ProcessingType   ProcessingType `json:"processingType"`
	Quality          Quality        `json:"quality"`
	DurationSeconds  float64        `json:"durationSeconds"`
	FileSizeBytes    int64          `json:"fileSizeBytes"`
	OriginalFilename string         `json:"originalFilename"`
	StreamingURL     *string        `json:"streamingUrl"`
	ThumbnailURL     *string        `json:"thumbnailUrl"`
	Views            int64          `json:"views"`
	Likes            int64          `json:"likes"`
	Status           Status         `json:"status"`
	LastUpdated      time.Time      `json:"lastUpdated"`
}

// Clone returns a deep copy of r.
func (r *ContentRecord) Clone() *ContentRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.StreamingURL = cloneString(r.StreamingURL)
	c.ThumbnailURL = cloneString(r.ThumbnailURL)
	return &c
}

// RenditionKind derives the caller-facing artifact shape.
func (r *ContentRecord) RenditionKind() RenditionKind {
	if r.ProcessingType == ProcessingConvert {
		return profile.SingleFile
	}
	return profile.Segmented
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ContentPatch holds the fields an update may change. Nil fields are left as is.
// Views and Likes are explicit corrections and must not be negative.
type ContentPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Views       *int64  `json:"views,omitempty"`
	Likes       *int64  `json:"likes,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// ListFilter narrows a catalog listing. Empty fields match everything.
type ListFilter struct {
	Category   string
	UploaderID string
}

// SortPolicy orders a preview listing.
type SortPolicy string

const (
	SortLatest   SortPolicy = "latest"
	SortPopular  SortPolicy = "popular"
	SortTrending SortPolicy = "trending"
)

// ListQuery is a ranked, paginated listing request.
type ListQuery struct {
	Category string
	Sort     SortPolicy
	Page     int
	Limit    int
}

// Preview is the caller-facing projection of a content record.
type Preview struct {
	ID              string        `json:"videoId"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	ThumbnailURL    *string       `json:"thumbnailUrl"`
	StreamingURL    *string       `json:"streamingUrl"`
	DurationSeconds float64       `json:"duration"`
	Views           int64         `json:"views"`
	Likes           int64         `json:"likes"`
	UploaderID      string        `json:"uploaderId"`
	UploadTimestamp time.Time     `json:"uploadTimestamp"`
	Category        string        `json:"category"`
	Quality         Quality       `json:"quality"`
	RenditionKind   RenditionKind `json:"renditionKind"`
}

// NewPreview projects r.
func NewPreview(r *ContentRecord) Preview {
	return Preview{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		ThumbnailURL:    cloneString(r.ThumbnailURL),
		StreamingURL:    cloneString(r.StreamingURL),
		DurationSeconds: r.DurationSeconds,
		Views:           r.Views,
		Likes:           r.Likes,
		UploaderID:      r.UploaderID,
		UploadTimestamp: r.UploadTimestamp,
		Category:        r.Category,
		Quality:         r.Quality,
		RenditionKind:   r.RenditionKind(),
	}
}

// Pagination describes where a page sits in the full result.
// Limit is the page size actually applied after capping.
type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// PreviewPage is one page of a ranked listing.
type PreviewPage struct {
	Videos     []Preview  `json:"videos"`
	Pagination Pagination `json:"pagination"`
}

// IngestRequest is an uploaded file plus its caller-supplied fields.
type IngestRequest struct {
	File             io.Reader
	OriginalFilename string
	Title            string
	Description      string
	Category         string
	UploaderID       string
	Quality          Quality
	ProcessingType   ProcessingType
	DeleteOriginal   bool
}

// IngestResult is returned for a committed ingest.
type IngestResult struct {
	Record            *ContentRecord
	ThumbnailFailed   bool
	DerivationElapsed time.Duration
}

// ArtifactKind names a deliverable derived artifact.
type ArtifactKind string

const (
	ArtifactStream    ArtifactKind = "stream"
	ArtifactMedia     ArtifactKind = "media"
	ArtifactThumbnail ArtifactKind = "thumbnail"
)
