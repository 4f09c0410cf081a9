package simplemedia

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-media/pkg/simplemedia/derive"
	"github.com/tendant/simple-media/pkg/simplemedia/layout"
	"github.com/tendant/simple-media/pkg/simplemedia/profile"
)

// Error types
var (
	// ErrUnsupportedFormat indicates an upload whose extension is not accepted
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidProfile indicates an unrecognized processing type
	ErrInvalidProfile = profile.ErrInvalidProfile

	// ErrDerivationFailed indicates the main artifact could not be produced
	ErrDerivationFailed = derive.ErrFailed

	// ErrThumbnailFailed indicates the preview image could not be produced
	ErrThumbnailFailed = errors.New("thumbnail derivation failed")

	// ErrContentNotFound indicates a content record was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidQuery indicates bad listing parameters
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidContentID indicates an id that cannot name artifacts
	ErrInvalidContentID = layout.ErrInvalidContentID

	// ErrArtifactNotFound indicates no artifact exists under a key
	ErrArtifactNotFound = layout.ErrArtifactNotFound

	// ErrMissingUploader indicates an upload without caller identity
	ErrMissingUploader = errors.New("uploader identity is required")

	// ErrMissingFile indicates an upload without a file
	ErrMissingFile = errors.New("no file uploaded")

	// ErrUploadTooLarge indicates an upload above the configured size limit
	ErrUploadTooLarge = errors.New("upload too large")

	// ErrInvalidPatch indicates an update with out-of-range values
	ErrInvalidPatch = errors.New("invalid update")
)

// DerivationError is a failed engine invocation, see derive.Error.
type DerivationError = derive.Error

// IngestError represents a failure at one step of an ingest
type IngestError struct {
	ContentID string
	Op        string
	Err       error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest step %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Reason returns a short description safe to show callers. Engine detail,
// paths and command lines stay in the logs.
func (e *IngestError) Reason() string {
	var derr *derive.Error
	if errors.As(e.Err, &derr) {
		return derr.Reason
	}
	switch {
	case errors.Is(e.Err, ErrUnsupportedFormat):
		return "unsupported file format"
	case errors.Is(e.Err, ErrInvalidProfile):
		return "unsupported processing type"
	case errors.Is(e.Err, ErrUploadTooLarge):
		return "file exceeds the upload size limit"
	case errors.Is(e.Err, ErrMissingUploader):
		return "uploader identity is required"
	case errors.Is(e.Err, ErrMissingFile):
		return "no file uploaded"
	}
	return e.Op + " failed"
}

// StorageError represents an error related to artifact store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
