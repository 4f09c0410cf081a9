package simplemedia

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia/profile"
)

// SupportedExtensions lists the accepted upload extensions.
var SupportedExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}

// IsSupportedExtension reports whether filename carries an accepted extension.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// NormalizeCategory trims c and falls back to DefaultCategory.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultCategory
	}
	return c
}

// NormalizeIngestRequest fills in every documented default. It runs before
// validation and never fails:
//
//	title          -> original filename without its extension
//	description    -> ""
//	category       -> "uncategorized"
//	quality        -> medium (also for unknown tiers)
//	processingType -> streaming
func NormalizeIngestRequest(req IngestRequest) IngestRequest {
	req.OriginalFilename = filepath.Base(strings.TrimSpace(req.OriginalFilename))
	if req.OriginalFilename == "." || req.OriginalFilename == string(filepath.Separator) {
		req.OriginalFilename = ""
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		req.Title = strings.TrimSuffix(req.OriginalFilename, filepath.Ext(req.OriginalFilename))
	}
	req.Description = strings.TrimSpace(req.Description)
	req.Category = NormalizeCategory(req.Category)
	req.UploaderID = strings.TrimSpace(req.UploaderID)

	req.Quality = Quality(strings.ToLower(strings.TrimSpace(string(req.Quality))))
	if !req.Quality.IsValid() {
		req.Quality = profile.DefaultQuality
	}

	req.ProcessingType = ProcessingType(strings.ToLower(strings.TrimSpace(string(req.ProcessingType))))
	if req.ProcessingType == "" {
		req.ProcessingType = ProcessingStreaming
	}
	return req
}

// ValidateIngestRequest checks a normalized request.
func ValidateIngestRequest(req IngestRequest) error {
	if req.File == nil {
		return ErrMissingFile
	}
	if !IsSupportedExtension(req.OriginalFilename) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(req.OriginalFilename))
	}
	if req.UploaderID == "" {
		return ErrMissingUploader
	}
	return nil
}

// ValidatePatch rejects corrections that would break record invariants.
func ValidatePatch(patch ContentPatch) error {
	if patch.Views != nil && *patch.Views < 0 {
		return fmt.Errorf("%w: views must not be negative", ErrInvalidPatch)
	}
	if patch.Likes != nil && *patch.Likes < 0 {
		return fmt.Errorf("%w: likes must not be negative", ErrInvalidPatch)
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, *patch.Status)
	}
	return nil
}

// ApplyPatch merges patch into r and bumps LastUpdated.
// An empty category in the patch normalizes to DefaultCategory.
func ApplyPatch(r *ContentRecord, patch ContentPatch, now time.Time) {
	if patch.Title != nil {
		r.Title = *patch.Title
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	if patch.Category != nil {
		r.Category = NormalizeCategory(*patch.Category)
	}
	if patch.Views != nil {
		r.Views = *patch.Views
	}
	if patch.Likes != nil {
		r.Likes = *patch.Likes
	}
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	r.LastUpdated = now
}
