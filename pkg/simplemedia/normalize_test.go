package simplemedia_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestNormalizeIngestRequest_Defaults(t *testing.T) {
	req := simplemedia.NormalizeIngestRequest(simplemedia.IngestRequest{
		OriginalFilename: "  my.holiday.clip.MP4 ",
		UploaderID:       " user-1 ",
	})

	assert.Equal(t, "my.holiday.clip.MP4", req.OriginalFilename)
	assert.Equal(t, "my.holiday.clip", req.Title)
	assert.Equal(t, "", req.Description)
	assert.Equal(t, "uncategorized", req.Category)
	assert.Equal(t, "user-1", req.UploaderID)
	assert.Equal(t, simplemedia.QualityMedium, req.Quality)
	assert.Equal(t, simplemedia.ProcessingStreaming, req.ProcessingType)
}

func TestNormalizeIngestRequest_KeepsValues(t *testing.T) {
	req := simplemedia.NormalizeIngestRequest(simplemedia.IngestRequest{
		OriginalFilename: "dir/clip.mp4",
		Title:            "Title",
		Description:      " desc ",
		Category:         "news",
		Quality:          "HIGH",
		ProcessingType:   "Convert",
	})

	assert.Equal(t, "clip.mp4", req.OriginalFilename)
	assert.Equal(t, "Title", req.Title)
	assert.Equal(t, "desc", req.Description)
	assert.Equal(t, "news", req.Category)
	assert.Equal(t, simplemedia.QualityHigh, req.Quality)
	assert.Equal(t, simplemedia.ProcessingConvert, req.ProcessingType)
}

func TestValidateIngestRequest(t *testing.T) {
	valid := simplemedia.IngestRequest{
		File:             bytes.NewBufferString("x"),
		OriginalFilename: "clip.webm",
		UploaderID:       "user-1",
	}
	assert.NoError(t, simplemedia.ValidateIngestRequest(valid))

	for _, name := range []string{"clip.txt", "clip", "clip.mp4.exe", ""} {
		req := valid
		req.OriginalFilename = name
		assert.ErrorIs(t, simplemedia.ValidateIngestRequest(req), simplemedia.ErrUnsupportedFormat, name)
	}

	for _, name := range []string{"a.MP4", "b.Avi", "c.mov", "d.MKV", "e.webm"} {
		assert.True(t, simplemedia.IsSupportedExtension(name), name)
	}
}

func TestValidatePatch(t *testing.T) {
	zero := int64(0)
	negative := int64(-1)
	bogus := simplemedia.Status("archived")
	failed := simplemedia.StatusFailed

	assert.NoError(t, simplemedia.ValidatePatch(simplemedia.ContentPatch{Views: &zero, Status: &failed}))
	assert.ErrorIs(t, simplemedia.ValidatePatch(simplemedia.ContentPatch{Views: &negative}), simplemedia.ErrInvalidPatch)
	assert.ErrorIs(t, simplemedia.ValidatePatch(simplemedia.ContentPatch{Likes: &negative}), simplemedia.ErrInvalidPatch)
	assert.ErrorIs(t, simplemedia.ValidatePatch(simplemedia.ContentPatch{Status: &bogus}), simplemedia.ErrInvalidPatch)
}

func TestApplyPatch(t *testing.T) {
	record := &simplemedia.ContentRecord{Title: "old", Category: "news", Description: "d"}
	empty := ""
	title := "new"
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	simplemedia.ApplyPatch(record, simplemedia.ContentPatch{Title: &title, Category: &empty}, now)

	assert.Equal(t, "new", record.Title)
	assert.Equal(t, "d", record.Description)
	assert.Equal(t, simplemedia.DefaultCategory, record.Category)
	assert.Equal(t, now, record.LastUpdated)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/vnd.apple.mpegurl", simplemedia.ContentTypeFor("processed/a/playlist.m3u8"))
	assert.Equal(t, "video/mp2t", simplemedia.ContentTypeFor("segment_001.ts"))
	assert.Equal(t, "image/jpeg", simplemedia.ContentTypeFor("thumbnails/a.jpg"))
	assert.Equal(t, "video/mp4", simplemedia.ContentTypeFor("processed/a.mp4"))
	assert.Equal(t, "application/octet-stream", simplemedia.ContentTypeFor("blob"))
}

func TestPreviewProjection(t *testing.T) {
	url := "/api/v1/media/a.mp4"
	record := &simplemedia.ContentRecord{
		ID:               "a",
		ProcessingType:   simplemedia.ProcessingConvert,
		StreamingURL:     &url,
		OriginalFilename: "secret-name.mp4",
	}

	preview := simplemedia.NewPreview(record)
	assert.Equal(t, "a", preview.ID)
	assert.Equal(t, simplemedia.RenditionKind("single-file"), preview.RenditionKind)
	assert.Nil(t, preview.ThumbnailURL)

	// The projection owns its pointers.
	*preview.StreamingURL = "changed"
	assert.Equal(t, "/api/v1/media/a.mp4", *record.StreamingURL)
}
