package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/catalog/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/derive"
	"github.com/tendant/simple-media/pkg/simplemedia/layout"
	"github.com/tendant/simple-media/pkg/simplemedia/ranking"
)

const testSecret = "test-secret"

// stubEngine writes small placeholder artifacts instead of transcoding.
type stubEngine struct {
	fail bool
}

func (e *stubEngine) Run(ctx context.Context, inv derive.Invocation, progress func(float64)) error {
	if e.fail && !strings.HasSuffix(inv.Output, ".jpg") {
		return errors.New("exit status 1: /usr/bin/ffmpeg -i /srv/media/uploads/secret.mp4")
	}
	progress(100)
	switch {
	case strings.HasSuffix(inv.Output, ".jpg"):
		return os.WriteFile(inv.Output, []byte("jpeg-bytes"), 0644)
	case strings.HasSuffix(inv.Output, ".m3u8"):
		if err := os.WriteFile(filepath.Join(filepath.Dir(inv.Output), "segment_000.ts"), []byte("ts-bytes"), 0644); err != nil {
			return err
		}
		return os.WriteFile(inv.Output, []byte("#EXTM3U\n"), 0644)
	default:
		return os.WriteFile(inv.Output, []byte("mp4-bytes"), 0644)
	}
}

type testEnv struct {
	router  chi.Router
	catalog *memory.Catalog
}

// setupTestEnv creates the full router over an in-memory catalog and a stub engine
func setupTestEnv(t *testing.T, engine derive.Engine, jwtSecret string, opts ...simplemedia.Option) *testEnv {
	t.Helper()

	lm, err := layout.New(layout.Config{Root: t.TempDir()})
	require.NoError(t, err)
	executor, err := derive.New(engine)
	require.NoError(t, err)

	catalog := memory.New()
	lister, err := ranking.New(catalog)
	require.NoError(t, err)

	var seq int64
	base := []simplemedia.Option{
		simplemedia.WithCatalog(catalog),
		simplemedia.WithLister(lister),
		simplemedia.WithLayout(lm),
		simplemedia.WithExecutor(executor),
		simplemedia.WithIDGenerator(func() string {
			return fmt.Sprintf("vid-%d", atomic.AddInt64(&seq, 1))
		}),
	}
	svc, err := simplemedia.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})

	router := NewRouter(RouterConfig{
		Service:        svc,
		APIPrefix:      "/api/v1",
		ArtifactPrefix: simplemedia.DefaultURLPrefix,
		JWTSecret:      jwtSecret,
	})
	return &testEnv{router: router, catalog: catalog}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile(UploadField, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake video bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

func seed(t *testing.T, catalog *memory.Catalog, id, category string, views int64, age time.Duration) {
	t.Helper()
	require.NoError(t, catalog.Put(context.Background(), &simplemedia.ContentRecord{
		ID:              id,
		Title:           "Title " + id,
		Description:     "about " + id,
		Category:        category,
		UploaderID:      "user-1",
		UploadTimestamp: time.Now().UTC().Add(-age),
		ProcessingType:  simplemedia.ProcessingStreaming,
		Quality:         simplemedia.QualityMedium,
		Views:           views,
		Status:          simplemedia.StatusAvailable,
	}))
}

func TestUpload_StreamingThenDeliver(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")

	req := uploadRequest(t, "holiday.mp4", map[string]string{
		"title":    "Holiday",
		"category": "travel",
	})
	req.Header.Set(UserIDHeader, "user-42")
	rr := env.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp UploadResponse
	decode(t, rr, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Video processed successfully", resp.Message)
	assert.Equal(t, "vid-1", resp.VideoID)
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, "Holiday", resp.Metadata.Title)
	assert.Equal(t, "travel", resp.Metadata.Category)
	assert.Equal(t, "user-42", resp.Metadata.UploaderID)
	require.NotNil(t, resp.StreamingURL)
	assert.Equal(t, "/api/v1/stream/vid-1/playlist.m3u8", *resp.StreamingURL)

	t.Run("playlist", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, *resp.StreamingURL, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/vnd.apple.mpegurl", rr.Header().Get("Content-Type"))
		assert.Equal(t, "#EXTM3U\n", rr.Body.String())
	})

	t.Run("segment", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/stream/vid-1/segment_000.ts", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "video/mp2t", rr.Header().Get("Content-Type"))
	})

	t.Run("thumbnail", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/thumbnails/vid-1.jpg", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
		assert.Equal(t, "jpeg-bytes", rr.Body.String())
	})

	t.Run("categories", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews/categories", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Success bool           `json:"success"`
			Data    map[string]int `json:"data"`
		}
		decode(t, rr, &body)
		assert.Equal(t, map[string]int{"travel": 1}, body.Data)
	})
}

func TestUpload_ConvertServesMedia(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")

	req := uploadRequest(t, "clip.mov", map[string]string{
		"processingType": "convert",
		"quality":        "high",
		"deleteOriginal": "true",
	})
	req.Header.Set(UserIDHeader, "user-1")
	rr := env.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp UploadResponse
	decode(t, rr, &resp)
	require.NotNil(t, resp.StreamingURL)
	assert.Equal(t, "/api/v1/media/vid-1.mp4", *resp.StreamingURL)
	assert.Equal(t, simplemedia.QualityHigh, resp.Metadata.Quality)

	media := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/media/vid-1.mp4", nil))
	require.Equal(t, http.StatusOK, media.Code)
	assert.Equal(t, "video/mp4", media.Header().Get("Content-Type"))
	assert.Equal(t, "mp4-bytes", media.Body.String())
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		userID   string
		fields   map[string]string
		opts     []simplemedia.Option
		status   int
		message  string
	}{
		{name: "no file", userID: "user-1", status: http.StatusBadRequest, message: "No video file uploaded"},
		{name: "unsupported format", filename: "notes.txt", userID: "user-1", status: http.StatusBadRequest, message: "Unsupported file format. Please upload a video file."},
		{name: "no identity", filename: "clip.mp4", status: http.StatusUnauthorized, message: "Authentication required"},
		{name: "unknown processing type", filename: "clip.mp4", userID: "user-1", fields: map[string]string{"processingType": "audio"}, status: http.StatusBadRequest, message: "Invalid processing options"},
		{name: "bad deleteOriginal", filename: "clip.mp4", userID: "user-1", fields: map[string]string{"deleteOriginal": "maybe"}, status: http.StatusBadRequest, message: "Invalid deleteOriginal value"},
		{name: "too large", filename: "clip.mp4", userID: "user-1", opts: []simplemedia.Option{simplemedia.WithMaxUploadBytes(4)}, status: http.StatusRequestEntityTooLarge, message: "File too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, &stubEngine{}, "", tt.opts...)
			req := uploadRequest(t, tt.filename, tt.fields)
			if tt.userID != "" {
				req.Header.Set(UserIDHeader, tt.userID)
			}
			rr := env.do(req)
			assert.Equal(t, tt.status, rr.Code)

			var resp ErrorResponse
			decode(t, rr, &resp)
			assert.Equal(t, tt.message, resp.Error)

			records, err := env.catalog.List(context.Background(), simplemedia.ListFilter{})
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/upload", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "user-1")
	rr := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp ErrorResponse
	decode(t, rr, &resp)
	assert.Equal(t, "No video file uploaded", resp.Error)
}

func TestUpload_DerivationFailureHidesEngineDetail(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{fail: true}, "")

	req := uploadRequest(t, "clip.mp4", nil)
	req.Header.Set(UserIDHeader, "user-1")
	rr := env.do(req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp ErrorResponse
	decode(t, rr, &resp)
	assert.Equal(t, "Failed to process video", resp.Error)
	assert.Equal(t, "engine reported an error", resp.Details)
	assert.NotContains(t, rr.Body.String(), "/srv/media")
	assert.NotContains(t, rr.Body.String(), "ffmpeg")

	get := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/videos/vid-1", nil))
	assert.Equal(t, http.StatusNotFound, get.Code)
}

func TestUpload_JWTIdentity(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, testSecret)

	t.Run("missing token", func(t *testing.T) {
		req := uploadRequest(t, "clip.mp4", nil)
		req.Header.Set(UserIDHeader, "spoofed")
		rr := env.do(req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		_, token, err := jwtauth.New("HS256", []byte(testSecret), nil).Encode(map[string]interface{}{"sub": "user-jwt"})
		require.NoError(t, err)

		req := uploadRequest(t, "clip.mp4", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := env.do(req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var resp UploadResponse
		decode(t, rr, &resp)
		assert.Equal(t, "user-jwt", resp.Metadata.UploaderID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, token, err := jwtauth.New("HS256", []byte("other"), nil).Encode(map[string]interface{}{"sub": "user-jwt"})
		require.NoError(t, err)

		req := uploadRequest(t, "clip.mp4", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := env.do(req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestVideoHandler_RecordLifecycle(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")
	seed(t, env.catalog, "a", "music", 0, 0)

	t.Run("get", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/videos/a", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Success bool                      `json:"success"`
			Data    simplemedia.ContentRecord `json:"data"`
		}
		decode(t, rr, &body)
		assert.True(t, body.Success)
		assert.Equal(t, "Title a", body.Data.Title)
	})

	t.Run("views and likes", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodPost, "/api/v1/videos/a/views", nil)).Code)
		assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodPost, "/api/v1/videos/a/views", nil)).Code)
		assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodPost, "/api/v1/videos/a/likes", nil)).Code)

		record, err := env.catalog.Get(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, int64(2), record.Views)
		assert.Equal(t, int64(1), record.Likes)
	})

	t.Run("patch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/videos/a", strings.NewReader(`{"title":"Renamed","category":"news"}`))
		rr := env.do(req)
		require.Equal(t, http.StatusOK, rr.Code)

		categories, err := env.catalog.Categories(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"news": 1}, categories)
	})

	t.Run("patch rejects negative views", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodPatch, "/api/v1/videos/a", strings.NewReader(`{"views":-3}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("patch bad body", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodPatch, "/api/v1/videos/a", strings.NewReader(`{`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("patch missing", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodPatch, "/api/v1/videos/missing", strings.NewReader(`{"title":"x"}`)))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/videos/a", nil)).Code)
		assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodGet, "/api/v1/videos/a", nil)).Code)
	})
}

func TestVideoHandler_ListFilters(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")
	seed(t, env.catalog, "a", "music", 0, time.Hour)
	seed(t, env.catalog, "b", "news", 0, 0)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/videos?category=music", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []simplemedia.ContentRecord `json:"data"`
	}
	decode(t, rr, &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "a", body.Data[0].ID)
}

func TestPreviewHandler_List(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")
	seed(t, env.catalog, "a", "music", 5, 2*time.Hour)
	seed(t, env.catalog, "b", "music", 50, time.Hour)
	seed(t, env.catalog, "c", "news", 1, 0)

	type listBody struct {
		Success bool                    `json:"success"`
		Data    simplemedia.PreviewPage `json:"data"`
	}

	t.Run("defaults to latest", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body listBody
		decode(t, rr, &body)
		assert.True(t, body.Success)
		require.Len(t, body.Data.Videos, 3)
		assert.Equal(t, "c", body.Data.Videos[0].ID)
		assert.Equal(t, simplemedia.Pagination{Total: 3, Page: 1, Limit: 12, TotalPages: 1, HasMore: false}, body.Data.Pagination)
	})

	t.Run("popular page", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews?sort=popular&limit=2", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body listBody
		decode(t, rr, &body)
		require.Len(t, body.Data.Videos, 2)
		assert.Equal(t, "b", body.Data.Videos[0].ID)
		assert.Equal(t, "a", body.Data.Videos[1].ID)
		assert.True(t, body.Data.Pagination.HasMore)
		assert.Equal(t, 2, body.Data.Pagination.TotalPages)
	})

	t.Run("category filter", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews?category=news", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body listBody
		decode(t, rr, &body)
		require.Len(t, body.Data.Videos, 1)
		assert.Equal(t, "c", body.Data.Videos[0].ID)
	})

	for name, query := range map[string]string{
		"non-numeric page":  "page=abc",
		"non-numeric limit": "limit=x",
		"zero page":         "page=0",
		"unknown sort":      "sort=random",
	} {
		t.Run(name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestPreviewHandler_FeaturedAndSearch(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")
	seed(t, env.catalog, "a", "music", 5, 2*time.Hour)
	seed(t, env.catalog, "b", "music", 50, time.Hour)

	type previewsBody struct {
		Data []simplemedia.Preview `json:"data"`
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews/featured?limit=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var featured previewsBody
	decode(t, rr, &featured)
	require.Len(t, featured.Data, 1)
	assert.Equal(t, "b", featured.Data[0].ID)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews/search?q=ABOUT%20a", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var found previewsBody
	decode(t, rr, &found)
	require.Len(t, found.Data, 1)
	assert.Equal(t, "a", found.Data[0].ID)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/previews/search", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestArtifactHandler_NotFound(t *testing.T) {
	env := setupTestEnv(t, &stubEngine{}, "")

	for _, path := range []string{
		"/api/v1/stream/missing/playlist.m3u8",
		"/api/v1/stream/vid-1/..%2F..%2Fetc%2Fpasswd",
		"/api/v1/media/vid-1.avi",
		"/api/v1/media/missing.mp4",
		"/api/v1/thumbnails/missing.png",
		"/api/v1/thumbnails/..%2Fsecret.jpg",
	} {
		t.Run(path, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{simplemedia.ErrContentNotFound, http.StatusNotFound},
		{simplemedia.ErrInvalidContentID, http.StatusNotFound},
		{&simplemedia.IngestError{Op: "validate", Err: simplemedia.ErrMissingUploader}, http.StatusUnauthorized},
		{&simplemedia.IngestError{Op: "store_upload", Err: simplemedia.ErrUploadTooLarge}, http.StatusRequestEntityTooLarge},
		{&simplemedia.IngestError{Op: "derive_main", Err: &simplemedia.DerivationError{Reason: "engine produced no output"}}, http.StatusInternalServerError},
		{&simplemedia.IngestError{Op: "ingest", Err: context.Canceled}, http.StatusServiceUnavailable},
		{&simplemedia.StorageError{Backend: "s3", Key: "processed/x.mp4", Op: "upload", Err: errors.New("denied")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, body := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.NotContains(t, body.Details, "processed/")
		})
	}
}
