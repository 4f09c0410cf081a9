package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	// UploadField is the multipart field carrying the video file.
	UploadField = "video"

	multipartMemory = 32 << 20
	formOverhead    = 1 << 20
)

// VideoHandler serves upload and record endpoints
type VideoHandler struct {
	service        simplemedia.Service
	maxUploadBytes int64
}

// NewVideoHandler creates a VideoHandler. maxUploadBytes <= 0 leaves the
// limit to the service.
func NewVideoHandler(service simplemedia.Service, maxUploadBytes int64) *VideoHandler {
	return &VideoHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the router for video endpoints
func (h *VideoHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload", h.Upload)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/views", h.RecordView)
	r.Post("/{id}/likes", h.RecordLike)
	return r
}

// UploadResponse is returned for a committed ingest
type UploadResponse struct {
	Success         bool                       `json:"success"`
	Message         string                     `json:"message"`
	VideoID         string                     `json:"videoId"`
	Metadata        *simplemedia.ContentRecord `json:"metadata"`
	StreamingURL    *string                    `json:"streamingUrl"`
	ThumbnailFailed bool                       `json:"thumbnailFailed,omitempty"`
}

// DataResponse wraps a successful payload
type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// Upload ingests a multipart upload and answers once the record is committed.
func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, simplemedia.ErrUploadTooLarge)
			return
		}
		writeError(w, r, simplemedia.ErrMissingFile)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	req := simplemedia.IngestRequest{
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		Category:       r.FormValue("category"),
		UploaderID:     UserIDFromContext(r.Context()),
		Quality:        simplemedia.Quality(r.FormValue("quality")),
		ProcessingType: simplemedia.ProcessingType(r.FormValue("processingType")),
	}
	if v := r.FormValue("deleteOriginal"); v != "" {
		deleteOriginal, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid deleteOriginal value"})
			return
		}
		req.DeleteOriginal = deleteOriginal
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		slog.Error("failed to open uploaded file", "error", err)
		writeError(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
		req.File = file
		req.OriginalFilename = header.Filename
	}

	result, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, UploadResponse{
		Success:         true,
		Message:         "Video processed successfully",
		VideoID:         result.Record.ID,
		Metadata:        result.Record,
		StreamingURL:    result.Record.StreamingURL,
		ThumbnailFailed: result.ThumbnailFailed,
	})
}

// List returns full records, filtered by category and uploader.
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), simplemedia.ListFilter{
		Category:   r.URL.Query().Get("category"),
		UploaderID: r.URL.Query().Get("uploaderId"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Success: true, Data: records})
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Success: true, Data: record})
}

// Update applies a JSON patch of title, description, category, views, likes and status.
func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch simplemedia.ContentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	record, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Success: true, Data: record})
}

func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VideoHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RecordView(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VideoHandler) RecordLike(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RecordLike(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
