package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	mediaExt     = ".mp4"
	thumbnailExt = ".jpg"
)

// ArtifactHandler delivers derived artifacts
type ArtifactHandler struct {
	service simplemedia.Service
}

func NewArtifactHandler(service simplemedia.Service) *ArtifactHandler {
	return &ArtifactHandler{service: service}
}

// RegisterRoutes adds the artifact paths under prefix. They match the URLs
// stored on records.
func (h *ArtifactHandler) RegisterRoutes(r chi.Router, prefix string) {
	r.Get(prefix+"/stream/{id}/{file}", h.Stream)
	r.Get(prefix+"/media/{file}", h.Media)
	r.Get(prefix+"/thumbnails/{file}", h.Thumbnail)
}

func (h *ArtifactHandler) Stream(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	h.serve(w, r, simplemedia.ArtifactStream, chi.URLParam(r, "id"), file)
}

func (h *ArtifactHandler) Media(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(chi.URLParam(r, "file"), mediaExt)
	if !ok {
		writeError(w, r, simplemedia.ErrArtifactNotFound)
		return
	}
	h.serve(w, r, simplemedia.ArtifactMedia, id, id+mediaExt)
}

func (h *ArtifactHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(chi.URLParam(r, "file"), thumbnailExt)
	if !ok {
		writeError(w, r, simplemedia.ErrArtifactNotFound)
		return
	}
	h.serve(w, r, simplemedia.ArtifactThumbnail, id, id+thumbnailExt)
}

func (h *ArtifactHandler) serve(w http.ResponseWriter, r *http.Request, kind simplemedia.ArtifactKind, id, name string) {
	rc, err := h.service.OpenArtifact(r.Context(), kind, id, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", simplemedia.ContentTypeFor(name))
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Debug("artifact copy interrupted", "kind", kind, "content_id", id, "error", err)
	}
}
