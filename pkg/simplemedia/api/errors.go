package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// writeError maps err to a status and a caller-safe body. Paths, command
// lines and engine output only ever reach the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, r, status, body)
}

func classify(err error) (int, ErrorResponse) {
	var ingestErr *simplemedia.IngestError
	reason := ""
	if errors.As(err, &ingestErr) {
		reason = ingestErr.Reason()
	}

	switch {
	case errors.Is(err, simplemedia.ErrUnsupportedFormat):
		return http.StatusBadRequest, ErrorResponse{Error: "Unsupported file format. Please upload a video file.", Details: reason}
	case errors.Is(err, simplemedia.ErrMissingFile):
		return http.StatusBadRequest, ErrorResponse{Error: "No video file uploaded"}
	case errors.Is(err, simplemedia.ErrInvalidProfile):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid processing options", Details: reason}
	case errors.Is(err, simplemedia.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: "File too large", Details: reason}
	case errors.Is(err, simplemedia.ErrMissingUploader):
		return http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"}
	case errors.Is(err, simplemedia.ErrInvalidQuery):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Details: err.Error()}
	case errors.Is(err, simplemedia.ErrInvalidPatch):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid update", Details: err.Error()}
	case errors.Is(err, simplemedia.ErrContentNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Video not found"}
	case errors.Is(err, simplemedia.ErrArtifactNotFound), errors.Is(err, simplemedia.ErrInvalidContentID):
		return http.StatusNotFound, ErrorResponse{Error: "Not found"}
	case errors.Is(err, simplemedia.ErrDerivationFailed):
		return http.StatusInternalServerError, ErrorResponse{Error: "Failed to process video", Details: reason}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Request cancelled", Details: "processing continues in the background"}
	case ingestErr != nil:
		return http.StatusInternalServerError, ErrorResponse{Error: "Failed to process video", Details: reason}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	}
}
