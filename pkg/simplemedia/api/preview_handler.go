package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	defaultPage  = 1
	defaultLimit = 12
)

// PreviewHandler serves ranked listings and the category aggregate
type PreviewHandler struct {
	service simplemedia.Service
}

func NewPreviewHandler(service simplemedia.Service) *PreviewHandler {
	return &PreviewHandler{service: service}
}

// Routes returns the router for preview endpoints
func (h *PreviewHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/featured", h.Featured)
	r.Get("/search", h.Search)
	r.Get("/categories", h.Categories)
	return r
}

// List serves ?page=&limit=&category=&sort=
func (h *PreviewHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), defaultPage)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid page parameter"})
		return
	}
	limit, err := intParam(q.Get("limit"), defaultLimit)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid limit parameter"})
		return
	}

	result, err := h.service.ListPreviews(r.Context(), simplemedia.ListQuery{
		Category: q.Get("category"),
		Sort:     simplemedia.SortPolicy(q.Get("sort")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Success: true, Data: result})
}

func (h *PreviewHandler) Featured(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid limit parameter"})
		return
	}
	previews, err := h.service.Featured(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Success: true, Data: previews})
}

func (h *PreviewHandler) Search(w http.ResponseWriter, r *http.Request) {
	previews, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Success: true, Data: previews})
}

func (h *PreviewHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DataResponse{Success: true, Data: categories})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
