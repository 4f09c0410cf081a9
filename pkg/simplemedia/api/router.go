package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

// RouterConfig configures NewRouter
type RouterConfig struct {
	Service simplemedia.Service
	// APIPrefix is where the video and preview endpoints live, e.g. /api/v1
	APIPrefix string
	// ArtifactPrefix must match the service URL prefix
	ArtifactPrefix string
	MaxUploadBytes int64
	// JWTSecret enables bearer token identity instead of the X-User-ID header
	JWTSecret string
}

// NewRouter wires the video, preview and artifact handlers.
//
//	POST   {api}/videos/upload
//	GET    {api}/videos, {api}/videos/{id}
//	PATCH  {api}/videos/{id}
//	DELETE {api}/videos/{id}
//	POST   {api}/videos/{id}/views, {api}/videos/{id}/likes
//	GET    {api}/previews, /featured, /search, /categories
//	GET    {artifacts}/stream/{id}/{file}, /media/{id}.mp4, /thumbnails/{id}.jpg
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	Register(r, cfg)
	return r
}

// Register adds the NewRouter routes to an existing router.
func Register(r chi.Router, cfg RouterConfig) {
	videos := NewVideoHandler(cfg.Service, cfg.MaxUploadBytes)
	previews := NewPreviewHandler(cfg.Service)
	artifacts := NewArtifactHandler(cfg.Service)

	apiPrefix := normalizePrefix(cfg.APIPrefix)
	artifactPrefix := strings.TrimRight(cfg.ArtifactPrefix, "/")

	r.Route(apiPrefix, func(r chi.Router) {
		r.With(Identity(cfg.JWTSecret)).Mount("/videos", videos.Routes())
		r.Mount("/previews", previews.Routes())
		if rest, ok := underPrefix(artifactPrefix, apiPrefix); ok {
			artifacts.RegisterRoutes(r, rest)
		}
	})
	if _, ok := underPrefix(artifactPrefix, apiPrefix); !ok {
		artifacts.RegisterRoutes(r, artifactPrefix)
	}
}

func normalizePrefix(p string) string {
	return "/" + strings.Trim(p, "/")
}

// underPrefix reports whether path lies under prefix and returns the remainder.
func underPrefix(path, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(path, strings.TrimRight(prefix, "/"))
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return "", false
	}
	return rest, true
}
