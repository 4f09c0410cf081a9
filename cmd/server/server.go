package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-media/pkg/simplemedia/api"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

// HTTPServer exposes a built media runtime over HTTP
type HTTPServer struct {
	runtime  *config.Runtime
	config   *config.ServerConfig
	settings Settings
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(rt *config.Runtime, serverConfig *config.ServerConfig, settings Settings) *HTTPServer {
	return &HTTPServer{
		runtime:  rt,
		config:   serverConfig,
		settings: settings,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS for development
	if s.config.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+api.UserIDHeader)

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	if s.runtime.Metrics != nil {
		r.Handle("/metrics", s.runtime.Metrics.Handler())
	}

	// No request timeout: uploads block until derivation finishes.
	api.Register(r, api.RouterConfig{
		Service:        s.runtime.Service,
		APIPrefix:      s.settings.APIPrefix,
		ArtifactPrefix: s.config.URLPrefix,
		MaxUploadBytes: s.config.MaxUploadBytes,
		JWTSecret:      s.settings.JWTSecret,
	})

	return r
}
