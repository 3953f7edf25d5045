// Package router provides HTTP routing configuration using Chi.
package router

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/dto"
	apierrors "github.com/Vanaheimr/Hermod-sub016/internal/api/errors"
	"github.com/Vanaheimr/Hermod-sub016/internal/api/handler"
	"github.com/Vanaheimr/Hermod-sub016/internal/api/middleware"
	"github.com/Vanaheimr/Hermod-sub016/internal/metrics"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Config holds router configuration.
type Config struct {
	Version string

	// Service is the CA service behind /api/v1.
	Service *service.Service

	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *metrics.Metrics

	Logger      *zap.Logger
	CORSOrigins []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, apierrors.NewNotFound("route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, &dto.APIError{
			Code:    apierrors.CodeMethodNotAllowed,
			Message: r.Method + " is not allowed on " + r.URL.Path,
		})
	})

	// Health endpoints (always enabled)
	healthHandler := handler.NewHealthHandler(cfg.Version, cfg.Service)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/api/openapi.yaml", serveOpenAPISpec)

	if cfg.Service == nil {
		return r
	}

	caHandler := handler.NewCAHandler(cfg.Service)
	certHandler := handler.NewCertHandler(cfg.Service)
	chainHandler := handler.NewChainHandler(cfg.Service)
	dnHandler := handler.NewDNHandler()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ca", caHandler.Get)
		r.Post("/certificates", certHandler.Issue)
		r.Post("/chains/validate", chainHandler.Validate)
		r.Post("/dn", dnHandler.Show)
	})

	return r
}

// serveOpenAPISpec serves the embedded OpenAPI document.
func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}

func writeError(w http.ResponseWriter, status int, apiErr *dto.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
