// Package handler provides HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/dto"
	apierrors "github.com/Vanaheimr/Hermod-sub016/internal/api/errors"
	"github.com/Vanaheimr/Hermod-sub016/internal/logging"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// HealthHandler handles health and readiness endpoints.
type HealthHandler struct {
	version string
	svc     *service.Service
	now     func() time.Time
}

// NewHealthHandler creates a new HealthHandler. svc may be nil, in which
// case the server reports itself not ready.
func NewHealthHandler(version string, svc *service.Service) *HealthHandler {
	return &HealthHandler{version: version, svc: svc, now: time.Now}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready handles GET /ready. The server is ready when an issuing CA is
// loaded and currently within its validity period.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"issuer_loaded": h.svc != nil,
		"issuer_valid":  false,
	}
	if h.svc != nil {
		now := h.now()
		issuer := h.svc.Issuer()
		checks["issuer_valid"] = !now.Before(issuer.NotBefore) && !now.After(issuer.NotAfter)
	}

	allReady := true
	for _, ready := range checks {
		if !ready {
			allReady = false
			break
		}
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, dto.ReadyResponse{Ready: allReady, Checks: checks})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid JSON request body: "+err.Error()))
		return false
	}
	return true
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, apiErr *dto.APIError) {
	respondJSON(w, status, apiErr)
}

// handleServiceError maps service errors to HTTP responses and logs the
// ones that are not the caller's fault.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := apierrors.MapError(err)
	if status >= http.StatusInternalServerError {
		logging.From(r.Context()).Error("request failed", zap.Error(err))
	}
	respondError(w, status, apiErr)
}
