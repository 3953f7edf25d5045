package handler

import (
	"net/http"
	"strings"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/dto"
	apierrors "github.com/Vanaheimr/Hermod-sub016/internal/api/errors"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// ChainHandler validates certificate chains.
type ChainHandler struct {
	service *service.Service
}

// NewChainHandler creates a new ChainHandler.
func NewChainHandler(svc *service.Service) *ChainHandler {
	return &ChainHandler{service: svc}
}

// Validate handles POST /api/v1/chains/validate. An invalid chain is still a
// 200 response; the verdict is in the report.
func (h *ChainHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ChainValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, ok := parseCertificate(w, "certificate", req.Certificate)
	if !ok {
		return
	}
	vr := service.ValidateRequest{Target: target}
	if strings.TrimSpace(req.Intermediates) != "" {
		certs, err := x509util.ParseCertificatesPEM([]byte(req.Intermediates))
		if err != nil {
			respondError(w, http.StatusBadRequest, apierrors.NewValidationError(err.Error(), map[string]string{"field": "intermediates"}))
			return
		}
		vr.Intermediates = certs
	}
	if strings.TrimSpace(req.Root) != "" {
		if vr.Root, ok = parseCertificate(w, "root", req.Root); !ok {
			return
		}
	}
	for _, name := range req.ExtKeyUsage {
		oid, err := x509util.ParseExtKeyUsage(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, apierrors.NewValidationError(err.Error(), map[string]string{"field": "ext_key_usage"}))
			return
		}
		vr.RequiredEKU = append(vr.RequiredEKU, oid)
	}

	report, err := h.service.Validate(r.Context(), vr)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
