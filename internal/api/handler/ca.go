package handler

import (
	"net/http"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/dto"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// CAHandler serves the issuing CA.
type CAHandler struct {
	service *service.Service
}

// NewCAHandler creates a new CAHandler.
func NewCAHandler(svc *service.Service) *CAHandler {
	return &CAHandler{service: svc}
}

// Get handles GET /api/v1/ca. With Accept: application/x-pem-file the
// issuing chain is returned as PEM instead of JSON.
func (h *CAHandler) Get(w http.ResponseWriter, r *http.Request) {
	chain := x509util.EncodeCertificatesPEM(h.service.Chain()...)
	if r.Header.Get("Accept") == "application/x-pem-file" {
		w.Header().Set("Content-Type", "application/x-pem-file")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(chain)
		return
	}

	info, err := service.Describe(h.service.Issuer())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.CAResponse{
		Subject:      dto.NewDistinguishedName(info.Subject),
		Serial:       info.Serial,
		KeyAlgorithm: info.KeyAlgorithm,
		Validity:     dto.ValidityInfo{NotBefore: info.NotBefore, NotAfter: info.NotAfter},
		Chain:        string(chain),
		Profiles:     h.service.Profiles(),
	})
}
