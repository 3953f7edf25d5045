package handler

import (
	"crypto/x509"
	"net/http"
	"strings"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/dto"
	apierrors "github.com/Vanaheimr/Hermod-sub016/internal/api/errors"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// CertHandler handles certificate-related HTTP requests.
type CertHandler struct {
	service *service.Service
}

// NewCertHandler creates a new CertHandler.
func NewCertHandler(svc *service.Service) *CertHandler {
	return &CertHandler{service: svc}
}

// Issue handles POST /api/v1/certificates.
func (h *CertHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req dto.CertIssueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Profile == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewValidationError("profile is required", map[string]string{"field": "profile"}))
		return
	}
	csr, err := x509util.DecodeCSRPEM([]byte(req.CSR))
	if err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewValidationError(err.Error(), map[string]string{"field": "csr"}))
		return
	}
	var sans []x509util.GeneralName
	for _, s := range req.SubjectAltNames {
		gn, err := x509util.ParseGeneralName(strings.TrimSpace(s))
		if err != nil {
			respondError(w, http.StatusBadRequest, apierrors.NewValidationError(err.Error(), map[string]string{"field": "subject_alt_names"}))
			return
		}
		sans = append(sans, gn)
	}

	res, err := h.service.Issue(r.Context(), service.IssueRequest{
		CSR:             csr,
		Profile:         req.Profile,
		CommonName:      req.CommonName,
		SubjectAltNames: sans,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	info, err := service.Describe(res.Certificate.Certificate)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.CertIssueResponse{
		Serial:             info.Serial,
		Subject:            dto.NewDistinguishedName(info.Subject),
		Issuer:             dto.NewDistinguishedName(info.Issuer),
		KeyAlgorithm:       info.KeyAlgorithm,
		SignatureAlgorithm: info.Scheme,
		Validity:           dto.ValidityInfo{NotBefore: info.NotBefore, NotAfter: info.NotAfter},
		Certificate:        string(res.Certificate.PEM()),
		Chain:              string(x509util.EncodeCertificatesPEM(res.Chain...)),
	})
}

// parseCertificate decodes the single PEM certificate in field of a request.
func parseCertificate(w http.ResponseWriter, field, data string) (*x509.Certificate, bool) {
	cert, err := x509util.ParseCertificatePEM([]byte(data))
	if err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewValidationError(err.Error(), map[string]string{"field": field}))
		return nil, false
	}
	return cert, true
}
