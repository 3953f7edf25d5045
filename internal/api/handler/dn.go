package handler

import (
	"net/http"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/dto"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
)

// DNHandler decodes certificate names.
type DNHandler struct{}

// NewDNHandler creates a new DNHandler.
func NewDNHandler() *DNHandler {
	return &DNHandler{}
}

// Show handles POST /api/v1/dn.
func (h *DNHandler) Show(w http.ResponseWriter, r *http.Request) {
	var req dto.DNRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cert, ok := parseCertificate(w, "certificate", req.Certificate)
	if !ok {
		return
	}
	info, err := service.Describe(cert)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	resp := dto.DNResponse{
		Subject: dto.NewDistinguishedName(info.Subject),
		Issuer:  dto.NewDistinguishedName(info.Issuer),
	}
	for _, gn := range info.SubjectAltNames {
		resp.SubjectAltNames = append(resp.SubjectAltNames, gn.String())
	}
	respondJSON(w, http.StatusOK, resp)
}
