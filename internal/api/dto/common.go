// Package dto provides Data Transfer Objects for the REST API.
package dto

import (
	"time"

	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// APIError represents a standardized error response.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details provides additional context about the error.
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Version is the server version.
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	// Ready indicates if the server is ready to accept requests.
	Ready bool `json:"ready"`

	// Checks lists individual readiness checks.
	Checks map[string]bool `json:"checks,omitempty"`
}

// Attribute is one attribute of a distinguished name.
type Attribute struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// DistinguishedName is a decoded X.501 name.
type DistinguishedName struct {
	// String is the RFC 4514 rendering.
	String string `json:"dn"`

	CommonName string      `json:"cn,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

// NewDistinguishedName converts an x509util name.
func NewDistinguishedName(dn *x509util.DistinguishedName) DistinguishedName {
	out := DistinguishedName{
		String:     dn.String(),
		CommonName: dn.CommonName(),
		Attributes: []Attribute{},
	}
	for _, a := range dn.Attributes() {
		out.Attributes = append(out.Attributes, Attribute{Type: a[0], Value: a[1]})
	}
	return out
}

// ValidityInfo represents a certificate validity period.
type ValidityInfo struct {
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
}
