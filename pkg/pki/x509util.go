// Package pki provides the public API for hermod.
// This file exposes name, CSR and PEM helpers from internal/x509util.
package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"

	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// Re-export x509util types
type (
	// DistinguishedName is an ordered X.501 name.
	DistinguishedName = x509util.DistinguishedName

	// GeneralName is one subject alternative name.
	GeneralName = x509util.GeneralName

	// CSR is a parsed and verified PKCS#10 request.
	CSR = x509util.CSR

	// CSRRequest describes a request to create.
	CSRRequest = x509util.CSRRequest
)

// ErrCSRSignature is returned for a request whose self-signature fails.
var ErrCSRSignature = x509util.ErrCSRSignature

// ParseDistinguishedName parses an RFC 4514 string such as "CN=a, O=b".
func ParseDistinguishedName(s string) (*DistinguishedName, error) {
	return x509util.ParseDistinguishedNameString(s)
}

// ParseGeneralName parses "DNS:host", "IP:addr", "email:addr" or "URI:uri".
func ParseGeneralName(s string) (GeneralName, error) {
	return x509util.ParseGeneralName(s)
}

// CreateCSR creates a PEM encoded request signed with priv.
func CreateCSR(req CSRRequest, priv crypto.PrivateKey) ([]byte, error) {
	der, err := x509util.CreateCSR(rand.Reader, req, priv)
	if err != nil {
		return nil, err
	}
	return x509util.EncodeCSRPEM(der), nil
}

// ParseCSRPEM decodes a PEM request and verifies its signature.
func ParseCSRPEM(data []byte) (*CSR, error) {
	return x509util.ParseCSRPEM(data)
}

// EncodeCertificatesPEM encodes certificates as concatenated PEM blocks.
func EncodeCertificatesPEM(certs ...*x509.Certificate) []byte {
	return x509util.EncodeCertificatesPEM(certs...)
}

// ParseCertificatesPEM decodes every certificate of a PEM file.
func ParseCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	return x509util.ParseCertificatesPEM(data)
}
