package x509util

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	pemTypeCertificate = "CERTIFICATE"
	pemTypeCSR         = "CERTIFICATE REQUEST"
	pemTypeCSRLegacy   = "NEW CERTIFICATE REQUEST"
)

// EncodeCertificatesPEM armours certificates in order.
func EncodeCertificatesPEM(certs ...*x509.Certificate) []byte {
	var out []byte
	for _, c := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: c.Raw})...)
	}
	return out
}

// ParseCertificatesPEM decodes every CERTIFICATE block in data. Other block
// types are skipped.
func ParseCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != pemTypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", len(certs)+1, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificate PEM block found")
	}
	return certs, nil
}

// ParseCertificatePEM returns the first certificate in data.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	certs, err := ParseCertificatesPEM(data)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// EncodeCSRPEM armours a DER certification request.
func EncodeCSRPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCSR, Bytes: der})
}

// DecodeCSRPEM returns the DER bytes of the first certification request in
// data without verifying it.
func DecodeCSRPEM(data []byte) ([]byte, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no certificate request PEM block found")
		}
		if block.Type == pemTypeCSR || block.Type == pemTypeCSRLegacy {
			return block.Bytes, nil
		}
	}
}

// ParseCSRPEM decodes and verifies the first certification request in data.
func ParseCSRPEM(data []byte) (*CSR, error) {
	der, err := DecodeCSRPEM(data)
	if err != nil {
		return nil, err
	}
	return ParseCSR(der)
}
