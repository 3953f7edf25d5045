// Package pki provides the public API for hermod.
// This file exposes credential bundles from internal/credential.
package pki

import (
	"crypto"
	"crypto/x509"

	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
)

// Bundle is a certificate with its issuer chain and, optionally, its key.
type Bundle = credential.Bundle

// Re-export sentinel errors from internal/credential
var (
	ErrKeyMismatch  = credential.ErrKeyMismatch
	ErrNoPrivateKey = credential.ErrNoPrivateKey
)

// NewBundle builds a bundle after checking that key belongs to cert.
func NewBundle(cert *x509.Certificate, key crypto.PrivateKey, chain ...*x509.Certificate) (*Bundle, error) {
	return credential.New(cert, key, chain...)
}

// LoadBundle reads a bundle from a certificate file and an optional key file.
func LoadBundle(certPath, keyPath string) (*Bundle, error) {
	return credential.Load(certPath, keyPath)
}

// ParseBundle builds a bundle from PEM data. keyPEM may be nil.
func ParseBundle(certPEM, keyPEM []byte) (*Bundle, error) {
	return credential.Parse(certPEM, keyPEM)
}
