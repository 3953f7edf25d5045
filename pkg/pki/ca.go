// Package pki provides the public API for hermod.
// This file exposes CA operations from internal/ca and internal/service.
package pki

import (
	"crypto/x509"

	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
)

// Re-export types from internal/ca
type (
	// Signer issues certificates from sign requests.
	Signer = ca.Signer

	// SignerOption configures a Signer.
	SignerOption = ca.Option

	// SignRequest describes one certificate to issue.
	SignRequest = ca.SignRequest

	// SubjectDescriptor names the certificate subject.
	SubjectDescriptor = ca.SubjectDescriptor

	// IssuerContext is the signing key and certificate.
	IssuerContext = ca.IssuerContext

	// Certificate is an issued certificate with its decoded algorithms.
	Certificate = ca.Certificate

	// ChainReport is the outcome of ValidateChain.
	ChainReport = ca.ChainReport

	// ChainStatus is one problem found in a chain.
	ChainStatus = ca.ChainStatus

	// ValidateOptions tune ValidateChain.
	ValidateOptions = ca.ValidateOptions

	// CAError wraps CA operation errors with context.
	CAError = ca.CAError
)

// Re-export sentinel errors from internal/ca
var (
	ErrValidation            = ca.ErrValidation
	ErrUnsupportedKeyType    = ca.ErrUnsupportedKeyType
	ErrUnsupportedOperation  = ca.ErrUnsupportedOperation
	ErrIssuerPolicyViolation = ca.ErrIssuerPolicyViolation
)

// Re-export signer options
var (
	WithRand        = ca.WithRand
	WithClock       = ca.WithClock
	WithLogger      = ca.WithLogger
	WithSerialBytes = ca.WithSerialBytes
)

// NewSigner creates a signer.
func NewSigner(opts ...SignerOption) *Signer {
	return ca.New(opts...)
}

// ValidateChain checks the path from target through intermediates to root.
func ValidateChain(target *x509.Certificate, intermediates []*x509.Certificate, root *x509.Certificate, opts ValidateOptions) *ChainReport {
	return ca.ValidateChain(target, intermediates, root, opts)
}

// Re-export types from internal/service
type (
	// CAService issues and validates certificates under one issuing CA.
	CAService = service.Service

	// CAServiceOptions carries the collaborators of a CAService.
	CAServiceOptions = service.Options

	// IssueRequest asks for a certificate for the key in a CSR.
	IssueRequest = service.IssueRequest

	// IssueResult is an issued certificate and its chain.
	IssueResult = service.IssueResult

	// ValidateRequest names a chain to validate.
	ValidateRequest = service.ValidateRequest

	// CertificateInfo is a read-only description of a certificate.
	CertificateInfo = service.CertificateInfo
)

// NewCAService creates a service for the issuing CA in issuer.
func NewCAService(issuer *credential.Bundle, opts CAServiceOptions) (*CAService, error) {
	return service.New(issuer, opts)
}

// Describe decodes the names, validity and algorithms of cert.
func Describe(cert *x509.Certificate) (*CertificateInfo, error) {
	return service.Describe(cert)
}
