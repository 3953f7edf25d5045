// Package service runs certificate authority operations on behalf of the
// CLI and the HTTP API. It binds an issuing CA credential to the signer,
// applies issuance profiles, and records every operation in the audit log
// and the metrics registry.
package service

import (
	"context"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Vanaheimr/Hermod-sub016/internal/audit"
	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/metrics"
	"github.com/Vanaheimr/Hermod-sub016/internal/profile"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// Options carries the collaborators of a Service. Nil fields get working
// defaults: a fresh signer, the builtin profiles, no audit, no metrics and
// a no-op logger.
type Options struct {
	Signer   *ca.Signer
	Profiles *profile.Store
	Audit    *audit.Logger
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Service issues and validates certificates under one issuing CA.
// It is safe for concurrent use.
type Service struct {
	issuer   *credential.Bundle
	signer   *ca.Signer
	profiles *profile.Store
	audit    *audit.Logger
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates a service for the issuing CA in issuer, which must carry a
// private key and a CA certificate allowed to sign certificates.
func New(issuer *credential.Bundle, opts Options) (*Service, error) {
	if issuer == nil || issuer.Certificate == nil {
		return nil, fmt.Errorf("%w: issuing CA certificate is required", ca.ErrIssuerPolicyViolation)
	}
	if issuer.PrivateKey == nil {
		return nil, fmt.Errorf("%w: issuing CA private key is required", ca.ErrIssuerPolicyViolation)
	}
	cert := issuer.Certificate
	if !cert.BasicConstraintsValid || !cert.IsCA {
		return nil, fmt.Errorf("%w: %q is not a CA certificate", ca.ErrIssuerPolicyViolation, cert.Subject.CommonName)
	}
	if cert.KeyUsage != 0 && cert.KeyUsage&x509.KeyUsageCertSign == 0 {
		return nil, fmt.Errorf("%w: %q lacks keyCertSign", ca.ErrIssuerPolicyViolation, cert.Subject.CommonName)
	}

	s := &Service{
		issuer:   issuer,
		signer:   opts.Signer,
		profiles: opts.Profiles,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.signer == nil {
		s.signer = ca.New(ca.WithLogger(s.logger))
	}
	if s.profiles == nil {
		s.profiles = profile.NewStore("")
	}
	return s, nil
}

// Close closes the audit log.
func (s *Service) Close() error {
	return s.audit.Close()
}

// Issuer returns the issuing CA certificate.
func (s *Service) Issuer() *x509.Certificate {
	return s.issuer.Certificate
}

// Chain returns the issuing CA certificate followed by its own chain.
func (s *Service) Chain() []*x509.Certificate {
	return s.issuer.Certificates()
}

// Profiles lists the available profile names.
func (s *Service) Profiles() []string {
	return s.profiles.List()
}

// IssueRequest asks for a certificate for the key in a PKCS#10 request.
type IssueRequest struct {
	// CSR is the DER encoded certification request.
	CSR []byte

	Profile string

	// CommonName and SubjectAltNames override the request's own values
	// when set.
	CommonName      string
	SubjectAltNames []x509util.GeneralName
}

// IssueResult is an issued certificate with the chain that leads to the
// issuing CA's root.
type IssueResult struct {
	Certificate *ca.Certificate
	Chain       []*x509.Certificate
}

// Issue verifies the CSR, applies the profile and signs with the issuing
// CA. Root profiles are refused: a root is never issued by another CA.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.profiles.Get(req.Profile)
	if err != nil {
		s.metrics.RecordIssuanceFailure("profile")
		return nil, fmt.Errorf("%w: %w", ca.ErrValidation, err)
	}
	if p.Type == x509util.RootCA {
		s.metrics.RecordIssuanceFailure("policy")
		return nil, fmt.Errorf("%w: profile %q issues self-signed roots", ca.ErrIssuerPolicyViolation, p.Name)
	}

	signReq := p.Request(
		ca.SubjectDescriptor{CommonName: req.CommonName, SubjectAltNames: req.SubjectAltNames},
		nil,
		&ca.IssuerContext{PrivateKey: s.issuer.PrivateKey, Certificate: s.issuer.Certificate},
	)

	start := time.Now()
	cert, err := s.signer.SignCSR(req.CSR, signReq)
	took := time.Since(start)
	if err != nil {
		reason := failureReason(err)
		s.metrics.RecordIssuanceFailure(reason)
		s.logger.Warn("issuance rejected",
			zap.String("profile", p.Name),
			zap.String("reason", reason),
			zap.Error(err),
		)
		if reason == "csr" {
			if aerr := s.audit.CSRRejected(req.CommonName, err.Error()); aerr != nil {
				return nil, errors.Join(err, aerr)
			}
			return nil, err
		}
		if aerr := s.audit.CertIssued("", req.CommonName, p.Name, "", time.Time{}, false, err.Error()); aerr != nil {
			return nil, errors.Join(err, aerr)
		}
		return nil, err
	}

	if err := s.audit.CertIssued(cert.SerialHex(), cert.Subject.String(), p.Name,
		cert.Scheme.String(), cert.NotAfter, true, ""); err != nil {
		return nil, err
	}
	s.metrics.RecordIssued(p.Name, p.Type.String(), cert.Scheme.String(), took)
	s.logger.Info("certificate issued",
		zap.String("profile", p.Name),
		zap.String("serial", cert.SerialHex()),
		zap.String("subject", cert.Subject.String()),
		zap.Time("not_after", cert.NotAfter),
	)
	return &IssueResult{Certificate: cert, Chain: s.Chain()}, nil
}

// failureReason buckets an issuance error for metrics and logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ca.ErrCSRVerification):
		return "csr"
	case errors.Is(err, ca.ErrIssuerPolicyViolation):
		return "policy"
	case errors.Is(err, ca.ErrUnsupportedOperation), errors.Is(err, ca.ErrUnsupportedKeyType):
		return "unsupported"
	case errors.Is(err, ca.ErrValidation):
		return "validation"
	}
	return "internal"
}

// ValidateRequest names the chain to validate. A nil Root validates against
// the issuing CA's own root, and the issuing chain is then added to the
// intermediates.
type ValidateRequest struct {
	Target        *x509.Certificate
	Intermediates []*x509.Certificate
	Root          *x509.Certificate
	RequiredEKU   []asn1.ObjectIdentifier
	Time          time.Time
}

// Validate runs ca.ValidateChain and records the outcome. The error is only
// set when the audit log cannot be written.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ca.ChainReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := req.Root
	intermediates := req.Intermediates
	if root == nil {
		root = s.issuer.Root()
		intermediates = append(append([]*x509.Certificate(nil), intermediates...), s.issuer.Certificate)
		intermediates = append(intermediates, s.issuer.Intermediates()...)
	}

	report := ca.ValidateChain(req.Target, intermediates, root, ca.ValidateOptions{
		RequiredEKU: req.RequiredEKU,
		Time:        req.Time,
	})

	status := make([]string, len(report.OverallStatus))
	for i, st := range report.OverallStatus {
		status[i] = st.String()
	}
	subject := ""
	if req.Target != nil {
		subject = req.Target.Subject.String()
	}
	s.metrics.RecordValidation(report.IsValid)
	s.logger.Debug("chain validated",
		zap.String("subject", subject),
		zap.Bool("valid", report.IsValid),
		zap.Strings("status", status),
	)
	if err := s.audit.ChainValidated(subject, report.IsValid, status); err != nil {
		return nil, err
	}
	return report, nil
}

// CertificateInfo is a read-only description of a certificate.
type CertificateInfo struct {
	Serial          string
	Subject         *x509util.DistinguishedName
	Issuer          *x509util.DistinguishedName
	NotBefore       time.Time
	NotAfter        time.Time
	KeyAlgorithm    string
	Scheme          string
	IsCA            bool
	SubjectAltNames []x509util.GeneralName
}

// Describe decodes the names, validity and algorithms of cert.
func Describe(cert *x509.Certificate) (*CertificateInfo, error) {
	c, err := ca.WrapCertificate(cert)
	if err != nil {
		return nil, err
	}
	subject, issuer, err := c.DistinguishedNames()
	if err != nil {
		return nil, err
	}
	info := &CertificateInfo{
		Serial:       c.SerialHex(),
		Subject:      subject,
		Issuer:       issuer,
		NotBefore:    c.NotBefore,
		NotAfter:     c.NotAfter,
		KeyAlgorithm: c.KeyAlgorithm.Name(),
		IsCA:         c.IsCA,
	}
	if c.Scheme != pkicrypto.SchemeUnknown {
		info.Scheme = c.Scheme.String()
	}
	for _, e := range c.Extensions {
		if e.Id.Equal(x509util.OIDExtSubjectAltName) {
			if info.SubjectAltNames, err = x509util.ParseGeneralNames(e.Value); err != nil {
				return nil, fmt.Errorf("subjectAltName: %w", err)
			}
		}
	}
	return info, nil
}
