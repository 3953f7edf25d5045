package ca

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// ClockSkew is subtracted from notBefore so that relying parties with a
// slightly slow clock accept a freshly issued certificate.
const ClockSkew = 5 * time.Minute

// SubjectDescriptor names the certificate subject.
type SubjectDescriptor struct {
	CommonName      string
	SubjectAltNames []x509util.GeneralName
}

// IssuerContext is the signing material. A nil Certificate means the
// certificate is self-signed with PrivateKey.
type IssuerContext struct {
	PrivateKey  crypto.PrivateKey
	Certificate *x509.Certificate
}

// SignRequest describes one certificate to issue.
type SignRequest struct {
	Type    x509util.CertificateType
	Subject SubjectDescriptor

	// PublicKey is the subject key. It may be left nil for self-signed
	// certificates, in which case the issuer key's public half is used.
	PublicKey crypto.PublicKey

	Issuer *IssuerContext

	// Lifetime overrides the type's default lifetime when non-zero.
	Lifetime time.Duration

	PathLen         *int
	NameConstraints *x509util.NameConstraintsInput

	CRLURLs    []string
	OCSPURLs   []string
	IssuerURLs []string

	TLSFeatures x509util.TLSFeatures
	Policies    []x509util.CertificatePolicy
}

// Signer issues certificates. It holds no key material and is safe for
// concurrent use.
type Signer struct {
	rand        io.Reader
	now         func() time.Time
	logger      *zap.Logger
	serialBytes int
}

// Option configures a Signer.
type Option func(*Signer)

// WithRand sets the entropy source for serials and signatures.
func WithRand(r io.Reader) Option {
	return func(s *Signer) { s.rand = r }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithLogger sets the logger used for issuance events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Signer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSerialBytes sets the serial length. Values below MinSerialBytes make
// every Sign call fail with ErrValidation.
func WithSerialBytes(n int) Option {
	return func(s *Signer) { s.serialBytes = n }
}

// New creates a Signer.
func New(opts ...Option) *Signer {
	s := &Signer{
		rand:        rand.Reader,
		now:         time.Now,
		logger:      zap.NewNop(),
		serialBytes: DefaultSerialBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign issues a certificate.
//
// Root certificates are self-signed with Issuer.PrivateKey. Intermediate CAs
// need an issuer certificate. Server and client certificates are signed by
// the issuer certificate's key, or self-signed when Issuer.Certificate is nil;
// a self-signed leaf carries an AuthorityKeyIdentifier equal to its own
// SubjectKeyIdentifier.
func (s *Signer) Sign(req SignRequest) (*Certificate, error) {
	cert, err := s.sign(req)
	if err != nil {
		return nil, NewCAError("sign", err)
	}
	return cert, nil
}

// SignCSR verifies a PKCS#10 request and issues a certificate for its key.
// The request's common name and SANs fill in any left empty in req.Subject.
func (s *Signer) SignCSR(csrDER []byte, req SignRequest) (*Certificate, error) {
	csr, err := x509util.ParseCSR(csrDER)
	if err != nil {
		if !errors.Is(err, ErrCSRVerification) {
			err = fmt.Errorf("%w: %v", ErrCSRVerification, err)
		}
		return nil, NewCAError("sign-csr", err)
	}
	req.PublicKey = csr.PublicKey
	if req.Subject.CommonName == "" {
		req.Subject.CommonName = csr.CommonName
	}
	if len(req.Subject.SubjectAltNames) == 0 {
		req.Subject.SubjectAltNames = csr.SubjectAltNames
	}
	cert, err := s.sign(req)
	if err != nil {
		return nil, NewCAError("sign-csr", err)
	}
	return cert, nil
}

func (s *Signer) sign(req SignRequest) (*Certificate, error) {
	switch req.Type {
	case x509util.RootCA, x509util.IntermediateCA, x509util.Server, x509util.Client:
	default:
		return nil, fmt.Errorf("%w: unknown certificate type %s", ErrValidation, req.Type)
	}

	// Validity window.
	// DER drops sub-second precision, so the bounds are truncated before
	// notAfter is checked against the untruncated clock.
	clock := s.now().UTC()
	now := clock.Truncate(time.Second)
	lifetime := req.Lifetime
	if lifetime == 0 {
		lifetime = req.Type.DefaultLifetime()
	}
	notBefore := now.Add(-ClockSkew)
	notAfter := clock.Add(lifetime).Truncate(time.Second)
	if !notAfter.After(clock) {
		return nil, fmt.Errorf("%w: notAfter %s is not after now", ErrValidation, notAfter.Format(time.RFC3339))
	}

	serial, err := GenerateSerial(s.rand, s.serialBytes)
	if err != nil {
		return nil, err
	}

	// Issuer resolution.
	if req.Issuer == nil || req.Issuer.PrivateKey == nil {
		return nil, fmt.Errorf("%w: %s certificate needs a signing key", ErrIssuerPolicyViolation, req.Type)
	}
	signingKey := req.Issuer.PrivateKey
	issuerCert := req.Issuer.Certificate

	scheme, err := pkicrypto.SchemeForKey(signingKey)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	signingPub, err := pkicrypto.PublicKeyOf(signingKey)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	switch {
	case req.Type == x509util.RootCA && issuerCert != nil:
		return nil, fmt.Errorf("%w: root certificates are self-signed", ErrIssuerPolicyViolation)
	case req.Type == x509util.IntermediateCA && issuerCert == nil:
		return nil, fmt.Errorf("%w: intermediate CA needs an issuer certificate", ErrIssuerPolicyViolation)
	}

	subjectPub := req.PublicKey
	selfSigned := issuerCert == nil
	if subjectPub == nil {
		if !selfSigned {
			return nil, fmt.Errorf("%w: subject public key is required", ErrValidation)
		}
		subjectPub = signingPub
	}
	if selfSigned && !pkicrypto.PublicKeysEqual(subjectPub, signingPub) {
		return nil, fmt.Errorf("%w: self-signed certificate key does not match the signing key", ErrIssuerPolicyViolation)
	}

	subjectAlg, err := pkicrypto.AlgorithmOf(subjectPub)
	if err != nil {
		return nil, fmt.Errorf("subject key: %w", err)
	}
	spki, err := pkicrypto.MarshalSubjectPublicKeyInfo(subjectPub)
	if err != nil {
		return nil, fmt.Errorf("subject key: %w", err)
	}
	skid, err := pkicrypto.SubjectKeyID(subjectPub)
	if err != nil {
		return nil, fmt.Errorf("subject key: %w", err)
	}

	// Subject name.
	cn := strings.TrimSpace(req.Subject.CommonName)
	if cn == "" {
		return nil, fmt.Errorf("%w: common name is required", ErrValidation)
	}
	subjectDN, err := singleCNName(cn)
	if err != nil {
		return nil, err
	}

	issuerDN := subjectDN
	akid := skid
	if !selfSigned {
		if !issuerCert.BasicConstraintsValid || !issuerCert.IsCA {
			return nil, fmt.Errorf("%w: issuer %q is not a CA", ErrIssuerPolicyViolation, issuerCert.Subject.CommonName)
		}
		issuerSPKI, err := pkicrypto.MarshalSubjectPublicKeyInfo(signingPub)
		if err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
		if !bytes.Equal(issuerSPKI, issuerCert.RawSubjectPublicKeyInfo) {
			return nil, fmt.Errorf("%w: signing key does not match issuer certificate %q",
				ErrIssuerPolicyViolation, issuerCert.Subject.CommonName)
		}
		if notAfter.After(issuerCert.NotAfter) {
			notAfter = issuerCert.NotAfter.UTC()
		}
		if !notAfter.After(clock) {
			return nil, fmt.Errorf("%w: issuer %q expired at %s", ErrValidation,
				issuerCert.Subject.CommonName, issuerCert.NotAfter.Format(time.RFC3339))
		}
		issuerDN = issuerCert.RawSubject
		akid = issuerCert.SubjectKeyId
		if len(akid) == 0 {
			if akid, err = pkicrypto.SubjectKeyID(signingPub); err != nil {
				return nil, err
			}
		}
	}

	exts, err := x509util.BuildExtensionSet(x509util.ExtensionInput{
		Type:            req.Type,
		SubjectKey:      subjectAlg,
		SubjectKeyID:    skid,
		AuthorityKeyID:  akid,
		CommonName:      cn,
		SubjectAltNames: req.Subject.SubjectAltNames,
		PathLen:         req.PathLen,
		NameConstraints: req.NameConstraints,
		CRLURLs:         req.CRLURLs,
		OCSPURLs:        req.OCSPURLs,
		IssuerURLs:      req.IssuerURLs,
		TLSFeatures:     req.TLSFeatures,
		Policies:        req.Policies,
	})
	if err != nil {
		return nil, err
	}

	sigAlg, err := scheme.AlgorithmIdentifier()
	if err != nil {
		return nil, err
	}
	tbs := tbsCertificate{
		Version:            2,
		SerialNumber:       serial,
		SignatureAlgorithm: sigAlg,
		Issuer:             asn1.RawValue{FullBytes: issuerDN},
		Validity:           validity{NotBefore: notBefore, NotAfter: notAfter},
		Subject:            asn1.RawValue{FullBytes: subjectDN},
		PublicKey:          asn1.RawValue{FullBytes: spki},
		Extensions:         exts.Extensions(),
	}
	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TBSCertificate: %w", err)
	}

	signature, err := pkicrypto.Sign(s.rand, signingKey, scheme, tbsDER)
	if err != nil {
		return nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	der, err := asn1.Marshal(certificate{
		TBSCertificate:     asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: sigAlg,
		SignatureValue:     asn1.BitString{Bytes: signature, BitLength: len(signature) * 8},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal certificate: %w", err)
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse issued certificate: %w", err)
	}

	s.logger.Debug("certificate issued",
		zap.String("type", req.Type.String()),
		zap.String("serial", serialHex(serial)),
		zap.String("subject", cn),
		zap.String("key_algorithm", subjectAlg.Name()),
		zap.String("signature_scheme", scheme.String()),
		zap.Bool("self_signed", selfSigned),
		zap.Time("not_after", notAfter),
	)

	return &Certificate{
		Certificate:  parsed,
		Key:          subjectPub,
		KeyAlgorithm: subjectAlg,
		Scheme:       scheme,
	}, nil
}

func singleCNName(cn string) ([]byte, error) {
	der, err := asn1.Marshal(pkix.Name{CommonName: cn}.ToRDNSequence())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subject: %w", err)
	}
	return der, nil
}
