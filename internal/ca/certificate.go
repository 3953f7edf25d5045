package ca

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// Certificate is an issued certificate together with its decoded subject key.
// It is never modified after Sign returns it.
type Certificate struct {
	*x509.Certificate

	// Key is the subject public key, decoded for every supported family
	// (crypto/x509 leaves PublicKey nil for Ed448 and post-quantum keys).
	Key          crypto.PublicKey
	KeyAlgorithm pkicrypto.KeyAlgorithm

	// Scheme is the signature scheme the issuer signed with.
	Scheme pkicrypto.SignatureScheme
}

// ParseCertificate decodes a DER certificate of any supported family.
func ParseCertificate(der []byte) (*Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return WrapCertificate(cert)
}

// WrapCertificate decodes the subject key and signature scheme of an
// already parsed certificate.
func WrapCertificate(cert *x509.Certificate) (*Certificate, error) {
	if cert == nil {
		return nil, errors.New("nil certificate")
	}
	pub, alg, err := pkicrypto.ParseSubjectPublicKeyInfo(cert.RawSubjectPublicKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("certificate public key: %w", err)
	}
	c := &Certificate{Certificate: cert, Key: pub, KeyAlgorithm: alg}
	if ai, err := signatureAlgorithmOf(cert.Raw); err == nil {
		c.Scheme, _ = pkicrypto.SchemeFromAlgorithmIdentifier(ai)
	}
	return c, nil
}

// DER returns the certificate encoding.
func (c *Certificate) DER() []byte { return c.Raw }

// PEM returns the certificate armoured as a CERTIFICATE block.
func (c *Certificate) PEM() []byte { return x509util.EncodeCertificatesPEM(c.Certificate) }

// SerialHex returns the serial number in lower-case hex.
func (c *Certificate) SerialHex() string { return serialHex(c.SerialNumber) }

// DistinguishedNames returns read-only views of the subject and issuer.
func (c *Certificate) DistinguishedNames() (subject, issuer *x509util.DistinguishedName, err error) {
	if subject, err = x509util.ParseDistinguishedName(c.RawSubject); err != nil {
		return nil, nil, err
	}
	if issuer, err = x509util.ParseDistinguishedName(c.RawIssuer); err != nil {
		return nil, nil, err
	}
	return subject, issuer, nil
}

func serialHex(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.Text(16)
}

// tbsCertificate is the TBSCertificate structure (RFC 5280 section 4.1).
type tbsCertificate struct {
	Version            int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber       *big.Int
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Issuer             asn1.RawValue
	Validity           validity
	Subject            asn1.RawValue
	PublicKey          asn1.RawValue
	Extensions         []pkix.Extension `asn1:"optional,explicit,tag:3"`
}

type validity struct {
	NotBefore, NotAfter time.Time
}

type certificate struct {
	TBSCertificate     asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// signatureAlgorithmOf extracts the outer signatureAlgorithm of a DER
// certificate. crypto/x509 only exposes it for algorithms it knows.
func signatureAlgorithmOf(der []byte) (pkix.AlgorithmIdentifier, error) {
	input := cryptobyte.String(der)
	var outer, algID cryptobyte.String
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) ||
		!outer.SkipASN1(cbasn1.SEQUENCE) ||
		!outer.ReadASN1Element(&algID, cbasn1.SEQUENCE) {
		return pkix.AlgorithmIdentifier{}, errors.New("malformed certificate")
	}
	var ai pkix.AlgorithmIdentifier
	if _, err := asn1.Unmarshal(algID, &ai); err != nil {
		return pkix.AlgorithmIdentifier{}, fmt.Errorf("malformed signature algorithm: %w", err)
	}
	return ai, nil
}

// verifyIssuedBy checks child's signature with issuer's key. Schemes outside
// the engine's own selection, such as PKCS#1 v1.5 from other tooling, are
// checked with crypto/x509.
func verifyIssuedBy(child, issuer *x509.Certificate) error {
	pub, _, err := pkicrypto.ParseSubjectPublicKeyInfo(issuer.RawSubjectPublicKeyInfo)
	if err != nil {
		return err
	}
	ai, err := signatureAlgorithmOf(child.Raw)
	if err != nil {
		return err
	}
	scheme, err := pkicrypto.SchemeFromAlgorithmIdentifier(ai)
	if err == nil {
		err = pkicrypto.Verify(pub, scheme, child.RawTBSCertificate, child.Signature)
	}
	if err != nil && child.SignatureAlgorithm != x509.UnknownSignatureAlgorithm && issuer.PublicKey != nil {
		err = issuer.CheckSignature(child.SignatureAlgorithm, child.RawTBSCertificate, child.Signature)
	}
	return err
}
