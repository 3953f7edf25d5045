package x509util

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
)

// ErrCSRSignature is returned when a request's self-signature does not verify.
var ErrCSRSignature = errors.New("CSR signature verification failed")

// CSR is a parsed and verified PKCS#10 certification request.
type CSR struct {
	Raw                     []byte
	RawTBSRequest           []byte
	RawSubject              []byte
	RawSubjectPublicKeyInfo []byte

	Subject    *DistinguishedName
	CommonName string

	PublicKey    crypto.PublicKey
	KeyAlgorithm pkicrypto.KeyAlgorithm

	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte

	// Extensions are the requested extensions from the PKCS#9
	// extensionRequest attribute.
	Extensions      []pkix.Extension
	SubjectAltNames []GeneralName
}

// ParseCSR decodes a DER PKCS#10 request and verifies its self-signature
// before exposing the public key. Every signing family is accepted;
// failures to verify wrap ErrCSRSignature.
func ParseCSR(der []byte) (*CSR, error) {
	input := cryptobyte.String(der)
	var (
		outer, tbs, sigAlg cryptobyte.String
		sig                asn1.BitString
	)
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) || !input.Empty() ||
		!outer.ReadASN1Element(&tbs, cbasn1.SEQUENCE) ||
		!outer.ReadASN1Element(&sigAlg, cbasn1.SEQUENCE) ||
		!outer.ReadASN1BitString(&sig) || !outer.Empty() {
		return nil, errors.New("malformed certification request")
	}

	csr := &CSR{
		Raw:           append([]byte(nil), der...),
		RawTBSRequest: append([]byte(nil), tbs...),
		Signature:     sig.RightAlign(),
	}

	body := tbs
	var (
		info, subject, spki cryptobyte.String
		version             int64
	)
	if !body.ReadASN1(&info, cbasn1.SEQUENCE) ||
		!info.ReadASN1Integer(&version) ||
		!info.ReadASN1Element(&subject, cbasn1.SEQUENCE) ||
		!info.ReadASN1Element(&spki, cbasn1.SEQUENCE) {
		return nil, errors.New("malformed CertificationRequestInfo")
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported CSR version %d", version)
	}
	csr.RawSubject = append([]byte(nil), subject...)
	csr.RawSubjectPublicKeyInfo = append([]byte(nil), spki...)

	var attrs cryptobyte.String
	var hasAttrs bool
	if !info.ReadOptionalASN1(&attrs, &hasAttrs, cbasn1.Tag(0).Constructed().ContextSpecific()) || !info.Empty() {
		return nil, errors.New("malformed CSR attributes")
	}

	if _, err := asn1.Unmarshal(sigAlg, &csr.SignatureAlgorithm); err != nil {
		return nil, fmt.Errorf("malformed CSR signature algorithm: %w", err)
	}

	pub, alg, err := pkicrypto.ParseSubjectPublicKeyInfo(csr.RawSubjectPublicKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("CSR public key: %w", err)
	}
	csr.PublicKey, csr.KeyAlgorithm = pub, alg

	if err := csr.verify(); err != nil {
		return nil, err
	}

	dn, err := ParseDistinguishedName(csr.RawSubject)
	if err != nil {
		return nil, err
	}
	csr.Subject = dn
	csr.CommonName = dn.CommonName()

	if hasAttrs {
		exts, err := parseExtensionRequest(attrs)
		if err != nil {
			return nil, err
		}
		csr.Extensions = exts
		for _, e := range exts {
			if e.Id.Equal(OIDExtSubjectAltName) {
				if csr.SubjectAltNames, err = ParseGeneralNames(e.Value); err != nil {
					return nil, fmt.Errorf("CSR subjectAltName: %w", err)
				}
			}
		}
	}
	return csr, nil
}

func (c *CSR) verify() error {
	if !c.KeyAlgorithm.CanSign() {
		return fmt.Errorf("%w: %s keys cannot sign a request", ErrCSRSignature, c.KeyAlgorithm.Name())
	}
	scheme, err := pkicrypto.SchemeFromAlgorithmIdentifier(c.SignatureAlgorithm)
	if err == nil {
		err = pkicrypto.Verify(c.PublicKey, scheme, c.RawTBSRequest, c.Signature)
	}
	if err != nil && isClassical(c.PublicKey) {
		// Requests from other tooling commonly use PKCS#1 v1.5 or a hash not
		// matched to the key size. crypto/x509 covers those.
		if req, perr := x509.ParseCertificateRequest(c.Raw); perr == nil {
			err = req.CheckSignature()
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCSRSignature, err)
	}
	return nil
}

func isClassical(pub crypto.PublicKey) bool {
	switch pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return true
	}
	return false
}

// parseExtensionRequest walks the attribute SET and returns the extensions
// of the first extensionRequest attribute. Other attributes are ignored.
func parseExtensionRequest(attrs cryptobyte.String) ([]pkix.Extension, error) {
	for !attrs.Empty() {
		var (
			attr, values cryptobyte.String
			oid          asn1.ObjectIdentifier
		)
		if !attrs.ReadASN1(&attr, cbasn1.SEQUENCE) ||
			!attr.ReadASN1ObjectIdentifier(&oid) ||
			!attr.ReadASN1(&values, cbasn1.SET) {
			return nil, errors.New("malformed CSR attribute")
		}
		if !oid.Equal(OIDExtensionRequest) {
			continue
		}
		var exts []pkix.Extension
		if _, err := asn1.Unmarshal(values, &exts); err != nil {
			return nil, fmt.Errorf("malformed extensionRequest: %w", err)
		}
		return exts, nil
	}
	return nil, nil
}

// CSRRequest describes a request to be signed by CreateCSR.
type CSRRequest struct {
	// Subject is the full subject name; when nil a name holding only
	// CommonName is used.
	Subject         *DistinguishedName
	CommonName      string
	SubjectAltNames []GeneralName
}

// CreateCSR builds and self-signs a PKCS#10 request with priv. Any signing
// family works; ML-KEM keys fail with ErrUnsupportedOperation.
func CreateCSR(random io.Reader, req CSRRequest, priv crypto.PrivateKey) ([]byte, error) {
	scheme, err := pkicrypto.SchemeForKey(priv)
	if err != nil {
		return nil, err
	}
	pub, err := pkicrypto.PublicKeyOf(priv)
	if err != nil {
		return nil, err
	}
	spki, err := pkicrypto.MarshalSubjectPublicKeyInfo(pub)
	if err != nil {
		return nil, err
	}

	dn := req.Subject
	if dn == nil {
		if req.CommonName == "" {
			return nil, errors.New("CSR needs a subject or common name")
		}
		dn = NewDistinguishedName(pkix.Name{CommonName: req.CommonName}.ToRDNSequence())
	}
	subject, err := dn.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subject: %w", err)
	}

	var sanExt []byte
	if len(req.SubjectAltNames) > 0 {
		ext, err := subjectAltNameExtension(req.SubjectAltNames)
		if err != nil {
			return nil, err
		}
		if sanExt, err = asn1.Marshal([]pkix.Extension{ext}); err != nil {
			return nil, err
		}
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		b.AddBytes(subject)
		b.AddBytes(spki)
		b.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			if sanExt == nil {
				return
			}
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(OIDExtensionRequest)
				b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
					b.AddBytes(sanExt)
				})
			})
		})
	})
	tbs, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to build CertificationRequestInfo: %w", err)
	}

	sig, err := pkicrypto.Sign(random, priv, scheme, tbs)
	if err != nil {
		return nil, fmt.Errorf("failed to sign CSR: %w", err)
	}
	ai, err := scheme.AlgorithmIdentifier()
	if err != nil {
		return nil, err
	}
	aiDER, err := asn1.Marshal(ai)
	if err != nil {
		return nil, err
	}

	var out cryptobyte.Builder
	out.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(tbs)
		b.AddBytes(aiDER)
		b.AddASN1BitString(sig)
	})
	return out.Bytes()
}
