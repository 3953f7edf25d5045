package x509util

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
)

// CertificateType selects the extension profile and default lifetime.
type CertificateType int

const (
	RootCA CertificateType = iota + 1
	IntermediateCA
	Server
	Client
)

const day = 24 * time.Hour

func (t CertificateType) String() string {
	switch t {
	case RootCA:
		return "root-ca"
	case IntermediateCA:
		return "intermediate-ca"
	case Server:
		return "server"
	case Client:
		return "client"
	}
	return fmt.Sprintf("CertificateType(%d)", int(t))
}

// IsCA reports whether the type issues other certificates.
func (t CertificateType) IsCA() bool {
	return t == RootCA || t == IntermediateCA
}

// DefaultLifetime returns the validity used when the caller gives none.
func (t CertificateType) DefaultLifetime() time.Duration {
	switch t {
	case RootCA:
		return 3650 * day
	case IntermediateCA:
		return 1825 * day
	case Server, Client:
		return 30 * day
	}
	return 7 * day
}

// ParseCertificateType accepts "root", "root-ca", "intermediate",
// "intermediate-ca", "server", "tls-server", "client" and "tls-client".
func ParseCertificateType(s string) (CertificateType, error) {
	switch normalizeName(s) {
	case "root", "rootca":
		return RootCA, nil
	case "intermediate", "intermediateca", "subca":
		return IntermediateCA, nil
	case "server", "tlsserver":
		return Server, nil
	case "client", "tlsclient":
		return Client, nil
	}
	return 0, fmt.Errorf("unknown certificate type %q", s)
}

// TLSFeatures are the RFC 7633 features requested by a server certificate.
type TLSFeatures struct {
	StatusRequest   bool // status_request (5), OCSP must-staple
	StatusRequestV2 bool // status_request_v2 (17)
}

func (f TLSFeatures) any() bool { return f.StatusRequest || f.StatusRequestV2 }

// ExtensionInput carries everything the extension profile depends on.
type ExtensionInput struct {
	Type CertificateType

	// SubjectKey drives KeyUsage derivation.
	SubjectKey   pkicrypto.KeyAlgorithm
	SubjectKeyID []byte

	// AuthorityKeyID is the issuer's key identifier. Root certificates always
	// use SubjectKeyID instead.
	AuthorityKeyID []byte

	CommonName      string
	SubjectAltNames []GeneralName

	// PathLen limits the CA path length; nil leaves it unlimited.
	PathLen         *int
	NameConstraints *NameConstraintsInput

	CRLURLs    []string
	OCSPURLs   []string
	IssuerURLs []string

	TLSFeatures TLSFeatures
	Policies    []CertificatePolicy
}

// ExtensionSet is an ordered, immutable list of certificate extensions.
type ExtensionSet struct {
	exts []pkix.Extension
}

// Extensions returns a copy of the extensions in encoding order.
func (s ExtensionSet) Extensions() []pkix.Extension {
	out := make([]pkix.Extension, len(s.exts))
	for i, e := range s.exts {
		out[i] = pkix.Extension{
			Id:       append(asn1.ObjectIdentifier(nil), e.Id...),
			Critical: e.Critical,
			Value:    append([]byte(nil), e.Value...),
		}
	}
	return out
}

func (s ExtensionSet) Len() int { return len(s.exts) }

// Get returns a copy of the extension with the given OID.
func (s ExtensionSet) Get(oid asn1.ObjectIdentifier) (pkix.Extension, bool) {
	for _, e := range s.exts {
		if e.Id.Equal(oid) {
			return pkix.Extension{Id: e.Id, Critical: e.Critical, Value: append([]byte(nil), e.Value...)}, true
		}
	}
	return pkix.Extension{}, false
}

// KeyUsageFor derives the end-entity KeyUsage bits from a key's
// capabilities: digitalSignature for signing keys and keyEncipherment for
// RSA and KEM keys.
func KeyUsageFor(alg pkicrypto.KeyAlgorithm) x509.KeyUsage {
	if alg == nil {
		return 0
	}
	var ku x509.KeyUsage
	switch alg.(type) {
	case pkicrypto.RSA, pkicrypto.ECDSA, pkicrypto.Ed25519, pkicrypto.Ed448,
		pkicrypto.Falcon, pkicrypto.MLKEM, pkicrypto.MLDSA, pkicrypto.SLHDSA:
	default:
		return 0
	}
	if alg.CanSign() {
		ku |= x509.KeyUsageDigitalSignature
	}
	if alg.CanEncapsulate() {
		ku |= x509.KeyUsageKeyEncipherment
	}
	return ku
}

// BuildExtensionSet assembles the extension profile for in.Type.
//
//	RootCA         BasicConstraints CA, KeyUsage certSign+cRLSign, SKI, AKI=SKI
//	IntermediateCA BasicConstraints CA, KeyUsage certSign+cRLSign, SKI, AKI, NameConstraints
//	Server         BasicConstraints, KeyUsage, EKU serverAuth, SKI, AKI, SAN, TLS feature
//	Client         BasicConstraints, KeyUsage, EKU clientAuth, SKI, AKI, SAN if given
//
// Every type except RootCA also takes CRL distribution points, AIA and
// certificate policies when supplied.
func BuildExtensionSet(in ExtensionInput) (ExtensionSet, error) {
	if len(in.SubjectKeyID) == 0 {
		return ExtensionSet{}, errors.New("subject key identifier is required")
	}

	var ku x509.KeyUsage
	var eku asn1.ObjectIdentifier
	switch in.Type {
	case RootCA, IntermediateCA:
		if KeyUsageFor(in.SubjectKey) == 0 {
			return ExtensionSet{}, fmt.Errorf("%w: no key usage for %s", pkicrypto.ErrUnsupportedKeyType, algName(in.SubjectKey))
		}
		if !in.SubjectKey.CanSign() {
			return ExtensionSet{}, fmt.Errorf("%w: %s keys cannot act as a certificate authority",
				pkicrypto.ErrUnsupportedOperation, in.SubjectKey.Name())
		}
		ku = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	case Server, Client:
		ku = KeyUsageFor(in.SubjectKey)
		if ku == 0 {
			return ExtensionSet{}, fmt.Errorf("%w: no key usage for %s", pkicrypto.ErrUnsupportedKeyType, algName(in.SubjectKey))
		}
		eku = OIDExtKeyUsageServerAuth
		if in.Type == Client {
			eku = OIDExtKeyUsageClientAuth
		}
	default:
		return ExtensionSet{}, fmt.Errorf("unknown certificate type %s", in.Type)
	}

	var exts []pkix.Extension
	add := func(e pkix.Extension, err error) error {
		if err != nil {
			return err
		}
		exts = append(exts, e)
		return nil
	}

	if err := add(basicConstraintsExtension(in.Type.IsCA(), in.PathLen)); err != nil {
		return ExtensionSet{}, err
	}
	if err := add(keyUsageExtension(ku)); err != nil {
		return ExtensionSet{}, err
	}
	if eku != nil {
		if err := add(extKeyUsageExtension([]asn1.ObjectIdentifier{eku})); err != nil {
			return ExtensionSet{}, err
		}
	}
	if err := add(subjectKeyIDExtension(in.SubjectKeyID)); err != nil {
		return ExtensionSet{}, err
	}

	akid := in.AuthorityKeyID
	if in.Type == RootCA {
		akid = in.SubjectKeyID
	}
	if len(akid) > 0 {
		if err := add(authorityKeyIDExtension(akid)); err != nil {
			return ExtensionSet{}, err
		}
	}

	sans := in.SubjectAltNames
	if in.Type == Server && len(sans) == 0 {
		if strings.TrimSpace(in.CommonName) == "" {
			return ExtensionSet{}, errors.New("server certificate needs a common name or subject alternative names")
		}
		san, err := defaultServerSAN(in.CommonName)
		if err != nil {
			return ExtensionSet{}, err
		}
		sans = []GeneralName{san}
	}
	if len(sans) > 0 {
		if err := add(subjectAltNameExtension(sans)); err != nil {
			return ExtensionSet{}, err
		}
	}

	if in.Type == IntermediateCA && in.NameConstraints != nil {
		nc, err := BuildNameConstraints(*in.NameConstraints)
		if err != nil {
			return ExtensionSet{}, err
		}
		if !nc.IsEmpty() {
			if err := add(nc.Extension()); err != nil {
				return ExtensionSet{}, err
			}
		}
	}

	if in.Type == Server && in.TLSFeatures.any() {
		if err := add(tlsFeatureExtension(in.TLSFeatures)); err != nil {
			return ExtensionSet{}, err
		}
	}

	if in.Type != RootCA {
		if len(in.CRLURLs) > 0 {
			if err := add(crlDistributionPointsExtension(in.CRLURLs)); err != nil {
				return ExtensionSet{}, err
			}
		}
		if len(in.OCSPURLs) > 0 || len(in.IssuerURLs) > 0 {
			if err := add(authorityInfoAccessExtension(in.OCSPURLs, in.IssuerURLs)); err != nil {
				return ExtensionSet{}, err
			}
		}
		if len(in.Policies) > 0 {
			if err := add(CertificatePoliciesExtension(in.Policies)); err != nil {
				return ExtensionSet{}, err
			}
		}
	}

	return ExtensionSet{exts: exts}, nil
}

func algName(alg pkicrypto.KeyAlgorithm) string {
	if alg == nil {
		return "<nil>"
	}
	return alg.Name()
}

type basicConstraints struct {
	IsCA       bool `asn1:"optional"`
	MaxPathLen int  `asn1:"optional,default:-1"`
}

func basicConstraintsExtension(isCA bool, pathLen *int) (pkix.Extension, error) {
	bc := basicConstraints{IsCA: isCA, MaxPathLen: -1}
	if isCA && pathLen != nil {
		if *pathLen < 0 {
			return pkix.Extension{}, fmt.Errorf("negative path length %d", *pathLen)
		}
		bc.MaxPathLen = *pathLen
	}
	der, err := asn1.Marshal(bc)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal BasicConstraints: %w", err)
	}
	return pkix.Extension{Id: OIDExtBasicConstraints, Critical: true, Value: der}, nil
}

func keyUsageExtension(ku x509.KeyUsage) (pkix.Extension, error) {
	der, err := asn1.Marshal(encodeKeyUsage(ku))
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal KeyUsage: %w", err)
	}
	return pkix.Extension{Id: OIDExtKeyUsage, Critical: true, Value: der}, nil
}

// encodeKeyUsage maps x509.KeyUsage flags (bit i = 1<<i) onto the DER
// named bit list, trimming trailing zero bits.
func encodeKeyUsage(ku x509.KeyUsage) asn1.BitString {
	var b [2]byte
	for i := 0; i < 9; i++ {
		if ku&(1<<uint(i)) != 0 {
			b[i/8] |= 0x80 >> uint(i%8)
		}
	}
	bitLength := 0
	for i := 8; i >= 0; i-- {
		if b[i/8]&(0x80>>uint(i%8)) != 0 {
			bitLength = i + 1
			break
		}
	}
	return asn1.BitString{Bytes: b[:(bitLength+7)/8], BitLength: bitLength}
}

func extKeyUsageExtension(oids []asn1.ObjectIdentifier) (pkix.Extension, error) {
	der, err := asn1.Marshal(oids)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal ExtKeyUsage: %w", err)
	}
	return pkix.Extension{Id: OIDExtExtKeyUsage, Value: der}, nil
}

func subjectKeyIDExtension(skid []byte) (pkix.Extension, error) {
	der, err := asn1.Marshal(skid)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal SubjectKeyIdentifier: %w", err)
	}
	return pkix.Extension{Id: OIDExtSubjectKeyId, Value: der}, nil
}

func authorityKeyIDExtension(akid []byte) (pkix.Extension, error) {
	der, err := asn1.Marshal(struct {
		KeyIdentifier []byte `asn1:"optional,tag:0"`
	}{KeyIdentifier: akid})
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal AuthorityKeyIdentifier: %w", err)
	}
	return pkix.Extension{Id: OIDExtAuthorityKeyId, Value: der}, nil
}

func subjectAltNameExtension(names []GeneralName) (pkix.Extension, error) {
	der, err := MarshalGeneralNames(names)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal SubjectAltName: %w", err)
	}
	return pkix.Extension{Id: OIDExtSubjectAltName, Value: der}, nil
}

// TLS feature extension values (RFC 7633 / RFC 6066 extension types).
const (
	tlsFeatureStatusRequest   = 5
	tlsFeatureStatusRequestV2 = 17
)

func tlsFeatureExtension(f TLSFeatures) (pkix.Extension, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if f.StatusRequest {
			b.AddASN1Int64(tlsFeatureStatusRequest)
		}
		if f.StatusRequestV2 {
			b.AddASN1Int64(tlsFeatureStatusRequestV2)
		}
	})
	der, err := b.Bytes()
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal TLSFeature: %w", err)
	}
	return pkix.Extension{Id: OIDExtTLSFeature, Value: der}, nil
}

// ParseTLSFeatures decodes a TLS feature extension value.
func ParseTLSFeatures(der []byte) (TLSFeatures, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return TLSFeatures{}, errors.New("malformed TLSFeature")
	}
	var f TLSFeatures
	for !seq.Empty() {
		var v int64
		if !seq.ReadASN1Integer(&v) {
			return TLSFeatures{}, errors.New("malformed TLSFeature entry")
		}
		switch v {
		case tlsFeatureStatusRequest:
			f.StatusRequest = true
		case tlsFeatureStatusRequestV2:
			f.StatusRequestV2 = true
		}
	}
	return f, nil
}

type distributionPoint struct {
	DistributionPointName distributionPointName `asn1:"optional,tag:0"`
}

type distributionPointName struct {
	FullName []asn1.RawValue `asn1:"optional,tag:0"`
}

func crlDistributionPointsExtension(urls []string) (pkix.Extension, error) {
	dps := make([]distributionPoint, 0, len(urls))
	for _, u := range urls {
		rv, err := URIName(u).rawValue()
		if err != nil {
			return pkix.Extension{}, fmt.Errorf("CRL distribution point: %w", err)
		}
		dps = append(dps, distributionPoint{
			DistributionPointName: distributionPointName{FullName: []asn1.RawValue{rv}},
		})
	}
	der, err := asn1.Marshal(dps)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal CRLDistributionPoints: %w", err)
	}
	return pkix.Extension{Id: OIDExtCRLDistributionPoints, Value: der}, nil
}

type accessDescription struct {
	AccessMethod   asn1.ObjectIdentifier
	AccessLocation asn1.RawValue
}

func authorityInfoAccessExtension(ocsp, issuers []string) (pkix.Extension, error) {
	var ads []accessDescription
	for _, group := range []struct {
		method asn1.ObjectIdentifier
		urls   []string
	}{{oidAccessMethodOCSP, ocsp}, {oidAccessMethodCAIssuers, issuers}} {
		for _, u := range group.urls {
			rv, err := URIName(u).rawValue()
			if err != nil {
				return pkix.Extension{}, fmt.Errorf("authority info access: %w", err)
			}
			ads = append(ads, accessDescription{AccessMethod: group.method, AccessLocation: rv})
		}
	}
	der, err := asn1.Marshal(ads)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal AuthorityInfoAccess: %w", err)
	}
	return pkix.Extension{Id: OIDExtAuthorityInfoAccess, Value: der}, nil
}

// defaultServerSAN derives the SAN of a server certificate issued without
// one: an iPAddress for an IP-literal CN, a dNSName otherwise.
func defaultServerSAN(cn string) (GeneralName, error) {
	cn = strings.TrimSpace(cn)
	if addr, err := netip.ParseAddr(cn); err == nil {
		return IPName(addr), nil
	}
	if _, err := normalizeDNSName(cn); err != nil {
		return GeneralName{}, fmt.Errorf("common name %q is neither a host name nor an IP address; subject alternative names must be supplied", cn)
	}
	return DNSName(cn), nil
}
