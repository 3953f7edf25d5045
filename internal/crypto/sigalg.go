package crypto

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// SignatureScheme names a concrete signature algorithm used to sign
// certificates and CSRs.
type SignatureScheme int

const (
	SchemeUnknown SignatureScheme = iota
	SchemeEd25519
	SchemeEd448
	SchemeRSAPSSSHA256
	SchemeRSAPSSSHA384
	SchemeRSAPSSSHA512
	SchemeECDSASHA256
	SchemeECDSASHA384
	SchemeECDSASHA512
	SchemeMLDSA44
	SchemeMLDSA65
	SchemeMLDSA87
	SchemeFalcon512
	SchemeFalcon1024
	SchemeSLHDSASHA2_128s
	SchemeSLHDSASHA2_128f
	SchemeSLHDSASHA2_192s
	SchemeSLHDSASHA2_192f
	SchemeSLHDSASHA2_256s
	SchemeSLHDSASHA2_256f
	SchemeSLHDSASHAKE_128s
	SchemeSLHDSASHAKE_128f
	SchemeSLHDSASHAKE_192s
	SchemeSLHDSASHAKE_192f
	SchemeSLHDSASHAKE_256s
	SchemeSLHDSASHAKE_256f
)

var (
	oidSignatureRSAPSS      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	oidMGF1                 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
	oidSHA256               = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384               = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512               = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	oidSignatureECDSASHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidSignatureECDSASHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidSignatureECDSASHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
)

type schemeInfo struct {
	name string
	oid  asn1.ObjectIdentifier
	hash crypto.Hash
	x509 x509.SignatureAlgorithm
}

var schemes = map[SignatureScheme]schemeInfo{
	SchemeEd25519:      {"ed25519", OIDEd25519, 0, x509.PureEd25519},
	SchemeEd448:        {"ed448", OIDEd448, 0, x509.UnknownSignatureAlgorithm},
	SchemeRSAPSSSHA256: {"rsassa-pss-sha256", oidSignatureRSAPSS, crypto.SHA256, x509.SHA256WithRSAPSS},
	SchemeRSAPSSSHA384: {"rsassa-pss-sha384", oidSignatureRSAPSS, crypto.SHA384, x509.SHA384WithRSAPSS},
	SchemeRSAPSSSHA512: {"rsassa-pss-sha512", oidSignatureRSAPSS, crypto.SHA512, x509.SHA512WithRSAPSS},
	SchemeECDSASHA256:  {"ecdsa-sha256", oidSignatureECDSASHA256, crypto.SHA256, x509.ECDSAWithSHA256},
	SchemeECDSASHA384:  {"ecdsa-sha384", oidSignatureECDSASHA384, crypto.SHA384, x509.ECDSAWithSHA384},
	SchemeECDSASHA512:  {"ecdsa-sha512", oidSignatureECDSASHA512, crypto.SHA512, x509.ECDSAWithSHA512},
	SchemeMLDSA44:      {"ml-dsa-44", OIDMLDSA44, 0, x509.UnknownSignatureAlgorithm},
	SchemeMLDSA65:      {"ml-dsa-65", OIDMLDSA65, 0, x509.UnknownSignatureAlgorithm},
	SchemeMLDSA87:      {"ml-dsa-87", OIDMLDSA87, 0, x509.UnknownSignatureAlgorithm},
	SchemeFalcon512:    {"falcon-512", OIDFalcon512, 0, x509.UnknownSignatureAlgorithm},
	SchemeFalcon1024:   {"falcon-1024", OIDFalcon1024, 0, x509.UnknownSignatureAlgorithm},
}

func init() {
	for i, p := range slhdsaParams {
		schemes[SchemeSLHDSASHA2_128s+SignatureScheme(i)] = schemeInfo{
			name: p.name,
			oid:  oidSLHDSA[p.params],
		}
	}
}

func (s SignatureScheme) String() string {
	if info, ok := schemes[s]; ok {
		return info.name
	}
	return fmt.Sprintf("SignatureScheme(%d)", int(s))
}

// OID returns the signatureAlgorithm object identifier.
func (s SignatureScheme) OID() asn1.ObjectIdentifier {
	return schemes[s].oid
}

// Hash returns the pre-hash applied before signing, or 0 for schemes that
// sign the message directly.
func (s SignatureScheme) Hash() crypto.Hash {
	return schemes[s].hash
}

// X509 returns the crypto/x509 constant for the scheme, or
// x509.UnknownSignatureAlgorithm when the standard library has none.
func (s SignatureScheme) X509() x509.SignatureAlgorithm {
	return schemes[s].x509
}

func (s SignatureScheme) isRSAPSS() bool {
	return s == SchemeRSAPSSSHA256 || s == SchemeRSAPSSSHA384 || s == SchemeRSAPSSSHA512
}

// AlgorithmIdentifier returns the AlgorithmIdentifier placed in the
// signature fields of certificates and CSRs. RSASSA-PSS carries explicit
// parameters (RFC 4055); every other scheme has absent parameters.
func (s SignatureScheme) AlgorithmIdentifier() (pkix.AlgorithmIdentifier, error) {
	info, ok := schemes[s]
	if !ok {
		return pkix.AlgorithmIdentifier{}, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, s)
	}
	ai := pkix.AlgorithmIdentifier{Algorithm: info.oid}
	if s.isRSAPSS() {
		params, err := marshalPSSParameters(info.hash)
		if err != nil {
			return pkix.AlgorithmIdentifier{}, err
		}
		ai.Parameters = asn1.RawValue{FullBytes: params}
	}
	return ai, nil
}

type pssParameters struct {
	Hash       pkix.AlgorithmIdentifier `asn1:"explicit,tag:0"`
	MGF        pkix.AlgorithmIdentifier `asn1:"explicit,tag:1"`
	SaltLength int                      `asn1:"explicit,tag:2"`
}

func marshalPSSParameters(h crypto.Hash) ([]byte, error) {
	var hashOID asn1.ObjectIdentifier
	switch h {
	case crypto.SHA256:
		hashOID = oidSHA256
	case crypto.SHA384:
		hashOID = oidSHA384
	case crypto.SHA512:
		hashOID = oidSHA512
	default:
		return nil, fmt.Errorf("no PSS parameters for %s", h)
	}
	hashAI := pkix.AlgorithmIdentifier{Algorithm: hashOID, Parameters: asn1.NullRawValue}
	hashDER, err := asn1.Marshal(hashAI)
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(pssParameters{
		Hash:       hashAI,
		MGF:        pkix.AlgorithmIdentifier{Algorithm: oidMGF1, Parameters: asn1.RawValue{FullBytes: hashDER}},
		SaltLength: h.Size(),
	})
}

// SchemeFromAlgorithmIdentifier maps a signature AlgorithmIdentifier back to
// a scheme. RSASSA-PSS is resolved through the hash inside its parameters.
func SchemeFromAlgorithmIdentifier(ai pkix.AlgorithmIdentifier) (SignatureScheme, error) {
	if ai.Algorithm.Equal(oidSignatureRSAPSS) {
		var params pssParameters
		if _, err := asn1.Unmarshal(ai.Parameters.FullBytes, &params); err != nil {
			return SchemeUnknown, fmt.Errorf("invalid RSASSA-PSS parameters: %w", err)
		}
		switch {
		case params.Hash.Algorithm.Equal(oidSHA256):
			return SchemeRSAPSSSHA256, nil
		case params.Hash.Algorithm.Equal(oidSHA384):
			return SchemeRSAPSSSHA384, nil
		case params.Hash.Algorithm.Equal(oidSHA512):
			return SchemeRSAPSSSHA512, nil
		}
		return SchemeUnknown, fmt.Errorf("%w: RSASSA-PSS hash %s", ErrUnsupportedKeyType, params.Hash.Algorithm)
	}
	for s, info := range schemes {
		if info.oid.Equal(ai.Algorithm) {
			return s, nil
		}
	}
	return SchemeUnknown, fmt.Errorf("%w: signature algorithm %s", ErrUnsupportedKeyType, ai.Algorithm)
}

// SelectSignatureScheme picks the signature scheme for a signing key.
//
// RSA uses RSASSA-PSS and ECDSA uses a hash matched to the key strength:
// SHA-512 from 4096-bit moduli or 521-bit curves, SHA-384 from 3072-bit
// moduli or 384-bit curves, SHA-256 below that.
func SelectSignatureScheme(alg KeyAlgorithm) (SignatureScheme, error) {
	switch a := alg.(type) {
	case Ed25519:
		return SchemeEd25519, nil
	case Ed448:
		return SchemeEd448, nil
	case RSA:
		switch {
		case a.Bits >= 4096:
			return SchemeRSAPSSSHA512, nil
		case a.Bits >= 3072:
			return SchemeRSAPSSSHA384, nil
		}
		return SchemeRSAPSSSHA256, nil
	case ECDSA:
		bits := a.Curve.FieldBits()
		switch {
		case bits == 0:
			return SchemeUnknown, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, a.Curve)
		case bits >= 521:
			return SchemeECDSASHA512, nil
		case bits >= 384:
			return SchemeECDSASHA384, nil
		}
		return SchemeECDSASHA256, nil
	case MLDSA:
		switch a.Params {
		case MLDSA44:
			return SchemeMLDSA44, nil
		case MLDSA65:
			return SchemeMLDSA65, nil
		case MLDSA87:
			return SchemeMLDSA87, nil
		}
	case SLHDSA:
		if _, ok := a.Params.id(); ok {
			return SchemeSLHDSASHA2_128s + SignatureScheme(a.Params-SLHDSASHA2_128s), nil
		}
	case Falcon:
		switch a.Params {
		case Falcon512:
			return SchemeFalcon512, nil
		case Falcon1024:
			return SchemeFalcon1024, nil
		}
	case MLKEM:
		return SchemeUnknown, fmt.Errorf("%w: KEM keys cannot sign certificates", ErrUnsupportedOperation)
	}
	if alg == nil {
		return SchemeUnknown, fmt.Errorf("%w: no key algorithm", ErrUnsupportedKeyType)
	}
	return SchemeUnknown, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, alg.Name())
}
