package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
	fndsa "github.com/pornin/go-fn-dsa/fndsa"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// AlgorithmOf identifies the KeyAlgorithm of a public key.
func AlgorithmOf(pub crypto.PublicKey) (KeyAlgorithm, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return RSA{Bits: k.N.BitLen()}, nil
	case *ecdsa.PublicKey:
		c, ok := curveFromElliptic(k.Curve)
		if !ok {
			return nil, fmt.Errorf("%w: curve %s", ErrUnsupportedKeyType, k.Curve.Params().Name)
		}
		return ECDSA{Curve: c}, nil
	case ed25519.PublicKey:
		return Ed25519{}, nil
	case ed448.PublicKey:
		return Ed448{}, nil
	case *FalconPublicKey:
		return Falcon{Params: k.Params}, nil
	case *mlkem512.PublicKey:
		return MLKEM{Params: MLKEM512}, nil
	case *mlkem768.PublicKey:
		return MLKEM{Params: MLKEM768}, nil
	case *mlkem1024.PublicKey:
		return MLKEM{Params: MLKEM1024}, nil
	case *mldsa44.PublicKey:
		return MLDSA{Params: MLDSA44}, nil
	case *mldsa65.PublicKey:
		return MLDSA{Params: MLDSA65}, nil
	case *mldsa87.PublicKey:
		return MLDSA{Params: MLDSA87}, nil
	case *slhdsa.PublicKey:
		if p, ok := slhdsaParamsFromID(k.ID); ok {
			return SLHDSA{Params: p}, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, pub)
}

// PublicKeyOf returns the public half of a private key.
func PublicKeyOf(priv crypto.PrivateKey) (crypto.PublicKey, error) {
	switch k := priv.(type) {
	case *mlkem512.PrivateKey:
		return k.Public(), nil
	case *mlkem768.PrivateKey:
		return k.Public(), nil
	case *mlkem1024.PrivateKey:
		return k.Public(), nil
	case *slhdsa.PrivateKey:
		pub := k.PublicKey()
		return &pub, nil
	case crypto.Signer:
		return k.Public(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, priv)
}

// PublicKeyBytes returns the raw subjectPublicKey bits of pub as they appear
// inside a SubjectPublicKeyInfo.
func PublicKeyBytes(pub crypto.PublicKey) ([]byte, error) {
	der, err := MarshalSubjectPublicKeyInfo(pub)
	if err != nil {
		return nil, err
	}
	_, bits, err := splitSPKI(der)
	if err != nil {
		return nil, err
	}
	return bits, nil
}

// SubjectKeyID derives a key identifier from the SHA-256 hash of the
// subjectPublicKey bits, truncated to 160 bits (RFC 7093 method 1).
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	raw, err := PublicKeyBytes(pub)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	return sum[:20], nil
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// MarshalSubjectPublicKeyInfo encodes pub as a DER SubjectPublicKeyInfo.
// Classical keys go through crypto/x509; the remaining families carry their
// raw encoding in the BIT STRING with absent algorithm parameters.
func MarshalSubjectPublicKeyInfo(pub crypto.PublicKey) ([]byte, error) {
	switch pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return x509.MarshalPKIXPublicKey(pub)
	}

	alg, err := AlgorithmOf(pub)
	if err != nil {
		return nil, err
	}
	oid, ok := PublicKeyOID(alg)
	if !ok {
		return nil, fmt.Errorf("%w: no OID for %s", ErrUnsupportedKeyType, alg.Name())
	}

	var raw []byte
	switch k := pub.(type) {
	case ed448.PublicKey:
		raw = []byte(k)
	case *FalconPublicKey:
		raw = k.Key
	case interface{ MarshalBinary() ([]byte, error) }:
		if raw, err = k.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("failed to marshal %s public key: %w", alg.Name(), err)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, pub)
	}

	return asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: oid},
		PublicKey: asn1.BitString{Bytes: raw, BitLength: 8 * len(raw)},
	})
}

// ParseSubjectPublicKeyInfo decodes a DER SubjectPublicKeyInfo of any
// supported family.
func ParseSubjectPublicKeyInfo(der []byte) (crypto.PublicKey, KeyAlgorithm, error) {
	oid, raw, err := splitSPKI(der)
	if err != nil {
		return nil, nil, err
	}

	if oid.Equal(OIDRSAEncryption) || oid.Equal(OIDECPublicKey) || oid.Equal(OIDEd25519) {
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, nil, err
		}
		alg, err := AlgorithmOf(pub)
		if err != nil {
			return nil, nil, err
		}
		return pub, alg, nil
	}

	alg, ok := algorithmForPublicKeyOID(oid)
	if !ok {
		return nil, nil, fmt.Errorf("%w: public key algorithm %s", ErrUnsupportedKeyType, oid)
	}
	pub, err := decodePublicKey(alg, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s public key: %w", alg.Name(), err)
	}
	return pub, alg, nil
}

func splitSPKI(der []byte) (asn1.ObjectIdentifier, []byte, error) {
	input := cryptobyte.String(der)
	var spki, algID cryptobyte.String
	var oid asn1.ObjectIdentifier
	var bits asn1.BitString
	if !input.ReadASN1(&spki, cbasn1.SEQUENCE) || !input.Empty() ||
		!spki.ReadASN1(&algID, cbasn1.SEQUENCE) ||
		!algID.ReadASN1ObjectIdentifier(&oid) ||
		!spki.ReadASN1BitString(&bits) || !spki.Empty() {
		return nil, nil, errors.New("malformed SubjectPublicKeyInfo")
	}
	if bits.BitLength%8 != 0 {
		return nil, nil, errors.New("subjectPublicKey is not a whole number of bytes")
	}
	return oid, bits.Bytes, nil
}

func decodePublicKey(alg KeyAlgorithm, raw []byte) (crypto.PublicKey, error) {
	switch a := alg.(type) {
	case Ed448:
		if len(raw) != ed448.PublicKeySize {
			return nil, fmt.Errorf("bad Ed448 key length %d", len(raw))
		}
		return ed448.PublicKey(append([]byte(nil), raw...)), nil
	case Falcon:
		if len(raw) != fndsa.VerifyingKeySize(a.Params.logn()) {
			return nil, fmt.Errorf("bad %s key length %d", a.Name(), len(raw))
		}
		return &FalconPublicKey{Params: a.Params, Key: append([]byte(nil), raw...)}, nil
	case MLKEM:
		var (
			pk  any
			err error
		)
		switch a.Params {
		case MLKEM512:
			pk, err = mlkem512.Scheme().UnmarshalBinaryPublicKey(raw)
		case MLKEM768:
			pk, err = mlkem768.Scheme().UnmarshalBinaryPublicKey(raw)
		case MLKEM1024:
			pk, err = mlkem1024.Scheme().UnmarshalBinaryPublicKey(raw)
		}
		if err != nil {
			return nil, err
		}
		if pk == nil {
			break
		}
		return pk, nil
	case MLDSA:
		switch a.Params {
		case MLDSA44:
			var pk mldsa44.PublicKey
			if err := pk.UnmarshalBinary(raw); err != nil {
				return nil, err
			}
			return &pk, nil
		case MLDSA65:
			var pk mldsa65.PublicKey
			if err := pk.UnmarshalBinary(raw); err != nil {
				return nil, err
			}
			return &pk, nil
		case MLDSA87:
			var pk mldsa87.PublicKey
			if err := pk.UnmarshalBinary(raw); err != nil {
				return nil, err
			}
			return &pk, nil
		}
	case SLHDSA:
		id, ok := a.Params.id()
		if !ok {
			break
		}
		pk := slhdsa.PublicKey{ID: id}
		if err := pk.UnmarshalBinary(raw); err != nil {
			return nil, err
		}
		return &pk, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, alg.Name())
}

// PublicKeysEqual reports whether a and b encode to the same
// SubjectPublicKeyInfo.
func PublicKeysEqual(a, b crypto.PublicKey) bool {
	da, err := MarshalSubjectPublicKeyInfo(a)
	if err != nil {
		return false
	}
	db, err := MarshalSubjectPublicKeyInfo(b)
	if err != nil {
		return false
	}
	return string(da) == string(db)
}
