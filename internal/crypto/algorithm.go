// Package crypto provides the key algorithms used by the certificate authority.
// It covers classical algorithms (RSA, ECDSA, Ed25519, Ed448) and post-quantum
// algorithms (ML-DSA, ML-KEM, SLH-DSA via cloudflare/circl, Falcon via go-fn-dsa).
package crypto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedKeyType is returned for unknown algorithms or parameter sets.
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrUnsupportedOperation is returned when a key is asked to do something
	// its family cannot do, such as signing with an ML-KEM key.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// KeyAlgorithm identifies a key family together with its strength parameter.
//
// The set of implementations is closed: RSA, ECDSA, Ed25519, Ed448, Falcon,
// MLKEM, MLDSA and SLHDSA.
type KeyAlgorithm interface {
	// Name returns the canonical lower-case identifier, e.g. "ml-dsa-65".
	Name() string
	// CanSign reports whether keys of this algorithm produce signatures.
	CanSign() bool
	// CanEncapsulate reports whether keys of this algorithm can protect a
	// symmetric key (RSA key transport or a KEM).
	CanEncapsulate() bool

	isKeyAlgorithm()
}

// RSA is an RSA key of the given modulus size.
type RSA struct {
	Bits int
}

func (a RSA) Name() string         { return "rsa-" + strconv.Itoa(a.Bits) }
func (a RSA) CanSign() bool        { return true }
func (a RSA) CanEncapsulate() bool { return true }
func (RSA) isKeyAlgorithm()        {}

// ECDSA is an ECDSA key on a NIST curve.
type ECDSA struct {
	Curve Curve
}

func (a ECDSA) Name() string         { return "ecdsa-" + strings.ToLower(a.Curve.String()) }
func (a ECDSA) CanSign() bool        { return true }
func (a ECDSA) CanEncapsulate() bool { return false }
func (ECDSA) isKeyAlgorithm()        {}

// Ed25519 is a pure EdDSA key over edwards25519.
type Ed25519 struct{}

func (Ed25519) Name() string         { return "ed25519" }
func (Ed25519) CanSign() bool        { return true }
func (Ed25519) CanEncapsulate() bool { return false }
func (Ed25519) isKeyAlgorithm()      {}

// Ed448 is a pure EdDSA key over edwards448.
type Ed448 struct{}

func (Ed448) Name() string         { return "ed448" }
func (Ed448) CanSign() bool        { return true }
func (Ed448) CanEncapsulate() bool { return false }
func (Ed448) isKeyAlgorithm()      {}

// Falcon is an FN-DSA (Falcon) signing key.
type Falcon struct {
	Params FalconParams
}

func (a Falcon) Name() string       { return a.Params.String() }
func (Falcon) CanSign() bool        { return true }
func (Falcon) CanEncapsulate() bool { return false }
func (Falcon) isKeyAlgorithm()      {}

// MLKEM is a FIPS 203 key-encapsulation key. It cannot sign.
type MLKEM struct {
	Params MLKEMParams
}

func (a MLKEM) Name() string       { return a.Params.String() }
func (MLKEM) CanSign() bool        { return false }
func (MLKEM) CanEncapsulate() bool { return true }
func (MLKEM) isKeyAlgorithm()      {}

// MLDSA is a FIPS 204 signing key.
type MLDSA struct {
	Params MLDSAParams
}

func (a MLDSA) Name() string       { return a.Params.String() }
func (MLDSA) CanSign() bool        { return true }
func (MLDSA) CanEncapsulate() bool { return false }
func (MLDSA) isKeyAlgorithm()      {}

// SLHDSA is a FIPS 205 stateless hash-based signing key.
type SLHDSA struct {
	Params SLHDSAParams
}

func (a SLHDSA) Name() string       { return a.Params.String() }
func (SLHDSA) CanSign() bool        { return true }
func (SLHDSA) CanEncapsulate() bool { return false }
func (SLHDSA) isKeyAlgorithm()      {}

// ParseAlgorithm parses a canonical algorithm name as produced by Name.
// It also accepts the short forms used on the command line ("rsa" for
// rsa-4096, "ecdsa" for ecdsa-p256). Post-quantum names ignore case and
// separators, so "ML_KEM_768", "mldsa65" and "falcon-512" all parse.
func ParseAlgorithm(name string) (KeyAlgorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	pq := normalizeParamName(n)
	switch {
	case n == "rsa":
		return RSA{Bits: DefaultRSABits}, nil
	case strings.HasPrefix(n, "rsa-"):
		bits, err := strconv.Atoi(strings.TrimPrefix(n, "rsa-"))
		if err != nil || bits < MinRSABits {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, name)
		}
		return RSA{Bits: bits}, nil
	case n == "ecdsa":
		return ECDSA{Curve: P256}, nil
	case strings.HasPrefix(n, "ecdsa-"):
		c, err := ParseCurve(strings.TrimPrefix(n, "ecdsa-"))
		if err != nil {
			return nil, err
		}
		return ECDSA{Curve: c}, nil
	case n == "ed25519":
		return Ed25519{}, nil
	case n == "ed448":
		return Ed448{}, nil
	case strings.HasPrefix(pq, "falcon"):
		p, err := ParseFalconParams(n)
		if err != nil {
			return nil, err
		}
		return Falcon{Params: p}, nil
	case strings.HasPrefix(pq, "mlkem"):
		p, err := ParseMLKEMParams(n)
		if err != nil {
			return nil, err
		}
		return MLKEM{Params: p}, nil
	case strings.HasPrefix(pq, "mldsa"):
		p, err := ParseMLDSAParams(n)
		if err != nil {
			return nil, err
		}
		return MLDSA{Params: p}, nil
	case strings.HasPrefix(pq, "slhdsa"):
		p, err := ParseSLHDSAParams(n)
		if err != nil {
			return nil, err
		}
		return SLHDSA{Params: p}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, name)
}

// IsPQC reports whether the algorithm belongs to a post-quantum family.
func IsPQC(alg KeyAlgorithm) bool {
	switch alg.(type) {
	case Falcon, MLKEM, MLDSA, SLHDSA:
		return true
	}
	return false
}
