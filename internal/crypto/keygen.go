package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
	fndsa "github.com/pornin/go-fn-dsa/fndsa"
)

// KeyPair holds a public/private key pair tagged with its algorithm.
// The engine never keeps a reference to a KeyPair after returning it.
type KeyPair struct {
	Algorithm  KeyAlgorithm
	PrivateKey crypto.PrivateKey
	PublicKey  crypto.PublicKey
}

// Signer returns the private key as a crypto.Signer.
// ML-KEM keys do not sign and yield ErrUnsupportedOperation.
func (kp *KeyPair) Signer() (crypto.Signer, error) {
	if !kp.Algorithm.CanSign() {
		return nil, fmt.Errorf("%w: %s keys cannot sign", ErrUnsupportedOperation, kp.Algorithm.Name())
	}
	s, ok := kp.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, kp.PrivateKey)
	}
	return s, nil
}

// GenerateKeyPair generates a key pair for any supported algorithm.
//
// Example:
//
//	kp, err := crypto.GenerateKeyPair(crypto.MLDSA{Params: crypto.MLDSA65})
//	if err != nil {
//	    log.Fatal(err)
//	}
func GenerateKeyPair(alg KeyAlgorithm) (*KeyPair, error) {
	return GenerateKeyPairWithRand(rand.Reader, alg)
}

// GenerateKeyPairWithRand generates a key pair using the provided random source.
// This is useful for testing with deterministic randomness.
func GenerateKeyPairWithRand(random io.Reader, alg KeyAlgorithm) (*KeyPair, error) {
	switch a := alg.(type) {
	case RSA:
		return GenerateRSAWithRand(random, a.Bits)
	case ECDSA:
		return generateECDSA(random, a.Curve)
	case Ed25519:
		return GenerateEd25519WithRand(random)
	case Ed448:
		return GenerateEd448WithRand(random)
	case Falcon:
		return GenerateFalconWithRand(random, a.Params)
	case MLKEM:
		return GenerateMLKEMWithRand(random, a.Params)
	case MLDSA:
		return GenerateMLDSAWithRand(random, a.Params)
	case SLHDSA:
		return GenerateSLHDSAWithRand(random, a.Params)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, alg)
	}
}

// GenerateRSA generates an RSA key pair. A bits value of 0 selects DefaultRSABits.
func GenerateRSA(bits int) (*KeyPair, error) {
	return GenerateRSAWithRand(rand.Reader, bits)
}

func GenerateRSAWithRand(random io.Reader, bits int) (*KeyPair, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}
	if bits < MinRSABits {
		return nil, fmt.Errorf("%w: rsa-%d is below the %d-bit minimum", ErrUnsupportedKeyType, bits, MinRSABits)
	}
	priv, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return &KeyPair{Algorithm: RSA{Bits: bits}, PrivateKey: priv, PublicKey: &priv.PublicKey}, nil
}

// GenerateECC generates an ECDSA key pair on the named curve.
// An empty name selects DefaultCurveName.
func GenerateECC(curveName string) (*KeyPair, error) {
	return GenerateECCWithRand(rand.Reader, curveName)
}

func GenerateECCWithRand(random io.Reader, curveName string) (*KeyPair, error) {
	if curveName == "" {
		curveName = DefaultCurveName
	}
	c, err := ParseCurve(curveName)
	if err != nil {
		return nil, err
	}
	return generateECDSA(random, c)
}

func generateECDSA(random io.Reader, c Curve) (*KeyPair, error) {
	ec := c.elliptic()
	if ec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, c)
	}
	priv, err := ecdsa.GenerateKey(ec, random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return &KeyPair{Algorithm: ECDSA{Curve: c}, PrivateKey: priv, PublicKey: &priv.PublicKey}, nil
}

func GenerateEd25519() (*KeyPair, error) {
	return GenerateEd25519WithRand(rand.Reader)
}

func GenerateEd25519WithRand(random io.Reader) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
	}
	return &KeyPair{Algorithm: Ed25519{}, PrivateKey: priv, PublicKey: pub}, nil
}

func GenerateEd448() (*KeyPair, error) {
	return GenerateEd448WithRand(rand.Reader)
}

func GenerateEd448WithRand(random io.Reader) (*KeyPair, error) {
	pub, priv, err := ed448.GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed448 key: %w", err)
	}
	return &KeyPair{Algorithm: Ed448{}, PrivateKey: priv, PublicKey: pub}, nil
}

// GenerateFalcon generates a Falcon (FN-DSA) key pair.
func GenerateFalcon(params FalconParams) (*KeyPair, error) {
	return GenerateFalconWithRand(rand.Reader, params)
}

func GenerateFalconWithRand(random io.Reader, params FalconParams) (*KeyPair, error) {
	if params != Falcon512 && params != Falcon1024 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, params)
	}
	skey, vkey, err := fndsa.KeyGen(params.logn(), random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", params, err)
	}
	pub := &FalconPublicKey{Params: params, Key: vkey}
	priv := &FalconPrivateKey{Params: params, Key: skey, pub: pub}
	return &KeyPair{Algorithm: Falcon{Params: params}, PrivateKey: priv, PublicKey: pub}, nil
}

// GenerateMLKEM generates an ML-KEM key pair. The result can only be used
// for encapsulation; it cannot sign certificates.
func GenerateMLKEM(params MLKEMParams) (*KeyPair, error) {
	return GenerateMLKEMWithRand(rand.Reader, params)
}

func GenerateMLKEMWithRand(random io.Reader, params MLKEMParams) (*KeyPair, error) {
	var (
		priv crypto.PrivateKey
		pub  crypto.PublicKey
		err  error
	)
	switch params {
	case MLKEM512:
		pub, priv, err = mlkem512.GenerateKeyPair(random)
	case MLKEM768:
		pub, priv, err = mlkem768.GenerateKeyPair(random)
	case MLKEM1024:
		pub, priv, err = mlkem1024.GenerateKeyPair(random)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, params)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", params, err)
	}
	return &KeyPair{Algorithm: MLKEM{Params: params}, PrivateKey: priv, PublicKey: pub}, nil
}

// GenerateMLDSA generates an ML-DSA key pair.
func GenerateMLDSA(params MLDSAParams) (*KeyPair, error) {
	return GenerateMLDSAWithRand(rand.Reader, params)
}

func GenerateMLDSAWithRand(random io.Reader, params MLDSAParams) (*KeyPair, error) {
	var (
		priv crypto.PrivateKey
		pub  crypto.PublicKey
		err  error
	)
	switch params {
	case MLDSA44:
		pub, priv, err = mldsa44.GenerateKey(random)
	case MLDSA65:
		pub, priv, err = mldsa65.GenerateKey(random)
	case MLDSA87:
		pub, priv, err = mldsa87.GenerateKey(random)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, params)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", params, err)
	}
	return &KeyPair{Algorithm: MLDSA{Params: params}, PrivateKey: priv, PublicKey: pub}, nil
}

// GenerateSLHDSA generates an SLH-DSA key pair.
func GenerateSLHDSA(params SLHDSAParams) (*KeyPair, error) {
	return GenerateSLHDSAWithRand(rand.Reader, params)
}

func GenerateSLHDSAWithRand(random io.Reader, params SLHDSAParams) (*KeyPair, error) {
	id, ok := params.id()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, params)
	}
	pub, priv, err := slhdsa.GenerateKey(random, id)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", params, err)
	}
	return &KeyPair{Algorithm: SLHDSA{Params: params}, PrivateKey: &priv, PublicKey: &pub}, nil
}
