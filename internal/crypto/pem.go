package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

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

const (
	pemTypePKCS8     = "PRIVATE KEY"
	pemTypePublicKey = "PUBLIC KEY"
	pemPrivateSuffix = " PRIVATE KEY"
)

// MarshalPrivateKeyPEM encodes a private key. Classical keys use PKCS#8;
// other families use a "<ALGORITHM> PRIVATE KEY" block holding the raw
// key encoding.
func MarshalPrivateKeyPEM(priv crypto.PrivateKey) ([]byte, error) {
	switch priv.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: pemTypePKCS8, Bytes: der}), nil
	}

	pub, err := PublicKeyOf(priv)
	if err != nil {
		return nil, err
	}
	alg, err := AlgorithmOf(pub)
	if err != nil {
		return nil, err
	}

	var raw []byte
	switch k := priv.(type) {
	case ed448.PrivateKey:
		raw = append([]byte(nil), k.Seed()...)
	case *FalconPrivateKey:
		raw = append(append([]byte(nil), k.Key...), k.pub.Key...)
	case interface{ MarshalBinary() ([]byte, error) }:
		if raw, err = k.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("failed to marshal %s private key: %w", alg.Name(), err)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, priv)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  strings.ToUpper(alg.Name()) + pemPrivateSuffix,
		Bytes: raw,
	}), nil
}

// ParsePrivateKeyPEM decodes the first private key block in data.
func ParsePrivateKeyPEM(data []byte) (*KeyPair, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no private key PEM block found")
		}
		if block.Type == pemTypePKCS8 {
			return parsePKCS8(block.Bytes)
		}
		if strings.HasSuffix(block.Type, pemPrivateSuffix) {
			alg, err := ParseAlgorithm(strings.TrimSuffix(block.Type, pemPrivateSuffix))
			if err != nil {
				return nil, err
			}
			return decodePrivateKey(alg, block.Bytes)
		}
	}
}

func parsePKCS8(der []byte) (*KeyPair, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#8 key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}
	alg, err := AlgorithmOf(signer.Public())
	if err != nil {
		return nil, err
	}
	return &KeyPair{Algorithm: alg, PrivateKey: key, PublicKey: signer.Public()}, nil
}

func decodePrivateKey(alg KeyAlgorithm, raw []byte) (*KeyPair, error) {
	var priv crypto.PrivateKey
	switch a := alg.(type) {
	case Ed448:
		if len(raw) != ed448.SeedSize {
			return nil, fmt.Errorf("bad Ed448 seed length %d", len(raw))
		}
		priv = ed448.NewKeyFromSeed(raw)
	case Falcon:
		n := fndsa.SigningKeySize(a.Params.logn())
		if len(raw) != n+fndsa.VerifyingKeySize(a.Params.logn()) {
			return nil, fmt.Errorf("bad %s key length %d", a.Name(), len(raw))
		}
		priv = NewFalconPrivateKey(a.Params, raw[:n:n], raw[n:])
	case MLKEM:
		var err error
		switch a.Params {
		case MLKEM512:
			priv, err = mlkem512.Scheme().UnmarshalBinaryPrivateKey(raw)
		case MLKEM768:
			priv, err = mlkem768.Scheme().UnmarshalBinaryPrivateKey(raw)
		case MLKEM1024:
			priv, err = mlkem1024.Scheme().UnmarshalBinaryPrivateKey(raw)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s key: %w", a.Name(), err)
		}
	case MLDSA:
		var k interface {
			crypto.Signer
			UnmarshalBinary([]byte) error
		}
		switch a.Params {
		case MLDSA44:
			k = new(mldsa44.PrivateKey)
		case MLDSA65:
			k = new(mldsa65.PrivateKey)
		case MLDSA87:
			k = new(mldsa87.PrivateKey)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, a.Name())
		}
		priv = k
		if err := k.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s key: %w", a.Name(), err)
		}
	case SLHDSA:
		id, ok := a.Params.id()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, a.Name())
		}
		k := &slhdsa.PrivateKey{ID: id}
		if err := k.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s key: %w", a.Name(), err)
		}
		priv = k
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, alg.Name())
	}
	if priv == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, alg.Name())
	}

	pub, err := PublicKeyOf(priv)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Algorithm: alg, PrivateKey: priv, PublicKey: pub}, nil
}

// MarshalPublicKeyPEM encodes pub as a "PUBLIC KEY" SubjectPublicKeyInfo block.
func MarshalPublicKeyPEM(pub crypto.PublicKey) ([]byte, error) {
	der, err := MarshalSubjectPublicKeyInfo(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: der}), nil
}

// ParsePublicKeyPEM decodes the first "PUBLIC KEY" block in data.
func ParsePublicKeyPEM(data []byte) (crypto.PublicKey, KeyAlgorithm, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, nil, errors.New("no public key PEM block found")
		}
		if block.Type == pemTypePublicKey {
			return ParseSubjectPublicKeyInfo(block.Bytes)
		}
	}
}
