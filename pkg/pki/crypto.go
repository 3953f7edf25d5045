// Package pki provides the public API for hermod.
// This file exposes key operations from internal/crypto.
package pki

import (
	"crypto"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
)

// Re-export crypto types
type (
	// KeyAlgorithm describes a key family and its parameters.
	KeyAlgorithm = pkicrypto.KeyAlgorithm

	// KeyPair holds a private key, its public half and its algorithm.
	KeyPair = pkicrypto.KeyPair

	// SignatureScheme is a concrete signature algorithm.
	SignatureScheme = pkicrypto.SignatureScheme
)

// GenerateKeyPair generates a new key pair.
func GenerateKeyPair(alg Algorithm) (*KeyPair, error) {
	ka, err := alg.KeyAlgorithm()
	if err != nil {
		return nil, err
	}
	return pkicrypto.GenerateKeyPair(ka)
}

// MarshalPrivateKeyPEM encodes a private key as PEM.
func MarshalPrivateKeyPEM(priv crypto.PrivateKey) ([]byte, error) {
	return pkicrypto.MarshalPrivateKeyPEM(priv)
}

// ParsePrivateKeyPEM decodes a PEM private key written by MarshalPrivateKeyPEM
// or by OpenSSL for classical keys.
func ParsePrivateKeyPEM(data []byte) (*KeyPair, error) {
	return pkicrypto.ParsePrivateKeyPEM(data)
}

// MarshalPublicKeyPEM encodes a public key as a PEM SubjectPublicKeyInfo.
func MarshalPublicKeyPEM(pub crypto.PublicKey) ([]byte, error) {
	return pkicrypto.MarshalPublicKeyPEM(pub)
}

// SelectSignatureScheme returns the scheme a key of alg signs with.
func SelectSignatureScheme(alg KeyAlgorithm) (SignatureScheme, error) {
	return pkicrypto.SelectSignatureScheme(alg)
}
