package crypto

import (
	"bytes"
	"crypto"
	"fmt"
	"io"

	fndsa "github.com/pornin/go-fn-dsa/fndsa"
)

// FalconPublicKey is an encoded FN-DSA verifying key.
type FalconPublicKey struct {
	Params FalconParams
	Key    []byte
}

// Equal reports whether x holds the same Falcon key.
func (k *FalconPublicKey) Equal(x crypto.PublicKey) bool {
	o, ok := x.(*FalconPublicKey)
	return ok && o.Params == k.Params && bytes.Equal(o.Key, k.Key)
}

// Verify checks a raw (non pre-hashed) signature over message.
func (k *FalconPublicKey) Verify(message, sig []byte) bool {
	return fndsa.Verify(k.Key, fndsa.DOMAIN_NONE, 0, message, sig)
}

// FalconPrivateKey is an encoded FN-DSA signing key.
type FalconPrivateKey struct {
	Params FalconParams
	Key    []byte

	pub *FalconPublicKey
}

// NewFalconPrivateKey rebuilds a private key from its encoded signing and
// verifying halves.
func NewFalconPrivateKey(params FalconParams, skey, vkey []byte) *FalconPrivateKey {
	return &FalconPrivateKey{
		Params: params,
		Key:    skey,
		pub:    &FalconPublicKey{Params: params, Key: vkey},
	}
}

func (k *FalconPrivateKey) Public() crypto.PublicKey {
	return k.pub
}

// Sign signs message directly. opts must be crypto.Hash(0).
func (k *FalconPrivateKey) Sign(random io.Reader, message []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts != nil && opts.HashFunc() != 0 {
		return nil, fmt.Errorf("%w: falcon signs unhashed messages only", ErrUnsupportedOperation)
	}
	return fndsa.Sign(random, k.Key, fndsa.DOMAIN_NONE, 0, message)
}
