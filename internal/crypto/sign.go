package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
)

// ErrSignatureInvalid is returned by Verify when a signature does not check out.
var ErrSignatureInvalid = errors.New("signature verification failed")

// SchemeForKey selects the signature scheme for a private key.
func SchemeForKey(priv crypto.PrivateKey) (SignatureScheme, error) {
	pub, err := PublicKeyOf(priv)
	if err != nil {
		return SchemeUnknown, err
	}
	alg, err := AlgorithmOf(pub)
	if err != nil {
		return SchemeUnknown, err
	}
	return SelectSignatureScheme(alg)
}

// Sign signs message with priv under scheme. Message is the full to-be-signed
// encoding; classical schemes hash it first, EdDSA and PQC schemes do not.
func Sign(random io.Reader, priv crypto.PrivateKey, scheme SignatureScheme, message []byte) ([]byte, error) {
	want, err := SchemeForKey(priv)
	if err != nil {
		return nil, err
	}
	if want != scheme {
		return nil, fmt.Errorf("%w: key requires %s, not %s", ErrUnsupportedOperation, want, scheme)
	}

	digest := message
	if h := scheme.Hash(); h != 0 {
		hh := h.New()
		hh.Write(message)
		digest = hh.Sum(nil)
	}

	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPSS(random, k, scheme.Hash(), digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
			Hash:       scheme.Hash(),
		})
	case *ecdsa.PrivateKey:
		return ecdsa.SignASN1(random, k, digest)
	case ed25519.PrivateKey:
		return ed25519.Sign(k, message), nil
	case ed448.PrivateKey:
		return ed448.Sign(k, message, ""), nil
	case *FalconPrivateKey:
		return k.Sign(random, message, crypto.Hash(0))
	case *mldsa44.PrivateKey:
		return k.Sign(random, message, crypto.Hash(0))
	case *mldsa65.PrivateKey:
		return k.Sign(random, message, crypto.Hash(0))
	case *mldsa87.PrivateKey:
		return k.Sign(random, message, crypto.Hash(0))
	case *slhdsa.PrivateKey:
		return k.Sign(random, message, nil)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, priv)
}

// Verify checks signature over message with pub under scheme.
func Verify(pub crypto.PublicKey, scheme SignatureScheme, message, signature []byte) error {
	alg, err := AlgorithmOf(pub)
	if err != nil {
		return err
	}
	want, err := SelectSignatureScheme(alg)
	if err != nil {
		return err
	}
	if want != scheme {
		return fmt.Errorf("%w: %s key cannot verify %s", ErrSignatureInvalid, alg.Name(), scheme)
	}

	digest := message
	if h := scheme.Hash(); h != 0 {
		hh := h.New()
		hh.Write(message)
		digest = hh.Sum(nil)
	}

	ok := false
	switch k := pub.(type) {
	case *rsa.PublicKey:
		ok = rsa.VerifyPSS(k, scheme.Hash(), digest, signature, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthAuto,
			Hash:       scheme.Hash(),
		}) == nil
	case *ecdsa.PublicKey:
		ok = ecdsa.VerifyASN1(k, digest, signature)
	case ed25519.PublicKey:
		ok = ed25519.Verify(k, message, signature)
	case ed448.PublicKey:
		ok = ed448.Verify(k, message, signature, "")
	case *FalconPublicKey:
		ok = k.Verify(message, signature)
	case *mldsa44.PublicKey:
		ok = mldsa44.Verify(k, message, nil, signature)
	case *mldsa65.PublicKey:
		ok = mldsa65.Verify(k, message, nil, signature)
	case *mldsa87.PublicKey:
		ok = mldsa87.Verify(k, message, nil, signature)
	case *slhdsa.PublicKey:
		ok = slhdsa.Verify(k, slhdsa.NewMessage(message), signature, nil)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedKeyType, pub)
	}
	if !ok {
		return fmt.Errorf("%w (%s)", ErrSignatureInvalid, scheme)
	}
	return nil
}
