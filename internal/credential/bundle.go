// Package credential groups a certificate, its issuer chain and its private
// key into the opaque TLS credential handed to listeners and clients.
//
// Bundles are stored as two PEM files: the certificate followed by its chain,
// and the private key (mode 0600).
package credential

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

var (
	// ErrKeyMismatch indicates the private key does not belong to the
	// certificate.
	ErrKeyMismatch = errors.New("private key does not match certificate")

	// ErrNoPrivateKey indicates a bundle loaded without its key was asked
	// for key material.
	ErrNoPrivateKey = errors.New("bundle has no private key")
)

// Bundle is a certificate with its issuer chain and, optionally, its key.
// Chain is ordered from the certificate's issuer towards the root.
type Bundle struct {
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	PrivateKey  crypto.PrivateKey
}

// New builds a bundle after checking that key belongs to cert. A nil key
// makes a certificate-only bundle.
func New(cert *x509.Certificate, key crypto.PrivateKey, chain ...*x509.Certificate) (*Bundle, error) {
	if cert == nil {
		return nil, errors.New("certificate is required")
	}
	b := &Bundle{Certificate: cert, Chain: chain, PrivateKey: key}
	if key != nil {
		if err := b.checkKey(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Bundle) checkKey() error {
	certPub, _, err := pkicrypto.ParseSubjectPublicKeyInfo(b.Certificate.RawSubjectPublicKeyInfo)
	if err != nil {
		return fmt.Errorf("certificate public key: %w", err)
	}
	keyPub, err := pkicrypto.PublicKeyOf(b.PrivateKey)
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	if !pkicrypto.PublicKeysEqual(certPub, keyPub) {
		return ErrKeyMismatch
	}
	return nil
}

// Certificates returns the certificate followed by its chain.
func (b *Bundle) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate{b.Certificate}, b.Chain...)
}

// Root returns the last chain element when it is self-issued, or nil.
func (b *Bundle) Root() *x509.Certificate {
	certs := b.Certificates()
	last := certs[len(certs)-1]
	if bytes.Equal(last.RawIssuer, last.RawSubject) {
		return last
	}
	return nil
}

// Intermediates returns the chain without a trailing root.
func (b *Bundle) Intermediates() []*x509.Certificate {
	if len(b.Chain) > 0 && b.Root() == b.Chain[len(b.Chain)-1] {
		return b.Chain[:len(b.Chain)-1]
	}
	return b.Chain
}

// CertificatesPEM returns the certificate and chain as CERTIFICATE blocks.
func (b *Bundle) CertificatesPEM() []byte {
	return x509util.EncodeCertificatesPEM(b.Certificates()...)
}

// KeyPEM returns the private key armoured by pkicrypto.MarshalPrivateKeyPEM.
func (b *Bundle) KeyPEM() ([]byte, error) {
	if b.PrivateKey == nil {
		return nil, ErrNoPrivateKey
	}
	return pkicrypto.MarshalPrivateKeyPEM(b.PrivateKey)
}

// PEM returns the certificates followed by the key in one document.
func (b *Bundle) PEM() ([]byte, error) {
	key, err := b.KeyPEM()
	if err != nil {
		return nil, err
	}
	return append(b.CertificatesPEM(), key...), nil
}

// TLSCertificate returns the bundle as a crypto/tls credential. Only keys
// crypto/tls can sign handshakes with (RSA, ECDSA, Ed25519) are accepted.
func (b *Bundle) TLSCertificate() (tls.Certificate, error) {
	if b.PrivateKey == nil {
		return tls.Certificate{}, ErrNoPrivateKey
	}
	switch b.PrivateKey.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
	default:
		return tls.Certificate{}, fmt.Errorf("%w: %T cannot be used by crypto/tls", pkicrypto.ErrUnsupportedKeyType, b.PrivateKey)
	}
	out := tls.Certificate{PrivateKey: b.PrivateKey, Leaf: b.Certificate}
	for _, c := range b.Certificates() {
		out.Certificate = append(out.Certificate, c.Raw)
	}
	return out, nil
}

// Parse builds a bundle from PEM data. keyPEM may be nil.
func Parse(certPEM, keyPEM []byte) (*Bundle, error) {
	certs, err := x509util.ParseCertificatesPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificates: %w", err)
	}
	var key crypto.PrivateKey
	if keyPEM != nil {
		kp, err := pkicrypto.ParsePrivateKeyPEM(keyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to decode private key: %w", err)
		}
		key = kp.PrivateKey
	}
	return New(certs[0], key, certs[1:]...)
}

// Load reads a bundle from certPath and keyPath. An empty keyPath loads the
// certificates only.
func Load(certPath, keyPath string) (*Bundle, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificates: %w", err)
	}
	var keyPEM []byte
	if keyPath != "" {
		if keyPEM, err = os.ReadFile(keyPath); err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
	}
	return Parse(certPEM, keyPEM)
}

// Save writes the certificates to certPath (0644) and the key to keyPath
// (0600). The key is skipped when keyPath is empty. Parent directories are
// created.
func (b *Bundle) Save(certPath, keyPath string) error {
	if err := writeFile(certPath, b.CertificatesPEM(), 0o644); err != nil {
		return fmt.Errorf("failed to write certificates: %w", err)
	}
	if keyPath == "" {
		return nil
	}
	key, err := b.KeyPEM()
	if err != nil {
		return err
	}
	if err := writeFile(keyPath, key, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}
