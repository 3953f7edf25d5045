package ca

import (
	"testing"
	"time"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// =============================================================================
// Test Helpers
// =============================================================================

func mustKeyPair(t *testing.T, alg pkicrypto.KeyAlgorithm) *pkicrypto.KeyPair {
	t.Helper()
	kp, err := pkicrypto.GenerateKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateKeyPair(%s) error = %v", alg.Name(), err)
	}
	return kp
}

func fixedClock(t0 time.Time) func() time.Time {
	return func() time.Time { return t0 }
}

func issueRoot(t *testing.T, s *Signer, kp *pkicrypto.KeyPair, cn string, lifetime time.Duration) *Certificate {
	t.Helper()
	cert, err := s.Sign(SignRequest{
		Type:     x509util.RootCA,
		Subject:  SubjectDescriptor{CommonName: cn},
		Issuer:   &IssuerContext{PrivateKey: kp.PrivateKey},
		Lifetime: lifetime,
	})
	if err != nil {
		t.Fatalf("Sign(root %q) error = %v", cn, err)
	}
	return cert
}

func issueIntermediate(t *testing.T, s *Signer, parent *Certificate, parentKey, kp *pkicrypto.KeyPair, cn string) *Certificate {
	t.Helper()
	cert, err := s.Sign(SignRequest{
		Type:      x509util.IntermediateCA,
		Subject:   SubjectDescriptor{CommonName: cn},
		PublicKey: kp.PublicKey,
		Issuer:    &IssuerContext{PrivateKey: parentKey.PrivateKey, Certificate: parent.Certificate},
	})
	if err != nil {
		t.Fatalf("Sign(intermediate %q) error = %v", cn, err)
	}
	return cert
}

func issueServer(t *testing.T, s *Signer, parent *Certificate, parentKey, kp *pkicrypto.KeyPair, cn string, sans ...x509util.GeneralName) *Certificate {
	t.Helper()
	cert, err := s.Sign(SignRequest{
		Type:      x509util.Server,
		Subject:   SubjectDescriptor{CommonName: cn, SubjectAltNames: sans},
		PublicKey: kp.PublicKey,
		Issuer:    &IssuerContext{PrivateKey: parentKey.PrivateKey, Certificate: parent.Certificate},
	})
	if err != nil {
		t.Fatalf("Sign(server %q) error = %v", cn, err)
	}
	return cert
}
