package ca

import (
	"bytes"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"net/netip"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

const day = 24 * time.Hour

// =============================================================================
// Validity
// =============================================================================

func TestU_Sign_Validity(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(fixedClock(t0)))

	rootKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	root := issueRoot(t, s, rootKey, "Validity Root", 0)
	subKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	sub := issueIntermediate(t, s, root, rootKey, subKey, "Validity Sub CA")
	leafKey := mustKeyPair(t, pkicrypto.Ed25519{})

	tests := []struct {
		name     string
		typ      x509util.CertificateType
		lifetime time.Duration
		want     time.Duration
	}{
		{"[Unit] root default", x509util.RootCA, 0, 3650 * day},
		{"[Unit] root custom", x509util.RootCA, 20 * 365 * day, 20 * 365 * day},
		{"[Unit] intermediate default", x509util.IntermediateCA, 0, 1825 * day},
		{"[Unit] intermediate custom", x509util.IntermediateCA, 400 * day, 400 * day},
		{"[Unit] server default", x509util.Server, 0, 30 * day},
		{"[Unit] server custom", x509util.Server, 90 * day, 90 * day},
		{"[Unit] client default", x509util.Client, 0, 30 * day},
		{"[Unit] client custom", x509util.Client, time.Hour, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := SignRequest{
				Type:     tt.typ,
				Subject:  SubjectDescriptor{CommonName: "validity.example.com"},
				Lifetime: tt.lifetime,
			}
			switch tt.typ {
			case x509util.RootCA:
				req.Issuer = &IssuerContext{PrivateKey: rootKey.PrivateKey}
			case x509util.IntermediateCA:
				req.PublicKey = subKey.PublicKey
				req.Issuer = &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate}
			default:
				req.PublicKey = leafKey.PublicKey
				req.Issuer = &IssuerContext{PrivateKey: subKey.PrivateKey, Certificate: sub.Certificate}
			}

			cert, err := s.Sign(req)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if !cert.NotBefore.Equal(t0.Add(-ClockSkew)) {
				t.Errorf("NotBefore = %v, want %v", cert.NotBefore, t0.Add(-ClockSkew))
			}
			if !cert.NotAfter.Equal(t0.Add(tt.want)) {
				t.Errorf("NotAfter = %v, want %v", cert.NotAfter, t0.Add(tt.want))
			}
			if !cert.NotAfter.After(cert.NotBefore) {
				t.Error("NotAfter must be after NotBefore")
			}
		})
	}
}

func TestU_Sign_SubSecondLifetime(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 700_000_000, time.UTC)
	s := New(WithClock(fixedClock(t0)))
	rootKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})

	tests := []struct {
		name     string
		lifetime time.Duration
		wantErr  bool
		want     time.Time
	}{
		{"[Unit] truncated below now", 200 * time.Millisecond, true, time.Time{}},
		{"[Unit] truncated to same second", 250 * time.Millisecond, true, time.Time{}},
		{"[Unit] spans next second", 1500 * time.Millisecond, false, time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := s.Sign(SignRequest{
				Type:     x509util.RootCA,
				Subject:  SubjectDescriptor{CommonName: "Sub-second Root"},
				Lifetime: tt.lifetime,
				Issuer:   &IssuerContext{PrivateKey: rootKey.PrivateKey},
			})
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Sign() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if !cert.NotAfter.Equal(tt.want) {
				t.Errorf("NotAfter = %v, want %v", cert.NotAfter, tt.want)
			}
			if cert.NotAfter.Before(t0) || t0.Before(cert.NotBefore) {
				t.Errorf("issuance time %v outside [%v, %v]", t0, cert.NotBefore, cert.NotAfter)
			}
		})
	}
}

func TestU_Sign_ClampToIssuer(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(fixedClock(t0)))

	rootKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	root := issueRoot(t, s, rootKey, "Short Root", 10*day)

	t.Run("[Unit] Clamp: intermediate", func(t *testing.T) {
		subKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
		sub := issueIntermediate(t, s, root, rootKey, subKey, "Clamped Sub CA")
		if !sub.NotAfter.Equal(root.NotAfter) {
			t.Errorf("NotAfter = %v, want issuer NotAfter %v", sub.NotAfter, root.NotAfter)
		}
	})

	t.Run("[Unit] Clamp: server", func(t *testing.T) {
		leafKey := mustKeyPair(t, pkicrypto.Ed25519{})
		leaf := issueServer(t, s, root, rootKey, leafKey, "clamped.example.com")
		if !leaf.NotAfter.Equal(root.NotAfter) {
			t.Errorf("NotAfter = %v, want issuer NotAfter %v", leaf.NotAfter, root.NotAfter)
		}
	})

	t.Run("[Unit] Clamp: shorter lifetime kept", func(t *testing.T) {
		leafKey := mustKeyPair(t, pkicrypto.Ed25519{})
		leaf, err := s.Sign(SignRequest{
			Type:      x509util.Client,
			Subject:   SubjectDescriptor{CommonName: "short"},
			PublicKey: leafKey.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate},
			Lifetime:  2 * day,
		})
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if !leaf.NotAfter.Equal(t0.Add(2 * day)) {
			t.Errorf("NotAfter = %v, want %v", leaf.NotAfter, t0.Add(2*day))
		}
	})

	t.Run("[Unit] Clamp: expired issuer", func(t *testing.T) {
		later := New(WithClock(fixedClock(t0.Add(11 * day))))
		leafKey := mustKeyPair(t, pkicrypto.Ed25519{})
		_, err := later.Sign(SignRequest{
			Type:      x509util.Server,
			Subject:   SubjectDescriptor{CommonName: "late.example.com"},
			PublicKey: leafKey.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate},
		})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Sign() error = %v, want ErrValidation", err)
		}
	})
}

// =============================================================================
// Root and self-signed certificates
// =============================================================================

func TestU_Sign_RootIsSelfIssued(t *testing.T) {
	s := New()
	for _, alg := range []pkicrypto.KeyAlgorithm{
		pkicrypto.ECDSA{Curve: pkicrypto.P384},
		pkicrypto.Ed25519{},
		pkicrypto.MLDSA{Params: pkicrypto.MLDSA65},
	} {
		t.Run("[Unit] Root: "+alg.Name(), func(t *testing.T) {
			kp := mustKeyPair(t, alg)
			root := issueRoot(t, s, kp, "Root "+alg.Name(), 0)

			if !bytes.Equal(root.RawIssuer, root.RawSubject) {
				t.Error("root issuer must equal subject")
			}
			if !root.IsCA || !root.BasicConstraintsValid {
				t.Error("root must be a CA")
			}
			if len(root.SubjectKeyId) == 0 || !bytes.Equal(root.AuthorityKeyId, root.SubjectKeyId) {
				t.Errorf("root AKI = %x, SKI = %x", root.AuthorityKeyId, root.SubjectKeyId)
			}
			if err := verifyIssuedBy(root.Certificate, root.Certificate); err != nil {
				t.Errorf("root self-signature: %v", err)
			}
			subject, issuer, err := root.DistinguishedNames()
			if err != nil {
				t.Fatalf("DistinguishedNames() error = %v", err)
			}
			if subject.CommonName() != "Root "+alg.Name() || issuer.CommonName() != subject.CommonName() {
				t.Errorf("subject CN = %q, issuer CN = %q", subject.CommonName(), issuer.CommonName())
			}
		})
	}
}

// A self-signed leaf must carry an AuthorityKeyIdentifier pointing at its
// own key, otherwise path builders that match AKI to SKI cannot anchor it.
func TestU_Sign_SelfSignedLeafAKI(t *testing.T) {
	s := New()
	for _, typ := range []x509util.CertificateType{x509util.Server, x509util.Client} {
		t.Run("[Unit] Self-signed: "+typ.String(), func(t *testing.T) {
			kp := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
			cert, err := s.Sign(SignRequest{
				Type:    typ,
				Subject: SubjectDescriptor{CommonName: "self.example.com"},
				Issuer:  &IssuerContext{PrivateKey: kp.PrivateKey},
			})
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if len(cert.AuthorityKeyId) == 0 {
				t.Fatal("self-signed leaf has no AuthorityKeyIdentifier")
			}
			if !bytes.Equal(cert.AuthorityKeyId, cert.SubjectKeyId) {
				t.Errorf("AKI = %x, want SKI %x", cert.AuthorityKeyId, cert.SubjectKeyId)
			}
			if cert.IsCA {
				t.Error("leaf must not be a CA")
			}
			if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
				t.Error("self-signed leaf issuer must equal subject")
			}
			report := ValidateChain(cert.Certificate, nil, cert.Certificate, ValidateOptions{})
			if !report.IsValid {
				t.Errorf("self-signed leaf anchored on itself: %v", report.OverallStatus)
			}
		})
	}
}

func TestU_Sign_ServerDefaultSAN(t *testing.T) {
	s := New()
	rootKey := mustKeyPair(t, pkicrypto.Ed25519{})
	root := issueRoot(t, s, rootKey, "SAN Root", 0)

	t.Run("[Unit] SAN: defaults to common name", func(t *testing.T) {
		leaf := issueServer(t, s, root, rootKey, mustKeyPair(t, pkicrypto.Ed25519{}), "www.example.com")
		if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "www.example.com" {
			t.Errorf("DNSNames = %v", leaf.DNSNames)
		}
	})

	t.Run("[Unit] SAN: explicit names", func(t *testing.T) {
		leaf := issueServer(t, s, root, rootKey, mustKeyPair(t, pkicrypto.Ed25519{}), "api",
			x509util.DNSName("api.example.com"),
			x509util.IPName(netip.MustParseAddr("192.0.2.10")))
		if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "api.example.com" {
			t.Errorf("DNSNames = %v", leaf.DNSNames)
		}
		if len(leaf.IPAddresses) != 1 || leaf.IPAddresses[0].String() != "192.0.2.10" {
			t.Errorf("IPAddresses = %v", leaf.IPAddresses)
		}
	})
}

// =============================================================================
// Signature schemes and key families
// =============================================================================

func TestU_Sign_SchemeFollowsIssuerKey(t *testing.T) {
	s := New()
	tests := []struct {
		name string
		alg  pkicrypto.KeyAlgorithm
		want pkicrypto.SignatureScheme
	}{
		{"[Unit] RSA-2048", pkicrypto.RSA{Bits: 2048}, pkicrypto.SchemeRSAPSSSHA256},
		{"[Unit] P-256", pkicrypto.ECDSA{Curve: pkicrypto.P256}, pkicrypto.SchemeECDSASHA256},
		{"[Unit] P-384", pkicrypto.ECDSA{Curve: pkicrypto.P384}, pkicrypto.SchemeECDSASHA384},
		{"[Unit] P-521", pkicrypto.ECDSA{Curve: pkicrypto.P521}, pkicrypto.SchemeECDSASHA512},
		{"[Unit] Ed25519", pkicrypto.Ed25519{}, pkicrypto.SchemeEd25519},
		{"[Unit] Ed448", pkicrypto.Ed448{}, pkicrypto.SchemeEd448},
		{"[Unit] ML-DSA-44", pkicrypto.MLDSA{Params: pkicrypto.MLDSA44}, pkicrypto.SchemeMLDSA44},
		{"[Unit] ML-DSA-87", pkicrypto.MLDSA{Params: pkicrypto.MLDSA87}, pkicrypto.SchemeMLDSA87},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := issueRoot(t, s, mustKeyPair(t, tt.alg), "Scheme Root", 0)
			if root.Scheme != tt.want {
				t.Errorf("Scheme = %v, want %v", root.Scheme, tt.want)
			}
			parsed, err := ParseCertificate(root.DER())
			if err != nil {
				t.Fatalf("ParseCertificate() error = %v", err)
			}
			if parsed.Scheme != tt.want {
				t.Errorf("parsed Scheme = %v, want %v", parsed.Scheme, tt.want)
			}
		})
	}
}

func TestF_Sign_SubjectKeyRoundTrip(t *testing.T) {
	s := New()
	issuerKey := mustKeyPair(t, pkicrypto.Ed25519{})
	issuer := issueRoot(t, s, issuerKey, "Round Trip Root", 0)

	algs := []pkicrypto.KeyAlgorithm{
		pkicrypto.RSA{Bits: 2048},
		pkicrypto.ECDSA{Curve: pkicrypto.P256},
		pkicrypto.ECDSA{Curve: pkicrypto.P384},
		pkicrypto.ECDSA{Curve: pkicrypto.P521},
		pkicrypto.Ed25519{},
		pkicrypto.Ed448{},
		pkicrypto.Falcon{Params: pkicrypto.Falcon512},
		pkicrypto.MLKEM{Params: pkicrypto.MLKEM512},
		pkicrypto.MLKEM{Params: pkicrypto.MLKEM768},
		pkicrypto.MLKEM{Params: pkicrypto.MLKEM1024},
		pkicrypto.MLDSA{Params: pkicrypto.MLDSA44},
		pkicrypto.MLDSA{Params: pkicrypto.MLDSA65},
		pkicrypto.MLDSA{Params: pkicrypto.MLDSA87},
		pkicrypto.SLHDSA{Params: pkicrypto.SLHDSASHA2_128f},
	}
	for _, alg := range algs {
		t.Run("[Functional] Round trip: "+alg.Name(), func(t *testing.T) {
			kp := mustKeyPair(t, alg)
			cert, err := s.Sign(SignRequest{
				Type:      x509util.Client,
				Subject:   SubjectDescriptor{CommonName: "client " + alg.Name()},
				PublicKey: kp.PublicKey,
				Issuer:    &IssuerContext{PrivateKey: issuerKey.PrivateKey, Certificate: issuer.Certificate},
			})
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}

			parsed, err := ParseCertificate(cert.DER())
			if err != nil {
				t.Fatalf("ParseCertificate() error = %v", err)
			}
			if parsed.KeyAlgorithm.Name() != alg.Name() {
				t.Errorf("KeyAlgorithm = %s, want %s", parsed.KeyAlgorithm.Name(), alg.Name())
			}
			if !pkicrypto.PublicKeysEqual(parsed.Key, kp.PublicKey) {
				t.Error("decoded subject key differs from the generated key")
			}
			if err := verifyIssuedBy(parsed.Certificate, issuer.Certificate); err != nil {
				t.Errorf("signature does not verify: %v", err)
			}
		})
	}
}

// ML-KEM keys cannot sign, so every path that would sign with one fails
// with ErrUnsupportedOperation.
func TestU_Sign_MLKEMUnsupported(t *testing.T) {
	s := New()
	kem := mustKeyPair(t, pkicrypto.MLKEM{Params: pkicrypto.MLKEM768})
	rootKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	root := issueRoot(t, s, rootKey, "KEM Test Root", 0)
	subject := mustKeyPair(t, pkicrypto.Ed25519{})

	tests := []struct {
		name string
		req  SignRequest
	}{
		{"[Unit] ML-KEM root", SignRequest{
			Type:    x509util.RootCA,
			Subject: SubjectDescriptor{CommonName: "KEM Root"},
			Issuer:  &IssuerContext{PrivateKey: kem.PrivateKey},
		}},
		{"[Unit] ML-KEM issuing intermediate", SignRequest{
			Type:      x509util.IntermediateCA,
			Subject:   SubjectDescriptor{CommonName: "Sub"},
			PublicKey: subject.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: kem.PrivateKey, Certificate: root.Certificate},
		}},
		{"[Unit] ML-KEM intermediate subject", SignRequest{
			Type:      x509util.IntermediateCA,
			Subject:   SubjectDescriptor{CommonName: "KEM Sub"},
			PublicKey: kem.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate},
		}},
		{"[Unit] ML-KEM issuing server", SignRequest{
			Type:      x509util.Server,
			Subject:   SubjectDescriptor{CommonName: "kem.example.com"},
			PublicKey: subject.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: kem.PrivateKey, Certificate: root.Certificate},
		}},
		{"[Unit] ML-KEM issuing client", SignRequest{
			Type:      x509util.Client,
			Subject:   SubjectDescriptor{CommonName: "kem client"},
			PublicKey: subject.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: kem.PrivateKey, Certificate: root.Certificate},
		}},
		{"[Unit] ML-KEM self-signed server", SignRequest{
			Type:    x509util.Server,
			Subject: SubjectDescriptor{CommonName: "self.kem.example.com"},
			Issuer:  &IssuerContext{PrivateKey: kem.PrivateKey},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sign(tt.req)
			if !errors.Is(err, ErrUnsupportedOperation) {
				t.Errorf("Sign() error = %v, want ErrUnsupportedOperation", err)
			}
		})
	}

	t.Run("[Unit] ML-KEM signing a CSR", func(t *testing.T) {
		csr, err := x509util.CreateCSR(rand.Reader, x509util.CSRRequest{CommonName: "csr.example.com"}, subject.PrivateKey)
		if err != nil {
			t.Fatalf("CreateCSR() error = %v", err)
		}
		_, err = s.SignCSR(csr, SignRequest{
			Type:   x509util.Server,
			Issuer: &IssuerContext{PrivateKey: kem.PrivateKey, Certificate: root.Certificate},
		})
		if !errors.Is(err, ErrUnsupportedOperation) {
			t.Errorf("SignCSR() error = %v, want ErrUnsupportedOperation", err)
		}
	})

	t.Run("[Unit] ML-KEM creating a CSR", func(t *testing.T) {
		_, err := x509util.CreateCSR(rand.Reader, x509util.CSRRequest{CommonName: "kem"}, kem.PrivateKey)
		if !errors.Is(err, ErrUnsupportedOperation) {
			t.Errorf("CreateCSR() error = %v, want ErrUnsupportedOperation", err)
		}
	})

	t.Run("[Unit] ML-KEM leaf subject is allowed", func(t *testing.T) {
		cert, err := s.Sign(SignRequest{
			Type:      x509util.Server,
			Subject:   SubjectDescriptor{CommonName: "kem-leaf.example.com"},
			PublicKey: kem.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate},
		})
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if cert.KeyUsage != x509.KeyUsageKeyEncipherment {
			t.Errorf("KeyUsage = %v, want keyEncipherment only", cert.KeyUsage)
		}
	})
}

// =============================================================================
// Issuer policy and request validation
// =============================================================================

func TestU_Sign_IssuerPolicy(t *testing.T) {
	s := New()
	rootKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	root := issueRoot(t, s, rootKey, "Policy Root", 0)
	otherKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	subject := mustKeyPair(t, pkicrypto.Ed25519{})

	leafKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	leaf := issueServer(t, s, root, rootKey, leafKey, "not-a-ca.example.com")

	tests := []struct {
		name string
		req  SignRequest
	}{
		{"[Unit] nil issuer", SignRequest{
			Type:      x509util.Server,
			Subject:   SubjectDescriptor{CommonName: "a.example.com"},
			PublicKey: subject.PublicKey,
		}},
		{"[Unit] non-CA issuer", SignRequest{
			Type:      x509util.Client,
			Subject:   SubjectDescriptor{CommonName: "client"},
			PublicKey: subject.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: leafKey.PrivateKey, Certificate: leaf.Certificate},
		}},
		{"[Unit] key does not match issuer certificate", SignRequest{
			Type:      x509util.Server,
			Subject:   SubjectDescriptor{CommonName: "b.example.com"},
			PublicKey: subject.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: otherKey.PrivateKey, Certificate: root.Certificate},
		}},
		{"[Unit] intermediate without issuer certificate", SignRequest{
			Type:      x509util.IntermediateCA,
			Subject:   SubjectDescriptor{CommonName: "Orphan Sub"},
			PublicKey: rootKey.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: rootKey.PrivateKey},
		}},
		{"[Unit] root with issuer certificate", SignRequest{
			Type:    x509util.RootCA,
			Subject: SubjectDescriptor{CommonName: "Second Root"},
			Issuer:  &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate},
		}},
		{"[Unit] self-signed with foreign subject key", SignRequest{
			Type:      x509util.RootCA,
			Subject:   SubjectDescriptor{CommonName: "Mismatched Root"},
			PublicKey: otherKey.PublicKey,
			Issuer:    &IssuerContext{PrivateKey: rootKey.PrivateKey},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sign(tt.req)
			if !errors.Is(err, ErrIssuerPolicyViolation) {
				t.Errorf("Sign() error = %v, want ErrIssuerPolicyViolation", err)
			}
			var caErr *CAError
			if !errors.As(err, &caErr) || caErr.Op != "sign" {
				t.Errorf("Sign() error %T is not a sign CAError", err)
			}
		})
	}
}

func TestU_Sign_Validation(t *testing.T) {
	rootKey := mustKeyPair(t, pkicrypto.Ed25519{})
	root := issueRoot(t, New(), rootKey, "Validation Root", 0)
	subject := mustKeyPair(t, pkicrypto.Ed25519{})
	issuer := &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate}

	tests := []struct {
		name   string
		signer *Signer
		req    SignRequest
	}{
		{"[Unit] empty common name", New(), SignRequest{
			Type:      x509util.Client,
			PublicKey: subject.PublicKey,
			Issuer:    issuer,
		}},
		{"[Unit] negative lifetime", New(), SignRequest{
			Type:      x509util.Client,
			Subject:   SubjectDescriptor{CommonName: "past"},
			PublicKey: subject.PublicKey,
			Issuer:    issuer,
			Lifetime:  -time.Hour,
		}},
		{"[Unit] unknown type", New(), SignRequest{
			Type:      x509util.CertificateType(99),
			Subject:   SubjectDescriptor{CommonName: "odd"},
			PublicKey: subject.PublicKey,
			Issuer:    issuer,
		}},
		{"[Unit] short serial", New(WithSerialBytes(4)), SignRequest{
			Type:      x509util.Client,
			Subject:   SubjectDescriptor{CommonName: "serial"},
			PublicKey: subject.PublicKey,
			Issuer:    issuer,
		}},
		{"[Unit] missing subject key", New(), SignRequest{
			Type:    x509util.Client,
			Subject: SubjectDescriptor{CommonName: "nokey"},
			Issuer:  issuer,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.signer.Sign(tt.req); !errors.Is(err, ErrValidation) {
				t.Errorf("Sign() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestU_Sign_SerialsDiffer(t *testing.T) {
	s := New()
	kp := mustKeyPair(t, pkicrypto.Ed25519{})
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		cert := issueRoot(t, s, kp, "Serial Root", 0)
		if cert.SerialNumber.Sign() <= 0 || cert.SerialNumber.BitLen() > DefaultSerialBytes*8-1 {
			t.Fatalf("serial %s out of range", cert.SerialHex())
		}
		if seen[cert.SerialHex()] {
			t.Fatalf("duplicate serial %s", cert.SerialHex())
		}
		seen[cert.SerialHex()] = true
	}
}

// =============================================================================
// CSR signing
// =============================================================================

func TestF_Sign_CSR(t *testing.T) {
	s := New()
	rootKey := mustKeyPair(t, pkicrypto.MLDSA{Params: pkicrypto.MLDSA65})
	root := issueRoot(t, s, rootKey, "CSR Root", 0)
	issuer := &IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate}

	leafKey := mustKeyPair(t, pkicrypto.ECDSA{Curve: pkicrypto.P256})
	csr, err := x509util.CreateCSR(rand.Reader, x509util.CSRRequest{
		CommonName:      "csr.example.com",
		SubjectAltNames: []x509util.GeneralName{x509util.DNSName("alt.example.com")},
	}, leafKey.PrivateKey)
	if err != nil {
		t.Fatalf("CreateCSR() error = %v", err)
	}

	t.Run("[Functional] SignCSR: subject taken from request", func(t *testing.T) {
		cert, err := s.SignCSR(csr, SignRequest{Type: x509util.Server, Issuer: issuer})
		if err != nil {
			t.Fatalf("SignCSR() error = %v", err)
		}
		if cert.Subject.CommonName != "csr.example.com" {
			t.Errorf("CN = %q", cert.Subject.CommonName)
		}
		if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "alt.example.com" {
			t.Errorf("DNSNames = %v", cert.DNSNames)
		}
		if !pkicrypto.PublicKeysEqual(cert.Key, leafKey.PublicKey) {
			t.Error("certificate key differs from CSR key")
		}
	})

	t.Run("[Unit] SignCSR: explicit subject wins", func(t *testing.T) {
		cert, err := s.SignCSR(csr, SignRequest{
			Type:    x509util.Client,
			Subject: SubjectDescriptor{CommonName: "override"},
			Issuer:  issuer,
		})
		if err != nil {
			t.Fatalf("SignCSR() error = %v", err)
		}
		if cert.Subject.CommonName != "override" {
			t.Errorf("CN = %q, want override", cert.Subject.CommonName)
		}
	})

	t.Run("[Unit] SignCSR: tampered signature", func(t *testing.T) {
		bad := bytes.Clone(csr)
		bad[len(bad)-1] ^= 0xff
		_, err := s.SignCSR(bad, SignRequest{Type: x509util.Server, Issuer: issuer})
		if !errors.Is(err, ErrCSRVerification) {
			t.Errorf("SignCSR() error = %v, want ErrCSRVerification", err)
		}
		var caErr *CAError
		if !errors.As(err, &caErr) || caErr.Op != "sign-csr" {
			t.Errorf("SignCSR() error %v is not a sign-csr CAError", err)
		}
	})

	t.Run("[Unit] SignCSR: garbage", func(t *testing.T) {
		_, err := s.SignCSR([]byte("not a csr"), SignRequest{Type: x509util.Server, Issuer: issuer})
		if !errors.Is(err, ErrCSRVerification) {
			t.Errorf("SignCSR() error = %v, want ErrCSRVerification", err)
		}
	})
}

// =============================================================================
// Logging
// =============================================================================

func TestU_Sign_LogsIssuance(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(WithLogger(zap.New(core)))
	issueRoot(t, s, mustKeyPair(t, pkicrypto.Ed25519{}), "Logged Root", 0)

	entries := logs.FilterMessage("certificate issued").All()
	if len(entries) != 1 {
		t.Fatalf("got %d issuance entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "root-ca" || fields["subject"] != "Logged Root" {
		t.Errorf("fields = %v", fields)
	}
	if fields["self_signed"] != true {
		t.Errorf("self_signed = %v", fields["self_signed"])
	}
}
