package x509util

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"net"
	"net/netip"
	"testing"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
)

func TestF_CSR_CreateParse_AllSigningFamilies(t *testing.T) {
	algs := []pkicrypto.KeyAlgorithm{
		pkicrypto.RSA{Bits: 2048},
		pkicrypto.ECDSA{Curve: pkicrypto.P256},
		pkicrypto.ECDSA{Curve: pkicrypto.P521},
		pkicrypto.Ed25519{},
		pkicrypto.Ed448{},
		pkicrypto.Falcon{Params: pkicrypto.Falcon512},
		pkicrypto.MLDSA{Params: pkicrypto.MLDSA44},
		pkicrypto.MLDSA{Params: pkicrypto.MLDSA87},
		pkicrypto.SLHDSA{Params: pkicrypto.SLHDSASHA2_128f},
	}
	sans := []GeneralName{
		DNSName("app.example.com"),
		IPName(netip.MustParseAddr("192.0.2.7")),
		EmailName("ops@example.com"),
		URIName("spiffe://example.com/app"),
	}

	for _, alg := range algs {
		t.Run("[Unit] "+alg.Name(), func(t *testing.T) {
			kp, err := pkicrypto.GenerateKeyPair(alg)
			if err != nil {
				t.Fatalf("GenerateKeyPair() error = %v", err)
			}
			der, err := CreateCSR(rand.Reader, CSRRequest{CommonName: "app.example.com", SubjectAltNames: sans}, kp.PrivateKey)
			if err != nil {
				t.Fatalf("CreateCSR() error = %v", err)
			}
			csr, err := ParseCSR(der)
			if err != nil {
				t.Fatalf("ParseCSR() error = %v", err)
			}
			if csr.CommonName != "app.example.com" {
				t.Errorf("CommonName = %q", csr.CommonName)
			}
			if csr.KeyAlgorithm.Name() != alg.Name() {
				t.Errorf("KeyAlgorithm = %s, want %s", csr.KeyAlgorithm.Name(), alg.Name())
			}
			if !pkicrypto.PublicKeysEqual(csr.PublicKey, kp.PublicKey) {
				t.Error("public key does not round-trip")
			}
			if len(csr.SubjectAltNames) != len(sans) {
				t.Fatalf("SANs = %v, want %v", csr.SubjectAltNames, sans)
			}
			for i := range sans {
				if csr.SubjectAltNames[i] != sans[i] {
					t.Errorf("SAN[%d] = %v, want %v", i, csr.SubjectAltNames[i], sans[i])
				}
			}
		})
	}
}

func TestU_ParseCSR_TamperedSignature(t *testing.T) {
	kp, err := pkicrypto.GenerateKeyPair(pkicrypto.MLDSA{Params: pkicrypto.MLDSA44})
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	der, err := CreateCSR(rand.Reader, CSRRequest{CommonName: "tamper.example"}, kp.PrivateKey)
	if err != nil {
		t.Fatalf("CreateCSR() error = %v", err)
	}
	der[len(der)-1] ^= 0x01

	if _, err := ParseCSR(der); !errors.Is(err, ErrCSRSignature) {
		t.Errorf("ParseCSR() error = %v, want ErrCSRSignature", err)
	}
}

func TestU_ParseCSR_TamperedSubject(t *testing.T) {
	kp, err := pkicrypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519() error = %v", err)
	}
	der, err := CreateCSR(rand.Reader, CSRRequest{CommonName: "aaaa.example"}, kp.PrivateKey)
	if err != nil {
		t.Fatalf("CreateCSR() error = %v", err)
	}
	for i := 0; i+4 <= len(der); i++ {
		if string(der[i:i+4]) == "aaaa" {
			copy(der[i:], "bbbb")
			break
		}
	}
	if _, err := ParseCSR(der); !errors.Is(err, ErrCSRSignature) {
		t.Errorf("ParseCSR() error = %v, want ErrCSRSignature", err)
	}
}

func TestU_CreateCSR_MLKEMUnsupported(t *testing.T) {
	kp, err := pkicrypto.GenerateMLKEM(pkicrypto.MLKEM768)
	if err != nil {
		t.Fatalf("GenerateMLKEM() error = %v", err)
	}
	_, err = CreateCSR(rand.Reader, CSRRequest{CommonName: "kem.example"}, kp.PrivateKey)
	if !errors.Is(err, pkicrypto.ErrUnsupportedOperation) {
		t.Errorf("CreateCSR() error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestU_ParseCSR_StandardLibraryRequest(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: "legacy.example", Organization: []string{"Acme"}},
		DNSNames:           []string{"legacy.example", "www.legacy.example"},
		IPAddresses:        []net.IP{net.ParseIP("198.51.100.1")},
		SignatureAlgorithm: x509.ECDSAWithSHA384,
	}, key)
	if err != nil {
		t.Fatalf("CreateCertificateRequest() error = %v", err)
	}

	csr, err := ParseCSR(der)
	if err != nil {
		t.Fatalf("ParseCSR() error = %v", err)
	}
	if csr.CommonName != "legacy.example" {
		t.Errorf("CommonName = %q", csr.CommonName)
	}
	if o, _ := csr.Subject.Get("organizationName"); o != "Acme" {
		t.Errorf("O = %q, want Acme", o)
	}
	want := []GeneralName{DNSName("legacy.example"), DNSName("www.legacy.example"), IPName(netip.MustParseAddr("198.51.100.1"))}
	if len(csr.SubjectAltNames) != len(want) {
		t.Fatalf("SANs = %v, want %v", csr.SubjectAltNames, want)
	}
	for i := range want {
		if csr.SubjectAltNames[i] != want[i] {
			t.Errorf("SAN[%d] = %v, want %v", i, csr.SubjectAltNames[i], want[i])
		}
	}
}

func TestU_ParseCSR_Malformed(t *testing.T) {
	for name, der := range map[string][]byte{
		"[Unit] empty":         nil,
		"[Unit] not sequence":  {0x04, 0x00},
		"[Unit] trailing data": {0x30, 0x00, 0x00},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCSR(der); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestU_CSRPEM_RoundTrip(t *testing.T) {
	kp, err := pkicrypto.GenerateEd448()
	if err != nil {
		t.Fatalf("GenerateEd448() error = %v", err)
	}
	der, err := CreateCSR(rand.Reader, CSRRequest{CommonName: "pem.example"}, kp.PrivateKey)
	if err != nil {
		t.Fatalf("CreateCSR() error = %v", err)
	}
	csr, err := ParseCSRPEM(append([]byte("junk\n"), EncodeCSRPEM(der)...))
	if err != nil {
		t.Fatalf("ParseCSRPEM() error = %v", err)
	}
	if csr.CommonName != "pem.example" {
		t.Errorf("CommonName = %q", csr.CommonName)
	}
	if _, err := ParseCSRPEM([]byte("nothing here")); err == nil {
		t.Error("ParseCSRPEM() should fail without a PEM block")
	}

	bad := bytes.Clone(der)
	bad[len(bad)-1] ^= 0xff
	raw, err := DecodeCSRPEM(EncodeCSRPEM(bad))
	if err != nil {
		t.Fatalf("DecodeCSRPEM() error = %v", err)
	}
	if !bytes.Equal(raw, bad) {
		t.Error("DecodeCSRPEM() should return the DER unverified")
	}
	if _, err := ParseCSRPEM(EncodeCSRPEM(bad)); !errors.Is(err, ErrCSRSignature) {
		t.Errorf("ParseCSRPEM(tampered) error = %v, want ErrCSRSignature", err)
	}
}
