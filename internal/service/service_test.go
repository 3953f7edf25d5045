package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vanaheimr/Hermod-sub016/internal/audit"
	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	"github.com/Vanaheimr/Hermod-sub016/internal/config"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/metrics"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fixture struct {
	root   *ca.Certificate
	issuer *credential.Bundle
	svc    *Service
	events *audit.MemoryWriter
	m      *metrics.Metrics
}

func genKey(t *testing.T, alg pkicrypto.KeyAlgorithm) *pkicrypto.KeyPair {
	t.Helper()
	kp, err := pkicrypto.GenerateKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateKeyPair(%s) error = %v", alg.Name(), err)
	}
	return kp
}

func newIssuer(t *testing.T) (*ca.Certificate, *credential.Bundle) {
	t.Helper()
	p256 := pkicrypto.ECDSA{Curve: pkicrypto.P256}
	rootKey, subKey := genKey(t, p256), genKey(t, p256)

	s := ca.New()
	root, err := s.Sign(ca.SignRequest{
		Type:    x509util.RootCA,
		Subject: ca.SubjectDescriptor{CommonName: "Service Root"},
		Issuer:  &ca.IssuerContext{PrivateKey: rootKey.PrivateKey},
	})
	if err != nil {
		t.Fatalf("Sign(root) error = %v", err)
	}
	sub, err := s.Sign(ca.SignRequest{
		Type:      x509util.IntermediateCA,
		Subject:   ca.SubjectDescriptor{CommonName: "Service Issuing"},
		PublicKey: subKey.PublicKey,
		Issuer:    &ca.IssuerContext{PrivateKey: rootKey.PrivateKey, Certificate: root.Certificate},
	})
	if err != nil {
		t.Fatalf("Sign(intermediate) error = %v", err)
	}
	b, err := credential.New(sub.Certificate, subKey.PrivateKey, root.Certificate)
	if err != nil {
		t.Fatalf("credential.New() error = %v", err)
	}
	return root, b
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root, issuer := newIssuer(t)
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	events := audit.NewMemoryWriter()
	svc, err := New(issuer, Options{
		Audit:   audit.NewLogger(events, audit.Actor{Type: "service", ID: "test"}),
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{root: root, issuer: issuer, svc: svc, events: events, m: m}
}

func newCSR(t *testing.T, alg pkicrypto.KeyAlgorithm, cn string, sans ...x509util.GeneralName) []byte {
	t.Helper()
	kp := genKey(t, alg)
	der, err := x509util.CreateCSR(rand.Reader, x509util.CSRRequest{CommonName: cn, SubjectAltNames: sans}, kp.PrivateKey)
	if err != nil {
		t.Fatalf("CreateCSR() error = %v", err)
	}
	return der
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func lastEvent(t *testing.T, w *audit.MemoryWriter) audit.Event {
	t.Helper()
	events := w.Events()
	if len(events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return events[len(events)-1]
}

type failingWriter struct{}

func (failingWriter) Write(*audit.Event) error { return errors.New("disk full") }
func (failingWriter) Close() error             { return nil }
func (failingWriter) LastHash() string         { return audit.GenesisHash }

// =============================================================================
// New Tests
// =============================================================================

func TestU_New(t *testing.T) {
	root, issuer := newIssuer(t)
	leafKey := genKey(t, pkicrypto.Ed25519{})
	leaf, err := ca.New().Sign(ca.SignRequest{
		Type:      x509util.Server,
		Subject:   ca.SubjectDescriptor{CommonName: "leaf.example"},
		PublicKey: leafKey.PublicKey,
		Issuer:    &ca.IssuerContext{PrivateKey: issuer.PrivateKey, Certificate: issuer.Certificate},
	})
	if err != nil {
		t.Fatal(err)
	}
	leafBundle, err := credential.New(leaf.Certificate, leafKey.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	certOnly, err := credential.New(issuer.Certificate, nil, root.Certificate)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		issuer *credential.Bundle
	}{
		{"[Unit] nil bundle", nil},
		{"[Unit] no private key", certOnly},
		{"[Unit] end-entity certificate", leafBundle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.issuer, Options{}); !errors.Is(err, ca.ErrIssuerPolicyViolation) {
				t.Errorf("New() error = %v, want ErrIssuerPolicyViolation", err)
			}
		})
	}

	t.Run("[Unit] defaults", func(t *testing.T) {
		svc, err := New(issuer, Options{})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if svc.Issuer() != issuer.Certificate {
			t.Error("Issuer() should return the bundle certificate")
		}
		if got := len(svc.Chain()); got != 2 {
			t.Errorf("Chain() len = %d, want 2", got)
		}
		if !strings.Contains(strings.Join(svc.Profiles(), ","), "tls-server") {
			t.Errorf("Profiles() = %v, want builtins", svc.Profiles())
		}
		if err := svc.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
}

// =============================================================================
// Issue Tests
// =============================================================================

func TestF_Service_Issue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		profile string
		alg     pkicrypto.KeyAlgorithm
		eku     asn1.ObjectIdentifier
	}{
		{"tls-server", pkicrypto.ECDSA{Curve: pkicrypto.P256}, x509util.OIDExtKeyUsageServerAuth},
		{"tls-client", pkicrypto.Ed25519{}, x509util.OIDExtKeyUsageClientAuth},
		{"tls-server", pkicrypto.MLDSA{Params: pkicrypto.MLDSA44}, x509util.OIDExtKeyUsageServerAuth},
	}
	for _, tt := range tests {
		t.Run("[Functional] "+tt.profile+" "+tt.alg.Name(), func(t *testing.T) {
			csr := newCSR(t, tt.alg, "app.example.com", x509util.DNSName("app.example.com"))
			res, err := f.svc.Issue(ctx, IssueRequest{CSR: csr, Profile: tt.profile})
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			cert := res.Certificate
			if cert.Subject.CommonName != "app.example.com" {
				t.Errorf("CN = %q", cert.Subject.CommonName)
			}
			if cert.IsCA {
				t.Error("end-entity certificate must not be a CA")
			}
			if len(res.Chain) != 2 || res.Chain[0] != f.issuer.Certificate {
				t.Errorf("Chain len = %d", len(res.Chain))
			}
			if got := cert.NotAfter.Sub(cert.NotBefore); got > 31*24*time.Hour {
				t.Errorf("validity = %v, want profile's 30d", got)
			}

			report, err := f.svc.Validate(ctx, ValidateRequest{
				Target:      cert.Certificate,
				RequiredEKU: []asn1.ObjectIdentifier{tt.eku},
			})
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !report.IsValid {
				t.Errorf("issued chain invalid: %v", report.OverallStatus)
			}

			ev := f.events.Events()
			if len(ev) < 2 {
				t.Fatalf("audit events = %d", len(ev))
			}
			issued := ev[len(ev)-2]
			if issued.EventType != audit.EventCertIssued || issued.Result != audit.ResultSuccess {
				t.Errorf("audit event = %s/%s", issued.EventType, issued.Result)
			}
			if issued.Object.Serial != cert.SerialHex() || issued.Context.Profile != tt.profile {
				t.Errorf("audit object = %+v context = %+v", issued.Object, issued.Context)
			}
		})
	}

	out := scrape(t, f.m)
	for _, want := range []string{
		`hermod_certificates_issued_total{profile="tls-server",type="server"} 2`,
		`hermod_certificates_issued_total{profile="tls-client",type="client"} 1`,
		`hermod_chain_validations_total{result="valid"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestF_Service_Issue_Override(t *testing.T) {
	f := newFixture(t)
	csr := newCSR(t, pkicrypto.ECDSA{Curve: pkicrypto.P256}, "ignored.example")
	res, err := f.svc.Issue(context.Background(), IssueRequest{
		CSR:             csr,
		Profile:         "tls-server",
		CommonName:      "api.example.com",
		SubjectAltNames: []x509util.GeneralName{x509util.DNSName("api.example.com")},
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if res.Certificate.Subject.CommonName != "api.example.com" {
		t.Errorf("CN = %q, want override", res.Certificate.Subject.CommonName)
	}
	if len(res.Certificate.DNSNames) != 1 || res.Certificate.DNSNames[0] != "api.example.com" {
		t.Errorf("DNSNames = %v", res.Certificate.DNSNames)
	}
}

func TestU_Service_Issue_Errors(t *testing.T) {
	f := newFixture(t)
	csr := newCSR(t, pkicrypto.ECDSA{Curve: pkicrypto.P256}, "app.example.com")
	tampered := bytes.Clone(csr)
	tampered[len(tampered)-1] ^= 0xff

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		req       IssueRequest
		wantErr   error
		wantEvent audit.EventType
	}{
		{"[Unit] unknown profile", context.Background(), IssueRequest{CSR: csr, Profile: "nope"}, ca.ErrValidation, ""},
		{"[Unit] root profile", context.Background(), IssueRequest{CSR: csr, Profile: "root-ca"}, ca.ErrIssuerPolicyViolation, ""},
		{"[Unit] tampered CSR", context.Background(), IssueRequest{CSR: tampered, Profile: "tls-server"}, ca.ErrCSRVerification, audit.EventCSRRejected},
		{"[Unit] garbage CSR", context.Background(), IssueRequest{CSR: []byte("junk"), Profile: "tls-server"}, ca.ErrCSRVerification, audit.EventCSRRejected},
		{"[Unit] cancelled", cancelled, IssueRequest{CSR: csr, Profile: "tls-server"}, context.Canceled, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.events.Events())
			_, err := f.svc.Issue(tt.ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Issue() error = %v, want %v", err, tt.wantErr)
			}
			after := f.events.Events()
			if tt.wantEvent == "" {
				if len(after) != before {
					t.Errorf("unexpected audit events: %d", len(after)-before)
				}
				return
			}
			ev := lastEvent(t, f.events)
			if ev.EventType != tt.wantEvent || ev.Result != audit.ResultFailure {
				t.Errorf("audit event = %s/%s, want %s/failure", ev.EventType, ev.Result, tt.wantEvent)
			}
		})
	}

	out := scrape(t, f.m)
	for _, want := range []string{
		`hermod_issuance_failures_total{reason="profile"} 1`,
		`hermod_issuance_failures_total{reason="policy"} 1`,
		`hermod_issuance_failures_total{reason="csr"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestU_Service_AuditFailure(t *testing.T) {
	_, issuer := newIssuer(t)
	svc, err := New(issuer, Options{Audit: audit.NewLogger(failingWriter{}, audit.Actor{})})
	if err != nil {
		t.Fatal(err)
	}
	csr := newCSR(t, pkicrypto.ECDSA{Curve: pkicrypto.P256}, "app.example.com")

	t.Run("[Unit] issue", func(t *testing.T) {
		if _, err := svc.Issue(context.Background(), IssueRequest{CSR: csr, Profile: "tls-server"}); err == nil {
			t.Error("Issue() should fail when the audit log cannot be written")
		}
	})

	t.Run("[Unit] rejected CSR keeps cause", func(t *testing.T) {
		_, err := svc.Issue(context.Background(), IssueRequest{CSR: []byte("junk"), Profile: "tls-server"})
		if !errors.Is(err, ca.ErrCSRVerification) {
			t.Errorf("Issue() error = %v, want ErrCSRVerification joined with the audit error", err)
		}
	})

	t.Run("[Unit] validate", func(t *testing.T) {
		if _, err := svc.Validate(context.Background(), ValidateRequest{Target: issuer.Certificate}); err == nil {
			t.Error("Validate() should fail when the audit log cannot be written")
		}
	})
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestU_Service_Validate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	csr := newCSR(t, pkicrypto.ECDSA{Curve: pkicrypto.P256}, "app.example.com")
	res, err := f.svc.Issue(ctx, IssueRequest{CSR: csr, Profile: "tls-server"})
	if err != nil {
		t.Fatal(err)
	}
	leaf := res.Certificate.Certificate
	otherRoot, _ := newIssuer(t)

	t.Run("[Unit] explicit root", func(t *testing.T) {
		report, err := f.svc.Validate(ctx, ValidateRequest{
			Target:        leaf,
			Intermediates: []*x509.Certificate{f.issuer.Certificate},
			Root:          f.root.Certificate,
		})
		if err != nil {
			t.Fatal(err)
		}
		if !report.IsValid || len(report.Elements) != 3 {
			t.Errorf("report valid=%v elements=%d", report.IsValid, len(report.Elements))
		}
	})

	t.Run("[Unit] foreign root", func(t *testing.T) {
		report, err := f.svc.Validate(ctx, ValidateRequest{
			Target:        leaf,
			Intermediates: []*x509.Certificate{f.issuer.Certificate},
			Root:          otherRoot.Certificate,
		})
		if err != nil {
			t.Fatal(err)
		}
		if report.IsValid {
			t.Error("chain to a foreign root should be invalid")
		}
		ev := lastEvent(t, f.events)
		if ev.EventType != audit.EventChainValidated || ev.Result != audit.ResultFailure || len(ev.Context.Status) == 0 {
			t.Errorf("audit event = %+v", ev)
		}
	})

	t.Run("[Unit] expired", func(t *testing.T) {
		report, err := f.svc.Validate(ctx, ValidateRequest{Target: leaf, Time: leaf.NotAfter.Add(time.Hour)})
		if err != nil {
			t.Fatal(err)
		}
		if report.IsValid {
			t.Error("chain should be invalid after NotAfter")
		}
	})

	t.Run("[Unit] wrong purpose", func(t *testing.T) {
		report, err := f.svc.Validate(ctx, ValidateRequest{
			Target:      leaf,
			RequiredEKU: []asn1.ObjectIdentifier{x509util.OIDExtKeyUsageClientAuth},
		})
		if err != nil {
			t.Fatal(err)
		}
		if report.IsValid {
			t.Error("server certificate should not validate for clientAuth")
		}
	})

	t.Run("[Unit] cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := f.svc.Validate(cctx, ValidateRequest{Target: leaf}); !errors.Is(err, context.Canceled) {
			t.Errorf("Validate() error = %v, want context.Canceled", err)
		}
	})

	if out := scrape(t, f.m); !strings.Contains(out, `hermod_chain_validations_total{result="invalid"} 3`) {
		t.Error("invalid validations not counted")
	}
}

// =============================================================================
// Describe Tests
// =============================================================================

func TestU_Describe(t *testing.T) {
	f := newFixture(t)
	csr := newCSR(t, pkicrypto.MLDSA{Params: pkicrypto.MLDSA65}, "pq.example.com",
		x509util.DNSName("pq.example.com"), x509util.EmailName("ops@example.com"))
	res, err := f.svc.Issue(context.Background(), IssueRequest{CSR: csr, Profile: "tls-server"})
	if err != nil {
		t.Fatal(err)
	}

	info, err := Describe(res.Certificate.Certificate)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if info.Serial != res.Certificate.SerialHex() {
		t.Errorf("Serial = %s", info.Serial)
	}
	if info.Subject.CommonName() != "pq.example.com" || info.Issuer.CommonName() != "Service Issuing" {
		t.Errorf("Subject = %q Issuer = %q", info.Subject.CommonName(), info.Issuer.CommonName())
	}
	if info.KeyAlgorithm != "ml-dsa-65" {
		t.Errorf("KeyAlgorithm = %q", info.KeyAlgorithm)
	}
	if info.Scheme == "" || info.IsCA {
		t.Errorf("Scheme = %q IsCA = %v", info.Scheme, info.IsCA)
	}
	if len(info.SubjectAltNames) != 2 || info.SubjectAltNames[1] != x509util.EmailName("ops@example.com") {
		t.Errorf("SubjectAltNames = %v", info.SubjectAltNames)
	}

	caInfo, err := Describe(f.issuer.Certificate)
	if err != nil {
		t.Fatal(err)
	}
	if !caInfo.IsCA {
		t.Error("issuing CA should describe as CA")
	}
}

// =============================================================================
// Open Tests
// =============================================================================

func TestF_Open(t *testing.T) {
	_, issuer := newIssuer(t)
	dir := t.TempDir()
	certPath := filepath.Join(dir, "ca.crt")
	keyPath := filepath.Join(dir, "ca.key")
	if err := issuer.Save(certPath, keyPath); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.CA.CertFile = certPath
	cfg.CA.KeyFile = keyPath
	cfg.Audit.Path = filepath.Join(dir, "audit.log")

	svc, err := Open(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	csr := newCSR(t, pkicrypto.ECDSA{Curve: pkicrypto.P384}, "app.example.com")
	if _, err := svc.Issue(context.Background(), IssueRequest{CSR: csr, Profile: "tls-server"}); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}

	n, err := audit.VerifyChain(cfg.Audit.Path)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if n != 2 {
		t.Errorf("audit events = %d, want CA_LOADED and CERT_ISSUED", n)
	}

	t.Run("[Functional] missing CA", func(t *testing.T) {
		bad := config.Default()
		if _, err := Open(bad, nil, nil); err == nil {
			t.Error("Open() without a CA should fail")
		}
		bad.CA.CertFile = filepath.Join(dir, "absent.crt")
		bad.CA.KeyFile = keyPath
		if _, err := Open(bad, nil, nil); err == nil {
			t.Error("Open() with a missing certificate should fail")
		}
	})
}
