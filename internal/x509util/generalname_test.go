package x509util

import (
	"encoding/asn1"
	"net/netip"
	"strings"
	"testing"
)

func TestU_ParseGeneralName(t *testing.T) {
	tests := []struct {
		in      string
		want    GeneralName
		wantErr bool
	}{
		{"DNS:www.example.com", DNSName("www.example.com"), false},
		{"dns:api.example.com", DNSName("api.example.com"), false},
		{"IP:10.1.2.3", IPName(netip.MustParseAddr("10.1.2.3")), false},
		{"IP:2001:db8::1", IPName(netip.MustParseAddr("2001:db8::1")), false},
		{"2001:db8::2", IPName(netip.MustParseAddr("2001:db8::2")), false},
		{"email:ops@example.com", EmailName("ops@example.com"), false},
		{"URI:https://example.com/x", URIName("https://example.com/x"), false},
		{"host.example", DNSName("host.example"), false},
		{"192.0.2.1", IPName(netip.MustParseAddr("192.0.2.1")), false},
		{"IP:not-an-ip", GeneralName{}, true},
		{"x400:whatever", GeneralName{}, true},
	}
	for _, tt := range tests {
		t.Run("[Unit] "+tt.in, func(t *testing.T) {
			got, err := ParseGeneralName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGeneralName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseGeneralName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestU_GeneralNames_RoundTrip(t *testing.T) {
	in := []GeneralName{
		DNSName("Bücher.Example"),
		DNSName("*.wild.example"),
		IPName(netip.MustParseAddr("::ffff:192.0.2.9")),
		EmailName("a@example.com"),
		URIName("urn:example:1"),
	}
	der, err := MarshalGeneralNames(in)
	if err != nil {
		t.Fatalf("MarshalGeneralNames() error = %v", err)
	}
	out, err := ParseGeneralNames(der)
	if err != nil {
		t.Fatalf("ParseGeneralNames() error = %v", err)
	}
	want := []GeneralName{
		DNSName("xn--bcher-kva.example"),
		DNSName("*.wild.example"),
		IPName(netip.MustParseAddr("192.0.2.9")),
		EmailName("a@example.com"),
		URIName("urn:example:1"),
	}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("name[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestU_MarshalGeneralNames_Invalid(t *testing.T) {
	for _, g := range []GeneralName{
		URIName("relative/path"),
		EmailName("ünicode@example.com"),
		{Kind: GeneralNameKind(99), Value: "x"},
	} {
		if _, err := MarshalGeneralNames([]GeneralName{g}); err == nil {
			t.Errorf("MarshalGeneralNames(%v) should fail", g)
		}
	}
}

func TestU_CertificatePolicies(t *testing.T) {
	oid := asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 99999, 2}

	t.Run("[Unit] round trip", func(t *testing.T) {
		ext, err := CertificatePoliciesExtension([]CertificatePolicy{
			{OID: oid, CPSURI: "https://ca.example/cps", UserNotice: "Issued for testing"},
			{OID: asn1.ObjectIdentifier{2, 5, 29, 32, 0}},
		})
		if err != nil {
			t.Fatalf("CertificatePoliciesExtension() error = %v", err)
		}
		if ext.Critical {
			t.Error("CertificatePolicies should not be critical")
		}
		got, err := ParseCertificatePolicies(ext.Value)
		if err != nil {
			t.Fatalf("ParseCertificatePolicies() error = %v", err)
		}
		if len(got) != 2 || !got[0].OID.Equal(oid) || got[0].CPSURI != "https://ca.example/cps" ||
			got[0].UserNotice != "Issued for testing" || got[1].CPSURI != "" {
			t.Errorf("policies = %+v", got)
		}
	})

	t.Run("[Unit] user notice too long", func(t *testing.T) {
		_, err := CertificatePoliciesExtension([]CertificatePolicy{{OID: oid, UserNotice: strings.Repeat("x", 201)}})
		if err == nil {
			t.Error("expected error for 201-character notice")
		}
	})

	t.Run("[Unit] missing OID", func(t *testing.T) {
		if _, err := CertificatePoliciesExtension([]CertificatePolicy{{CPSURI: "https://x"}}); err == nil {
			t.Error("expected error for policy without OID")
		}
	})
}

func TestU_ParseOID(t *testing.T) {
	oid, err := ParseOID("1.2.840.113549.1.9.14")
	if err != nil || !oid.Equal(OIDExtensionRequest) {
		t.Errorf("ParseOID() = %v, %v", oid, err)
	}
	for _, bad := range []string{"", "1", "1..2", "1.-2", "a.b"} {
		if _, err := ParseOID(bad); err == nil {
			t.Errorf("ParseOID(%q) should fail", bad)
		}
	}
}
