package x509util

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"strings"
	"time"
)

type dnAttribute struct {
	short string
	long  string
	oid   asn1.ObjectIdentifier
}

var dnAttributes = []dnAttribute{
	{"CN", "commonName", asn1.ObjectIdentifier{2, 5, 4, 3}},
	{"SN", "surname", asn1.ObjectIdentifier{2, 5, 4, 4}},
	{"SerialNumber", "serialNumber", asn1.ObjectIdentifier{2, 5, 4, 5}},
	{"C", "countryName", asn1.ObjectIdentifier{2, 5, 4, 6}},
	{"L", "localityName", asn1.ObjectIdentifier{2, 5, 4, 7}},
	{"ST", "stateOrProvinceName", asn1.ObjectIdentifier{2, 5, 4, 8}},
	{"Street", "streetAddress", asn1.ObjectIdentifier{2, 5, 4, 9}},
	{"O", "organizationName", asn1.ObjectIdentifier{2, 5, 4, 10}},
	{"OU", "organizationalUnitName", asn1.ObjectIdentifier{2, 5, 4, 11}},
	{"T", "title", asn1.ObjectIdentifier{2, 5, 4, 12}},
	{"GN", "givenName", asn1.ObjectIdentifier{2, 5, 4, 42}},
	{"Pseudonym", "pseudonym", asn1.ObjectIdentifier{2, 5, 4, 65}},
	{"Role", "role", asn1.ObjectIdentifier{2, 5, 4, 72}},
	{"E", "emailAddress", asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}},
	{"DC", "domainComponent", asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 25}},
	{"UID", "userId", asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}},
	{"DateOfBirth", "dateOfBirth", asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 9, 1}},
}

var dnByName = func() map[string]*dnAttribute {
	m := make(map[string]*dnAttribute, 2*len(dnAttributes)+4)
	for i := range dnAttributes {
		a := &dnAttributes[i]
		m[normalizeName(a.short)] = a
		m[normalizeName(a.long)] = a
	}
	// Common aliases seen in OpenSSL output.
	m["email"] = m["e"]
	m["s"] = m["st"]
	return m
}()

func dnAttributeForOID(oid asn1.ObjectIdentifier) *dnAttribute {
	for i := range dnAttributes {
		if dnAttributes[i].oid.Equal(oid) {
			return &dnAttributes[i]
		}
	}
	return nil
}

// normalizeName folds a human-entered identifier for table lookup:
// lower case, without "-", "_" or spaces.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch r {
		case '-', '_', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// DistinguishedName is a read-only view over a parsed X.500 name.
type DistinguishedName struct {
	rdns pkix.RDNSequence
}

// NewDistinguishedName wraps an RDN sequence. The sequence is copied.
func NewDistinguishedName(rdns pkix.RDNSequence) *DistinguishedName {
	cp := make(pkix.RDNSequence, len(rdns))
	for i, rdn := range rdns {
		cp[i] = append(pkix.RelativeDistinguishedNameSET(nil), rdn...)
	}
	return &DistinguishedName{rdns: cp}
}

// ParseDistinguishedName decodes a DER Name, such as
// x509.Certificate.RawSubject.
func ParseDistinguishedName(der []byte) (*DistinguishedName, error) {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(der, &rdns)
	if err != nil {
		return nil, fmt.Errorf("malformed distinguished name: %w", err)
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing data after distinguished name")
	}
	return &DistinguishedName{rdns: rdns}, nil
}

// ParseDistinguishedNameString parses the RFC 4514 form "CN=a,O=b" (least
// significant first) or the OpenSSL form "/O=b/CN=a" (encoding order).
// A backslash escapes the next character.
func ParseDistinguishedNameString(s string) (*DistinguishedName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty distinguished name")
	}
	sep := ','
	if strings.HasPrefix(s, "/") {
		sep = '/'
		s = s[1:]
	}

	var (
		parts   []string
		cur     strings.Builder
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == sep:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		return nil, errors.New("dangling escape in distinguished name")
	}
	parts = append(parts, cur.String())

	var rdns pkix.RDNSequence
	for _, part := range parts {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid attribute %q in distinguished name", strings.TrimSpace(part))
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		var oid asn1.ObjectIdentifier
		if a, found := dnByName[normalizeName(name)]; found {
			oid = a.oid
		} else if parsed, err := ParseOID(name); err == nil {
			oid = parsed
		} else {
			return nil, fmt.Errorf("unknown attribute %q in distinguished name", name)
		}
		rdns = append(rdns, pkix.RelativeDistinguishedNameSET{{Type: oid, Value: value}})
	}
	if sep == ',' {
		for i, j := 0, len(rdns)-1; i < j; i, j = i+1, j-1 {
			rdns[i], rdns[j] = rdns[j], rdns[i]
		}
	}
	return &DistinguishedName{rdns: rdns}, nil
}

// Get returns the first value of the named attribute. The lookup is case
// insensitive and accepts short ("CN") and long ("commonName") names.
func (dn *DistinguishedName) Get(name string) (string, bool) {
	values := dn.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Values returns every value of the named attribute in encoding order.
func (dn *DistinguishedName) Values(name string) []string {
	if dn == nil {
		return nil
	}
	a, ok := dnByName[normalizeName(name)]
	if !ok {
		return nil
	}
	var out []string
	for _, rdn := range dn.rdns {
		for _, atv := range rdn {
			if atv.Type.Equal(a.oid) {
				out = append(out, attributeString(atv.Value))
			}
		}
	}
	return out
}

// CommonName is shorthand for Get("CN").
func (dn *DistinguishedName) CommonName() string {
	cn, _ := dn.Get("CN")
	return cn
}

// Attributes returns (short name, value) pairs in encoding order. Unknown
// attribute types are reported by dotted OID.
func (dn *DistinguishedName) Attributes() [][2]string {
	if dn == nil {
		return nil
	}
	var out [][2]string
	for _, rdn := range dn.rdns {
		for _, atv := range rdn {
			name := atv.Type.String()
			if a := dnAttributeForOID(atv.Type); a != nil {
				name = a.short
			}
			out = append(out, [2]string{name, attributeString(atv.Value)})
		}
	}
	return out
}

// RDNSequence returns a copy of the underlying sequence.
func (dn *DistinguishedName) RDNSequence() pkix.RDNSequence {
	if dn == nil {
		return nil
	}
	return NewDistinguishedName(dn.rdns).rdns
}

// Marshal returns the DER encoding of the name.
func (dn *DistinguishedName) Marshal() ([]byte, error) {
	return asn1.Marshal(dn.RDNSequence())
}

// String renders the name in RFC 4514 order (least significant first).
func (dn *DistinguishedName) String() string {
	if dn == nil {
		return ""
	}
	parts := make([]string, 0, len(dn.rdns))
	for i := len(dn.rdns) - 1; i >= 0; i-- {
		var atvs []string
		for _, atv := range dn.rdns[i] {
			name := atv.Type.String()
			if a := dnAttributeForOID(atv.Type); a != nil {
				name = a.short
			}
			atvs = append(atvs, name+"="+escapeDNValue(attributeString(atv.Value)))
		}
		parts = append(parts, strings.Join(atvs, "+"))
	}
	return strings.Join(parts, ",")
}

func attributeString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format("2006-01-02")
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func escapeDNValue(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case strings.ContainsRune(`,+"\<>;=`, r),
			i == 0 && (r == ' ' || r == '#'),
			i == len(s)-1 && r == ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
