package x509util

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/net/idna"
)

// GeneralNameKind is the CHOICE arm of a GeneralName that the CA handles.
type GeneralNameKind int

const (
	NameDNS GeneralNameKind = iota + 1
	NameIP
	NameEmail
	NameURI
)

// GeneralName context-specific tags (RFC 5280 section 4.2.1.6).
const (
	tagRFC822Name = 1
	tagDNSName    = 2
	tagURI        = 6
	tagIPAddress  = 7
)

func (k GeneralNameKind) String() string {
	switch k {
	case NameDNS:
		return "DNS"
	case NameIP:
		return "IP"
	case NameEmail:
		return "email"
	case NameURI:
		return "URI"
	}
	return fmt.Sprintf("GeneralNameKind(%d)", int(k))
}

// GeneralName is a single subject alternative name.
type GeneralName struct {
	Kind  GeneralNameKind
	Value string
}

func DNSName(name string) GeneralName   { return GeneralName{Kind: NameDNS, Value: name} }
func EmailName(addr string) GeneralName { return GeneralName{Kind: NameEmail, Value: addr} }
func URIName(uri string) GeneralName    { return GeneralName{Kind: NameURI, Value: uri} }

func IPName(ip netip.Addr) GeneralName {
	return GeneralName{Kind: NameIP, Value: ip.Unmap().String()}
}

func (g GeneralName) String() string {
	return g.Kind.String() + ":" + g.Value
}

// ParseGeneralName parses the "DNS:host", "IP:addr", "email:addr" and
// "URI:uri" notation. A bare value is taken as an IP address when it parses
// as one and as a DNS name otherwise.
func ParseGeneralName(s string) (GeneralName, error) {
	kind, value, found := strings.Cut(s, ":")
	if !found {
		if ip, err := netip.ParseAddr(s); err == nil {
			return IPName(ip), nil
		}
		return DNSName(s), nil
	}
	switch strings.ToLower(kind) {
	case "dns":
		return DNSName(value), nil
	case "ip":
		ip, err := netip.ParseAddr(value)
		if err != nil {
			return GeneralName{}, fmt.Errorf("invalid IP address %q: %w", value, err)
		}
		return IPName(ip), nil
	case "email", "rfc822":
		return EmailName(value), nil
	case "uri":
		return URIName(value), nil
	}
	if ip, err := netip.ParseAddr(s); err == nil {
		return IPName(ip), nil
	}
	return GeneralName{}, fmt.Errorf("unknown general name type %q", kind)
}

// rawValue encodes g as an implicitly tagged GeneralName.
func (g GeneralName) rawValue() (asn1.RawValue, error) {
	var (
		tag   int
		bytes []byte
	)
	switch g.Kind {
	case NameDNS:
		name, err := normalizeDNSName(g.Value)
		if err != nil {
			return asn1.RawValue{}, err
		}
		tag, bytes = tagDNSName, []byte(name)
	case NameEmail:
		if !isIA5(g.Value) || g.Value == "" {
			return asn1.RawValue{}, fmt.Errorf("invalid email address %q", g.Value)
		}
		tag, bytes = tagRFC822Name, []byte(g.Value)
	case NameURI:
		u, err := url.Parse(g.Value)
		if err != nil || !u.IsAbs() || !isIA5(g.Value) {
			return asn1.RawValue{}, fmt.Errorf("invalid URI %q", g.Value)
		}
		tag, bytes = tagURI, []byte(g.Value)
	case NameIP:
		ip, err := netip.ParseAddr(g.Value)
		if err != nil {
			return asn1.RawValue{}, fmt.Errorf("invalid IP address %q: %w", g.Value, err)
		}
		tag, bytes = tagIPAddress, ip.Unmap().AsSlice()
	default:
		return asn1.RawValue{}, fmt.Errorf("unsupported general name kind %s", g.Kind)
	}
	return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: tag, Bytes: bytes}, nil
}

// MarshalGeneralNames encodes names as a GeneralNames SEQUENCE.
func MarshalGeneralNames(names []GeneralName) ([]byte, error) {
	raws := make([]asn1.RawValue, 0, len(names))
	for _, n := range names {
		rv, err := n.rawValue()
		if err != nil {
			return nil, err
		}
		raws = append(raws, rv)
	}
	return asn1.Marshal(raws)
}

// ParseGeneralNames decodes a GeneralNames SEQUENCE. Arms other than DNS,
// IP, email and URI are skipped.
func ParseGeneralNames(der []byte) ([]GeneralName, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("malformed GeneralNames")
	}
	var names []GeneralName
	for !seq.Empty() {
		var (
			value cryptobyte.String
			tag   cbasn1.Tag
		)
		if !seq.ReadAnyASN1(&value, &tag) {
			return nil, errors.New("malformed GeneralName")
		}
		switch tag {
		case cbasn1.Tag(tagDNSName).ContextSpecific():
			names = append(names, DNSName(string(value)))
		case cbasn1.Tag(tagRFC822Name).ContextSpecific():
			names = append(names, EmailName(string(value)))
		case cbasn1.Tag(tagURI).ContextSpecific():
			names = append(names, URIName(string(value)))
		case cbasn1.Tag(tagIPAddress).ContextSpecific():
			ip, ok := netip.AddrFromSlice(value)
			if !ok {
				return nil, fmt.Errorf("bad iPAddress length %d", len(value))
			}
			names = append(names, IPName(ip))
		}
	}
	return names, nil
}

// normalizeDNSName converts a host name to its A-label form. A leading "*."
// wildcard label or a leading "." (name constraint form) is preserved.
func normalizeDNSName(name string) (string, error) {
	prefix := ""
	switch {
	case strings.HasPrefix(name, "*."):
		prefix, name = "*.", name[2:]
	case strings.HasPrefix(name, "."):
		prefix, name = ".", name[1:]
	}
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil || ascii == "" {
		return "", fmt.Errorf("invalid DNS name %q: %v", prefix+name, err)
	}
	return prefix + strings.ToLower(ascii), nil
}

func isIA5(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
