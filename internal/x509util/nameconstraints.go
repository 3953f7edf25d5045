package x509util

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net/netip"
	"strings"
)

// NameConstraintsInput lists the namespaces an intermediate CA is restricted
// to. Any category may be empty.
type NameConstraintsInput struct {
	PermittedDNS   []string
	ExcludedDNS    []string
	PermittedIP    []netip.Prefix
	ExcludedIP     []netip.Prefix
	PermittedEmail []string
	ExcludedEmail  []string
}

// IsEmpty reports whether no category has any entry.
func (in NameConstraintsInput) IsEmpty() bool {
	return len(in.PermittedDNS) == 0 && len(in.ExcludedDNS) == 0 &&
		len(in.PermittedIP) == 0 && len(in.ExcludedIP) == 0 &&
		len(in.PermittedEmail) == 0 && len(in.ExcludedEmail) == 0
}

// GeneralSubtree is one entry of a NameConstraints subtree list.
// Minimum is always zero and maximum absent (RFC 5280 section 4.2.1.10).
type GeneralSubtree struct {
	Base asn1.RawValue
}

// NameConstraints is the built {permitted, excluded} pair. A nil list means
// the category is absent from the encoding.
type NameConstraints struct {
	Permitted []GeneralSubtree `asn1:"optional,tag:0"`
	Excluded  []GeneralSubtree `asn1:"optional,tag:1"`
}

// IsEmpty reports whether both lists are absent.
func (nc NameConstraints) IsEmpty() bool {
	return len(nc.Permitted) == 0 && len(nc.Excluded) == 0
}

// Extension encodes nc as a critical NameConstraints extension.
func (nc NameConstraints) Extension() (pkix.Extension, error) {
	der, err := asn1.Marshal(nc)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal NameConstraints: %w", err)
	}
	return pkix.Extension{Id: OIDExtNameConstraints, Critical: true, Value: der}, nil
}

// BuildDNSSubtrees builds dNSName subtrees. Names are converted to A-labels;
// a leading "." restricts to subdomains only.
func BuildDNSSubtrees(domains []string) ([]GeneralSubtree, error) {
	if len(domains) == 0 {
		return nil, nil
	}
	subtrees := make([]GeneralSubtree, 0, len(domains))
	for _, d := range domains {
		name, err := normalizeDNSName(strings.TrimSpace(d))
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, "*") {
			return nil, fmt.Errorf("wildcards are not allowed in DNS name constraints: %q", d)
		}
		subtrees = append(subtrees, subtree(tagDNSName, []byte(name)))
	}
	return subtrees, nil
}

// BuildEmailSubtrees builds rfc822Name subtrees. Each entry is a mailbox
// ("a@example.com"), a host ("example.com") or a domain (".example.com").
func BuildEmailSubtrees(mailboxesOrDomains []string) ([]GeneralSubtree, error) {
	if len(mailboxesOrDomains) == 0 {
		return nil, nil
	}
	subtrees := make([]GeneralSubtree, 0, len(mailboxesOrDomains))
	for _, e := range mailboxesOrDomains {
		e = strings.TrimSpace(e)
		if local, host, ok := strings.Cut(e, "@"); ok {
			if local == "" || host == "" {
				return nil, fmt.Errorf("invalid mailbox constraint %q", e)
			}
			h, err := normalizeDNSName(host)
			if err != nil {
				return nil, err
			}
			e = local + "@" + h
		} else {
			h, err := normalizeDNSName(e)
			if err != nil {
				return nil, err
			}
			e = h
		}
		if !isIA5(e) {
			return nil, fmt.Errorf("email constraint %q is not IA5", e)
		}
		subtrees = append(subtrees, subtree(tagRFC822Name, []byte(e)))
	}
	return subtrees, nil
}

// BuildIPSubtrees builds iPAddress subtrees. Each is the network address
// followed by a mask of the same length with prefixLength leading one bits,
// so 10.0.0.0/24 becomes 0a000000ffffff00. Host bits are cleared first:
// 10.0.0.5/24 encodes the same as 10.0.0.0/24.
func BuildIPSubtrees(cidrs []netip.Prefix) ([]GeneralSubtree, error) {
	if len(cidrs) == 0 {
		return nil, nil
	}
	subtrees := make([]GeneralSubtree, 0, len(cidrs))
	for _, p := range cidrs {
		if !p.IsValid() {
			return nil, fmt.Errorf("invalid IP prefix %v", p)
		}
		addr := p.Addr()
		bits := p.Bits()
		if addr.Is4In6() {
			addr = addr.Unmap()
			bits -= 96
			if bits < 0 {
				return nil, fmt.Errorf("invalid IPv4-mapped prefix %v", p)
			}
		}
		network := netip.PrefixFrom(addr, bits).Masked().Addr().AsSlice()
		mask := prefixMask(len(network), bits)
		subtrees = append(subtrees, subtree(tagIPAddress, append(network, mask...)))
	}
	return subtrees, nil
}

// ParsePrefixes parses CIDR strings. A bare address is a host prefix.
func ParsePrefixes(cidrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, s := range cidrs {
		s = strings.TrimSpace(s)
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("invalid IP constraint %q: %w", s, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid IP constraint %q: %w", s, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func prefixMask(size, ones int) []byte {
	mask := make([]byte, size)
	for i := range mask {
		switch {
		case ones >= 8:
			mask[i] = 0xff
			ones -= 8
		case ones > 0:
			mask[i] = 0xff << (8 - ones)
			ones = 0
		}
	}
	return mask
}

func subtree(tag int, b []byte) GeneralSubtree {
	return GeneralSubtree{Base: asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: tag, Bytes: b}}
}

// BuildNameConstraints builds the permitted and excluded subtree lists.
// Empty categories contribute nothing, and an entirely empty side stays nil.
func BuildNameConstraints(in NameConstraintsInput) (NameConstraints, error) {
	var nc NameConstraints

	side := func(dns []string, ips []netip.Prefix, emails []string) ([]GeneralSubtree, error) {
		var out []GeneralSubtree
		d, err := BuildDNSSubtrees(dns)
		if err != nil {
			return nil, err
		}
		i, err := BuildIPSubtrees(ips)
		if err != nil {
			return nil, err
		}
		e, err := BuildEmailSubtrees(emails)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
		out = append(out, i...)
		out = append(out, e...)
		return out, nil
	}

	var err error
	if nc.Permitted, err = side(in.PermittedDNS, in.PermittedIP, in.PermittedEmail); err != nil {
		return NameConstraints{}, fmt.Errorf("permitted subtrees: %w", err)
	}
	if nc.Excluded, err = side(in.ExcludedDNS, in.ExcludedIP, in.ExcludedEmail); err != nil {
		return NameConstraints{}, fmt.Errorf("excluded subtrees: %w", err)
	}
	return nc, nil
}
