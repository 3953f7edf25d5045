package ca

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"net"
	"strings"
	"time"

	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// ChainStatus is one problem found while validating a chain.
type ChainStatus int

const (
	StatusNotTimeValid ChainStatus = iota + 1
	StatusNotSignatureValid
	StatusPartialChain
	StatusInvalidBasicConstraints
	StatusNotValidForUsage
	StatusHasNotPermittedNameConstraint
	StatusHasExcludedNameConstraint
	StatusUntrustedRoot
	StatusHasNotSupportedCriticalExtension
)

var chainStatusNames = map[ChainStatus]string{
	StatusNotTimeValid:                     "NotTimeValid",
	StatusNotSignatureValid:                "NotSignatureValid",
	StatusPartialChain:                     "PartialChain",
	StatusInvalidBasicConstraints:          "InvalidBasicConstraints",
	StatusNotValidForUsage:                 "NotValidForUsage",
	StatusHasNotPermittedNameConstraint:    "HasNotPermittedNameConstraint",
	StatusHasExcludedNameConstraint:        "HasExcludedNameConstraint",
	StatusUntrustedRoot:                    "UntrustedRoot",
	StatusHasNotSupportedCriticalExtension: "HasNotSupportedCriticalExtension",
}

func (s ChainStatus) String() string {
	if name, ok := chainStatusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the status by name in JSON output.
func (s ChainStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ChainElement is one certificate of the built path with its own problems.
type ChainElement struct {
	Certificate *x509.Certificate `json:"-"`
	Subject     string            `json:"subject"`
	Status      []ChainStatus     `json:"status"`
}

// ChainReport is the outcome of ValidateChain. Elements run from the target
// towards the root.
type ChainReport struct {
	IsValid       bool           `json:"valid"`
	OverallStatus []ChainStatus  `json:"status"`
	Elements      []ChainElement `json:"elements"`
}

// ValidateOptions tune ValidateChain.
type ValidateOptions struct {
	// RequiredEKU lists purposes every certificate in the path must allow.
	// Certificates without an EKU extension allow every purpose.
	RequiredEKU []asn1.ObjectIdentifier

	// Time is the verification time; zero means now.
	Time time.Time
}

// ValidateChain builds the shortest path from target through intermediates
// to root and checks it. root is the only trust anchor and revocation is
// not checked. Failures are reported in the ChainReport, never as an error.
func ValidateChain(target *x509.Certificate, intermediates []*x509.Certificate, root *x509.Certificate, opts ValidateOptions) *ChainReport {
	if target == nil || root == nil {
		return &ChainReport{OverallStatus: []ChainStatus{StatusPartialChain}}
	}
	now := opts.Time
	if now.IsZero() {
		now = time.Now()
	}

	pool := make([]*x509.Certificate, 0, len(intermediates)+1)
	for _, c := range intermediates {
		if c != nil {
			pool = append(pool, c)
		}
	}
	pool = append(pool, root)

	path := buildPath(target, pool, root, true)
	if path == nil {
		// A path may still exist by name; report its bad signatures rather
		// than a bare PartialChain.
		path = buildPath(target, pool, root, false)
	}
	complete := path != nil
	if !complete {
		path = longestPrefix(target, pool)
	}

	report := &ChainReport{Elements: make([]ChainElement, len(path))}
	for i, c := range path {
		report.Elements[i] = ChainElement{Certificate: c, Subject: c.Subject.String()}
	}
	add := func(i int, s ChainStatus) {
		for _, have := range report.Elements[i].Status {
			if have == s {
				return
			}
		}
		report.Elements[i].Status = append(report.Elements[i].Status, s)
	}

	last := len(path) - 1
	for i, c := range path {
		if now.Before(c.NotBefore) || now.After(c.NotAfter) {
			add(i, StatusNotTimeValid)
		}
		if len(c.UnhandledCriticalExtensions) > 0 {
			add(i, StatusHasNotSupportedCriticalExtension)
		}
		if i < last {
			if verifyIssuedBy(c, path[i+1]) != nil {
				add(i, StatusNotSignatureValid)
			}
		}
		if i > 0 {
			if !c.BasicConstraintsValid || !c.IsCA {
				add(i, StatusInvalidBasicConstraints)
			} else if c.MaxPathLen >= 0 && (c.MaxPathLen > 0 || c.MaxPathLenZero) && i-1 > c.MaxPathLen {
				add(i, StatusInvalidBasicConstraints)
			}
			if c.KeyUsage != 0 && c.KeyUsage&x509.KeyUsageCertSign == 0 {
				add(i, StatusNotValidForUsage)
			}
			if s := checkNameConstraints(c, path[0]); s != 0 {
				add(0, s)
			}
		}
		if !allowsEKUs(c, opts.RequiredEKU) {
			add(i, StatusNotValidForUsage)
		}
	}

	end := path[last]
	switch {
	case complete:
		if verifyIssuedBy(end, end) != nil {
			add(last, StatusNotSignatureValid)
		}
	case bytes.Equal(end.RawIssuer, end.RawSubject):
		add(last, StatusUntrustedRoot)
	default:
		add(last, StatusPartialChain)
	}

	for _, e := range report.Elements {
		for _, s := range e.Status {
			if !containsStatus(report.OverallStatus, s) {
				report.OverallStatus = append(report.OverallStatus, s)
			}
		}
	}
	report.IsValid = len(report.OverallStatus) == 0
	return report
}

func containsStatus(list []ChainStatus, s ChainStatus) bool {
	for _, have := range list {
		if have == s {
			return true
		}
	}
	return false
}

// buildPath runs a breadth-first search from target to root over pool and
// returns the shortest path, or nil. With verify set, each link's signature
// must check out.
func buildPath(target *x509.Certificate, pool []*x509.Certificate, root *x509.Certificate, verify bool) []*x509.Certificate {
	queue := [][]*x509.Certificate{{target}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		tip := path[len(path)-1]
		if bytes.Equal(tip.Raw, root.Raw) {
			return path
		}
		if len(path) > len(pool) {
			continue
		}
		for _, cand := range pool {
			if inPath(path, cand) || !issuedBy(tip, cand) {
				continue
			}
			if verify && verifyIssuedBy(tip, cand) != nil {
				continue
			}
			next := make([]*x509.Certificate, len(path), len(path)+1)
			copy(next, path)
			queue = append(queue, append(next, cand))
		}
	}
	return nil
}

// longestPrefix follows verified issuer links from target as far as they go.
func longestPrefix(target *x509.Certificate, pool []*x509.Certificate) []*x509.Certificate {
	path := []*x509.Certificate{target}
	for {
		tip := path[len(path)-1]
		var next *x509.Certificate
		for _, cand := range pool {
			if !inPath(path, cand) && issuedBy(tip, cand) && verifyIssuedBy(tip, cand) == nil {
				next = cand
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
	}
}

func inPath(path []*x509.Certificate, c *x509.Certificate) bool {
	for _, p := range path {
		if bytes.Equal(p.Raw, c.Raw) {
			return true
		}
	}
	return false
}

// issuedBy reports whether parent's subject and key identifier match
// child's issuer fields.
func issuedBy(child, parent *x509.Certificate) bool {
	if !bytes.Equal(child.RawIssuer, parent.RawSubject) {
		return false
	}
	if len(child.AuthorityKeyId) > 0 && len(parent.SubjectKeyId) > 0 {
		return bytes.Equal(child.AuthorityKeyId, parent.SubjectKeyId)
	}
	return true
}

func allowsEKUs(c *x509.Certificate, required []asn1.ObjectIdentifier) bool {
	if len(required) == 0 {
		return true
	}
	var ekus []asn1.ObjectIdentifier
	found := false
	for _, ext := range c.Extensions {
		if ext.Id.Equal(x509util.OIDExtExtKeyUsage) {
			found = true
			if _, err := asn1.Unmarshal(ext.Value, &ekus); err != nil {
				return false
			}
		}
	}
	if !found {
		return true
	}
	for _, want := range required {
		ok := false
		for _, have := range ekus {
			if have.Equal(want) || have.Equal(x509util.OIDExtKeyUsageAny) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// checkNameConstraints applies ca's DNS, IP and email constraints to the
// leaf's subject alternative names.
func checkNameConstraints(ca, leaf *x509.Certificate) ChainStatus {
	for _, name := range leaf.DNSNames {
		if s := constrain(name, ca.PermittedDNSDomains, ca.ExcludedDNSDomains, matchDNS); s != 0 {
			return s
		}
	}
	for _, addr := range leaf.EmailAddresses {
		if s := constrain(addr, ca.PermittedEmailAddresses, ca.ExcludedEmailAddresses, matchEmail); s != 0 {
			return s
		}
	}
	for _, ip := range leaf.IPAddresses {
		for _, n := range ca.ExcludedIPRanges {
			if n.Contains(ip) {
				return StatusHasExcludedNameConstraint
			}
		}
		if len(ca.PermittedIPRanges) > 0 && !anyContains(ca.PermittedIPRanges, ip) {
			return StatusHasNotPermittedNameConstraint
		}
	}
	return 0
}

func constrain(name string, permitted, excluded []string, match func(name, constraint string) bool) ChainStatus {
	for _, c := range excluded {
		if match(name, c) {
			return StatusHasExcludedNameConstraint
		}
	}
	if len(permitted) == 0 {
		return 0
	}
	for _, c := range permitted {
		if match(name, c) {
			return 0
		}
	}
	return StatusHasNotPermittedNameConstraint
}

func anyContains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// matchDNS: "example.com" covers itself and its subdomains, ".example.com"
// only subdomains.
func matchDNS(name, constraint string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	constraint = strings.ToLower(constraint)
	if constraint == "" {
		return true
	}
	if strings.HasPrefix(constraint, ".") {
		return strings.HasSuffix(name, constraint)
	}
	return name == constraint || strings.HasSuffix(name, "."+constraint)
}

// matchEmail: a mailbox matches exactly, a host matches addresses at that
// host, and ".domain" matches addresses at any subdomain.
func matchEmail(addr, constraint string) bool {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return false
	}
	if strings.Contains(constraint, "@") {
		return strings.EqualFold(addr, constraint)
	}
	host := strings.ToLower(addr[at+1:])
	constraint = strings.ToLower(constraint)
	if strings.HasPrefix(constraint, ".") {
		return strings.HasSuffix(host, constraint)
	}
	return host == constraint
}
