// Package profile provides certificate issuance profiles.
//
// A profile fixes the certificate type, lifetime and the optional
// extensions of one kind of certificate:
//   - path length and name constraints for intermediate CAs
//   - CRL distribution points and authority information access URLs
//   - TLS feature (must-staple) and certificate policies
//
// Design principle: 1 Profile = 1 Certificate. The subject and its key
// come from the request, never from the profile.
package profile

import (
	"crypto"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// Profile defines one certificate kind.
type Profile struct {
	// Name is the unique identifier for this profile.
	Name string

	// Description provides a human-readable description.
	Description string

	Type x509util.CertificateType

	// Algorithm is the key algorithm suggested when the CLI generates the
	// subject key. Requests carrying their own key ignore it.
	Algorithm pkicrypto.KeyAlgorithm

	// Validity is the certificate lifetime. Zero selects the type default.
	Validity time.Duration

	PathLen         *int
	NameConstraints *x509util.NameConstraintsInput

	CRLURLs    []string
	OCSPURLs   []string
	IssuerURLs []string

	TLSFeatures x509util.TLSFeatures
	Policies    []x509util.CertificatePolicy
}

// Validate checks that the profile is coherent with its type.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if p.Validity < 0 {
		return errors.New("validity must not be negative")
	}
	if p.Algorithm != nil && !p.Algorithm.CanSign() && p.Type.IsCA() {
		return fmt.Errorf("%s cannot sign and is not usable for a CA profile", p.Algorithm.Name())
	}
	if !p.Type.IsCA() {
		if p.PathLen != nil {
			return fmt.Errorf("pathLen is only valid for CA profiles (type %s)", p.Type)
		}
		if p.NameConstraints != nil {
			return fmt.Errorf("nameConstraints are only valid for CA profiles (type %s)", p.Type)
		}
	}
	if p.Type == x509util.RootCA && p.NameConstraints != nil {
		return errors.New("nameConstraints are not allowed on a root CA profile")
	}
	if p.PathLen != nil && *p.PathLen < 0 {
		return errors.New("pathLen must not be negative")
	}
	if (p.TLSFeatures.StatusRequest || p.TLSFeatures.StatusRequestV2) && p.Type != x509util.Server {
		return fmt.Errorf("tlsFeature is only valid for server profiles (type %s)", p.Type)
	}
	for _, list := range [][]string{p.CRLURLs, p.OCSPURLs, p.IssuerURLs} {
		for _, u := range list {
			if err := validateURL(u); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ldap" {
		return fmt.Errorf("invalid URL %q: scheme must be http, https or ldap", s)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: host is required", s)
	}
	return nil
}

// Request builds the sign request for subject. pub is the subject key; it
// may be nil for a root, which is then self-signed with issuer.PrivateKey.
func (p *Profile) Request(subject ca.SubjectDescriptor, pub crypto.PublicKey, issuer *ca.IssuerContext) ca.SignRequest {
	req := ca.SignRequest{
		Type:        p.Type,
		Subject:     subject,
		PublicKey:   pub,
		Issuer:      issuer,
		Lifetime:    p.Validity,
		CRLURLs:     p.CRLURLs,
		OCSPURLs:    p.OCSPURLs,
		IssuerURLs:  p.IssuerURLs,
		TLSFeatures: p.TLSFeatures,
		Policies:    p.Policies,
	}
	if p.PathLen != nil {
		n := *p.PathLen
		req.PathLen = &n
	}
	if p.NameConstraints != nil {
		nc := *p.NameConstraints
		req.NameConstraints = &nc
	}
	return req
}

// EffectiveValidity returns the profile validity or the type default.
func (p *Profile) EffectiveValidity() time.Duration {
	if p.Validity > 0 {
		return p.Validity
	}
	return p.Type.DefaultLifetime()
}
