package x509util

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// CertificatePolicy is one PolicyInformation entry with its optional
// qualifiers.
type CertificatePolicy struct {
	OID        asn1.ObjectIdentifier
	CPSURI     string
	UserNotice string
}

type policyInformation struct {
	PolicyIdentifier asn1.ObjectIdentifier
	PolicyQualifiers []policyQualifierInfo `asn1:"optional"`
}

type policyQualifierInfo struct {
	PolicyQualifierId asn1.ObjectIdentifier
	Qualifier         asn1.RawValue
}

// userNoticeMaxLen is the explicitText limit from RFC 5280 section 4.2.1.4.
const userNoticeMaxLen = 200

// CertificatePoliciesExtension encodes the non-critical CertificatePolicies
// extension. CPS pointers are IA5String and user notices carry only
// explicitText as UTF8String.
func CertificatePoliciesExtension(policies []CertificatePolicy) (pkix.Extension, error) {
	infos := make([]policyInformation, 0, len(policies))
	for _, p := range policies {
		if len(p.OID) == 0 {
			return pkix.Extension{}, errors.New("certificate policy without OID")
		}
		info := policyInformation{PolicyIdentifier: p.OID}

		if p.CPSURI != "" {
			if !isIA5(p.CPSURI) {
				return pkix.Extension{}, fmt.Errorf("CPS URI %q is not IA5", p.CPSURI)
			}
			cps, err := asn1.MarshalWithParams(p.CPSURI, "ia5")
			if err != nil {
				return pkix.Extension{}, fmt.Errorf("failed to marshal CPS: %w", err)
			}
			info.PolicyQualifiers = append(info.PolicyQualifiers, policyQualifierInfo{
				PolicyQualifierId: OIDQualifierCPS,
				Qualifier:         asn1.RawValue{FullBytes: cps},
			})
		}

		if p.UserNotice != "" {
			notice, err := marshalUserNotice(p.UserNotice)
			if err != nil {
				return pkix.Extension{}, err
			}
			info.PolicyQualifiers = append(info.PolicyQualifiers, policyQualifierInfo{
				PolicyQualifierId: OIDQualifierUserNotice,
				Qualifier:         asn1.RawValue{FullBytes: notice},
			})
		}
		infos = append(infos, info)
	}

	der, err := asn1.Marshal(infos)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal CertificatePolicies: %w", err)
	}
	return pkix.Extension{Id: OIDExtCertificatePolicies, Value: der}, nil
}

func marshalUserNotice(text string) ([]byte, error) {
	if !utf8.ValidString(text) || utf8.RuneCountInString(text) > userNoticeMaxLen {
		return nil, fmt.Errorf("user notice must be valid UTF-8 of at most %d characters", userNoticeMaxLen)
	}
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.UTF8String, func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(text))
		})
	})
	return b.Bytes()
}

// ParseCertificatePolicies decodes a CertificatePolicies extension value.
func ParseCertificatePolicies(der []byte) ([]CertificatePolicy, error) {
	var infos []policyInformation
	rest, err := asn1.Unmarshal(der, &infos)
	if err != nil {
		return nil, fmt.Errorf("malformed CertificatePolicies: %w", err)
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing data after CertificatePolicies")
	}
	out := make([]CertificatePolicy, 0, len(infos))
	for _, info := range infos {
		p := CertificatePolicy{OID: info.PolicyIdentifier}
		for _, q := range info.PolicyQualifiers {
			switch {
			case q.PolicyQualifierId.Equal(OIDQualifierCPS):
				p.CPSURI = string(q.Qualifier.Bytes)
			case q.PolicyQualifierId.Equal(OIDQualifierUserNotice):
				p.UserNotice = parseExplicitText(q.Qualifier.FullBytes)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// parseExplicitText returns the explicitText of a UserNotice, skipping an
// optional noticeRef.
func parseExplicitText(der []byte) string {
	input := cryptobyte.String(der)
	var notice cryptobyte.String
	if !input.ReadASN1(&notice, cbasn1.SEQUENCE) {
		return ""
	}
	notice.SkipOptionalASN1(cbasn1.SEQUENCE)
	var (
		text cryptobyte.String
		tag  cbasn1.Tag
	)
	if !notice.ReadAnyASN1(&text, &tag) {
		return ""
	}
	return string(text)
}

// ParseOID parses a dotted-decimal object identifier.
func ParseOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid OID %q", s)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid OID component %q in %q", part, s)
		}
		oid[i] = n
	}
	return oid, nil
}
