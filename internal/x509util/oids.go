// Package x509util assembles and parses the X.509 structures the CA works
// with: extensions, name constraints, GeneralNames, PKCS#10 requests and
// distinguished names.
package x509util

import (
	"encoding/asn1"
)

// Standard X.509 extension OIDs.
var (
	OIDExtSubjectKeyId          = asn1.ObjectIdentifier{2, 5, 29, 14}
	OIDExtKeyUsage              = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDExtSubjectAltName        = asn1.ObjectIdentifier{2, 5, 29, 17}
	OIDExtBasicConstraints      = asn1.ObjectIdentifier{2, 5, 29, 19}
	OIDExtNameConstraints       = asn1.ObjectIdentifier{2, 5, 29, 30}
	OIDExtCRLDistributionPoints = asn1.ObjectIdentifier{2, 5, 29, 31}
	OIDExtCertificatePolicies   = asn1.ObjectIdentifier{2, 5, 29, 32}
	OIDExtAuthorityKeyId        = asn1.ObjectIdentifier{2, 5, 29, 35}
	OIDExtExtKeyUsage           = asn1.ObjectIdentifier{2, 5, 29, 37}
	OIDExtAuthorityInfoAccess   = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}

	// TLS Feature (RFC 7633), a.k.a. OCSP must-staple.
	OIDExtTLSFeature = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 24}
)

// Extended Key Usage OIDs.
var (
	OIDExtKeyUsageAny             = asn1.ObjectIdentifier{2, 5, 29, 37, 0}
	OIDExtKeyUsageServerAuth      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 1}
	OIDExtKeyUsageClientAuth      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}
	OIDExtKeyUsageCodeSigning     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 3}
	OIDExtKeyUsageEmailProtection = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 4}
	OIDExtKeyUsageTimeStamping    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 8}
	OIDExtKeyUsageOCSPSigning     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 9}
)

// Access methods and policy qualifiers.
var (
	oidAccessMethodOCSP      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}
	oidAccessMethodCAIssuers = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 2}

	OIDQualifierCPS        = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 2, 1}
	OIDQualifierUserNotice = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 2, 2}
)

// OIDExtensionRequest is the PKCS#9 extensionRequest CSR attribute.
var OIDExtensionRequest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 14}

var ekuNames = map[string]asn1.ObjectIdentifier{
	"any":             OIDExtKeyUsageAny,
	"serverauth":      OIDExtKeyUsageServerAuth,
	"clientauth":      OIDExtKeyUsageClientAuth,
	"codesigning":     OIDExtKeyUsageCodeSigning,
	"emailprotection": OIDExtKeyUsageEmailProtection,
	"timestamping":    OIDExtKeyUsageTimeStamping,
	"ocspsigning":     OIDExtKeyUsageOCSPSigning,
}

// ParseExtKeyUsage resolves an EKU given by name ("serverAuth",
// "client-auth") or in dotted form ("1.3.6.1.5.5.7.3.1").
func ParseExtKeyUsage(s string) (asn1.ObjectIdentifier, error) {
	if oid, ok := ekuNames[normalizeName(s)]; ok {
		return oid, nil
	}
	return ParseOID(s)
}
