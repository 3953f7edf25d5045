package dto

// CAResponse describes the issuing CA served by GET /api/v1/ca.
type CAResponse struct {
	Subject      DistinguishedName `json:"subject"`
	Serial       string            `json:"serial"`
	KeyAlgorithm string            `json:"key_algorithm"`
	Validity     ValidityInfo      `json:"validity"`

	// Chain is the issuing CA certificate followed by its chain, PEM encoded.
	Chain string `json:"chain"`

	// Profiles lists the issuance profiles accepted by POST /api/v1/certificates.
	Profiles []string `json:"profiles"`
}

// CertIssueRequest represents a certificate issuance request.
type CertIssueRequest struct {
	// Profile is the issuance profile name (required).
	Profile string `json:"profile"`

	// CSR is the PEM encoded PKCS#10 request (required).
	CSR string `json:"csr"`

	// CommonName overrides the CN of the request.
	CommonName string `json:"common_name,omitempty"`

	// SubjectAltNames override the request's SANs, written as "DNS:host",
	// "IP:addr", "email:addr" or "URI:uri".
	SubjectAltNames []string `json:"subject_alt_names,omitempty"`
}

// CertIssueResponse represents the result of certificate issuance.
type CertIssueResponse struct {
	// Serial is the certificate serial number (hex).
	Serial string `json:"serial"`

	Subject DistinguishedName `json:"subject"`
	Issuer  DistinguishedName `json:"issuer"`

	KeyAlgorithm       string       `json:"key_algorithm"`
	SignatureAlgorithm string       `json:"signature_algorithm"`
	Validity           ValidityInfo `json:"validity"`

	// Certificate is the PEM encoded certificate.
	Certificate string `json:"certificate"`

	// Chain is the PEM encoded issuing chain.
	Chain string `json:"chain"`
}

// ChainValidateRequest asks for a chain validation. All certificates are PEM.
type ChainValidateRequest struct {
	// Certificate is the target certificate (required).
	Certificate string `json:"certificate"`

	// Intermediates may hold several concatenated PEM blocks.
	Intermediates string `json:"intermediates,omitempty"`

	// Root is the trust anchor. When empty the server's own root is used.
	Root string `json:"root,omitempty"`

	// ExtKeyUsage lists required purposes by name ("serverAuth") or OID.
	ExtKeyUsage []string `json:"ext_key_usage,omitempty"`
}

// DNRequest carries a PEM certificate whose names are decoded.
type DNRequest struct {
	Certificate string `json:"certificate"`
}

// DNResponse describes the names of a certificate.
type DNResponse struct {
	Subject         DistinguishedName `json:"subject"`
	Issuer          DistinguishedName `json:"issuer"`
	SubjectAltNames []string          `json:"subject_alt_names,omitempty"`
}
