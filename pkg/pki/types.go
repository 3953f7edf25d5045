package pki

import (
	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// Algorithm names a key algorithm as accepted by the CLI and profiles.
type Algorithm string

// Supported algorithms.
const (
	// Classical algorithms
	AlgRSA2048   Algorithm = "rsa-2048"
	AlgRSA3072   Algorithm = "rsa-3072"
	AlgRSA4096   Algorithm = "rsa-4096"
	AlgECDSAP256 Algorithm = "ecdsa-p256"
	AlgECDSAP384 Algorithm = "ecdsa-p384"
	AlgECDSAP521 Algorithm = "ecdsa-p521"
	AlgEd25519   Algorithm = "ed25519"
	AlgEd448     Algorithm = "ed448"

	// Post-quantum signatures (FIPS 204)
	AlgMLDSA44 Algorithm = "ml-dsa-44"
	AlgMLDSA65 Algorithm = "ml-dsa-65"
	AlgMLDSA87 Algorithm = "ml-dsa-87"

	// Post-quantum signatures (FIPS 205)
	AlgSLHDSASHA2128s Algorithm = "slh-dsa-sha2-128s"
	AlgSLHDSASHA2128f Algorithm = "slh-dsa-sha2-128f"
	AlgSLHDSASHA2192s Algorithm = "slh-dsa-sha2-192s"
	AlgSLHDSASHA2192f Algorithm = "slh-dsa-sha2-192f"
	AlgSLHDSASHA2256s Algorithm = "slh-dsa-sha2-256s"
	AlgSLHDSASHA2256f Algorithm = "slh-dsa-sha2-256f"

	// Post-quantum signatures (Falcon)
	AlgFalcon512  Algorithm = "falcon-512"
	AlgFalcon1024 Algorithm = "falcon-1024"

	// Post-quantum key encapsulation (FIPS 203), certified but never signing
	AlgMLKEM512  Algorithm = "ml-kem-512"
	AlgMLKEM768  Algorithm = "ml-kem-768"
	AlgMLKEM1024 Algorithm = "ml-kem-1024"
)

// KeyAlgorithm resolves the name into a key algorithm.
func (a Algorithm) KeyAlgorithm() (KeyAlgorithm, error) {
	return pkicrypto.ParseAlgorithm(string(a))
}

// IsPQC reports whether a names a post-quantum algorithm.
func (a Algorithm) IsPQC() bool {
	alg, err := a.KeyAlgorithm()
	return err == nil && pkicrypto.IsPQC(alg)
}

// CertificateType selects the extension set of an issued certificate.
type CertificateType = x509util.CertificateType

// Certificate types.
const (
	TypeRootCA         = x509util.RootCA
	TypeIntermediateCA = x509util.IntermediateCA
	TypeServer         = x509util.Server
	TypeClient         = x509util.Client
)

// ParseCertificateType parses "root-ca", "intermediate-ca", "server" or "client".
func ParseCertificateType(s string) (CertificateType, error) {
	return x509util.ParseCertificateType(s)
}
