package crypto

import "encoding/asn1"

// Public key algorithm identifiers. PQC signature schemes reuse the key OID
// as the signature OID.
var (
	OIDRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	OIDECPublicKey   = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	OIDEd25519       = asn1.ObjectIdentifier{1, 3, 101, 112}
	OIDEd448         = asn1.ObjectIdentifier{1, 3, 101, 113}

	// FIPS 204
	OIDMLDSA44 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 17}
	OIDMLDSA65 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18}
	OIDMLDSA87 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 19}

	// FIPS 203
	OIDMLKEM512  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 1}
	OIDMLKEM768  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 2}
	OIDMLKEM1024 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 3}

	// Falcon has no NIST arc yet; these are the Open Quantum Safe assignments.
	OIDFalcon512  = asn1.ObjectIdentifier{1, 3, 9999, 3, 11}
	OIDFalcon1024 = asn1.ObjectIdentifier{1, 3, 9999, 3, 14}
)

// FIPS 205 (RFC 9814)
var oidSLHDSA = map[SLHDSAParams]asn1.ObjectIdentifier{
	SLHDSASHA2_128s:  {2, 16, 840, 1, 101, 3, 4, 3, 20},
	SLHDSASHA2_128f:  {2, 16, 840, 1, 101, 3, 4, 3, 21},
	SLHDSASHA2_192s:  {2, 16, 840, 1, 101, 3, 4, 3, 22},
	SLHDSASHA2_192f:  {2, 16, 840, 1, 101, 3, 4, 3, 23},
	SLHDSASHA2_256s:  {2, 16, 840, 1, 101, 3, 4, 3, 24},
	SLHDSASHA2_256f:  {2, 16, 840, 1, 101, 3, 4, 3, 25},
	SLHDSASHAKE_128s: {2, 16, 840, 1, 101, 3, 4, 3, 26},
	SLHDSASHAKE_128f: {2, 16, 840, 1, 101, 3, 4, 3, 27},
	SLHDSASHAKE_192s: {2, 16, 840, 1, 101, 3, 4, 3, 28},
	SLHDSASHAKE_192f: {2, 16, 840, 1, 101, 3, 4, 3, 29},
	SLHDSASHAKE_256s: {2, 16, 840, 1, 101, 3, 4, 3, 30},
	SLHDSASHAKE_256f: {2, 16, 840, 1, 101, 3, 4, 3, 31},
}

// PublicKeyOID returns the SubjectPublicKeyInfo algorithm OID for alg.
func PublicKeyOID(alg KeyAlgorithm) (asn1.ObjectIdentifier, bool) {
	switch a := alg.(type) {
	case RSA:
		return OIDRSAEncryption, true
	case ECDSA:
		return OIDECPublicKey, true
	case Ed25519:
		return OIDEd25519, true
	case Ed448:
		return OIDEd448, true
	case Falcon:
		switch a.Params {
		case Falcon512:
			return OIDFalcon512, true
		case Falcon1024:
			return OIDFalcon1024, true
		}
	case MLKEM:
		switch a.Params {
		case MLKEM512:
			return OIDMLKEM512, true
		case MLKEM768:
			return OIDMLKEM768, true
		case MLKEM1024:
			return OIDMLKEM1024, true
		}
	case MLDSA:
		switch a.Params {
		case MLDSA44:
			return OIDMLDSA44, true
		case MLDSA65:
			return OIDMLDSA65, true
		case MLDSA87:
			return OIDMLDSA87, true
		}
	case SLHDSA:
		oid, ok := oidSLHDSA[a.Params]
		return oid, ok
	}
	return nil, false
}

// algorithmForPublicKeyOID is the inverse of PublicKeyOID for the families
// whose OID fully determines the algorithm (everything except RSA and ECDSA).
func algorithmForPublicKeyOID(oid asn1.ObjectIdentifier) (KeyAlgorithm, bool) {
	candidates := []KeyAlgorithm{
		Ed25519{}, Ed448{},
		Falcon{Falcon512}, Falcon{Falcon1024},
		MLKEM{MLKEM512}, MLKEM{MLKEM768}, MLKEM{MLKEM1024},
		MLDSA{MLDSA44}, MLDSA{MLDSA65}, MLDSA{MLDSA87},
	}
	for _, p := range slhdsaParams {
		candidates = append(candidates, SLHDSA{p.params})
	}
	for _, alg := range candidates {
		if want, ok := PublicKeyOID(alg); ok && want.Equal(oid) {
			return alg, true
		}
	}
	return nil, false
}
