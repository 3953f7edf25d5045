package crypto

import (
	"crypto/elliptic"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/slhdsa"
)

const (
	// DefaultRSABits is the modulus size used when none is requested.
	DefaultRSABits = 4096
	// MinRSABits is the smallest modulus the factory will generate.
	MinRSABits = 2048
	// DefaultCurveName is the curve used when none is requested.
	DefaultCurveName = "secp256r1"
)

// Curve is a NIST prime curve supported for ECDSA.
type Curve int

const (
	P256 Curve = iota + 1
	P384
	P521
)

var curveNames = map[string]Curve{
	"secp256r1":  P256,
	"prime256v1": P256,
	"p-256":      P256,
	"p256":       P256,
	"secp384r1":  P384,
	"p-384":      P384,
	"p384":       P384,
	"secp521r1":  P521,
	"p-521":      P521,
	"p521":       P521,
}

// ParseCurve maps a SEC 2, ANSI X9.62 or NIST curve name to a Curve.
func ParseCurve(name string) (Curve, error) {
	c, ok := curveNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: curve %q", ErrUnsupportedKeyType, name)
	}
	return c, nil
}

func (c Curve) String() string {
	switch c {
	case P256:
		return "P256"
	case P384:
		return "P384"
	case P521:
		return "P521"
	}
	return fmt.Sprintf("Curve(%d)", int(c))
}

// FieldBits returns the size of the curve's base field in bits.
func (c Curve) FieldBits() int {
	switch c {
	case P256:
		return 256
	case P384:
		return 384
	case P521:
		return 521
	}
	return 0
}

func (c Curve) elliptic() elliptic.Curve {
	switch c {
	case P256:
		return elliptic.P256()
	case P384:
		return elliptic.P384()
	case P521:
		return elliptic.P521()
	}
	return nil
}

func curveFromElliptic(ec elliptic.Curve) (Curve, bool) {
	switch ec {
	case elliptic.P256():
		return P256, true
	case elliptic.P384():
		return P384, true
	case elliptic.P521():
		return P521, true
	}
	return 0, false
}

// FalconParams selects the Falcon degree.
type FalconParams int

const (
	Falcon512 FalconParams = iota + 1
	Falcon1024
)

// ParseFalconParams accepts "falcon-512", "falcon512" and "falcon_512" spellings.
func ParseFalconParams(name string) (FalconParams, error) {
	switch normalizeParamName(name) {
	case "falcon512":
		return Falcon512, nil
	case "falcon1024":
		return Falcon1024, nil
	}
	return 0, fmt.Errorf("%w: falcon parameter set %q", ErrUnsupportedKeyType, name)
}

func (p FalconParams) String() string {
	switch p {
	case Falcon512:
		return "falcon-512"
	case Falcon1024:
		return "falcon-1024"
	}
	return fmt.Sprintf("FalconParams(%d)", int(p))
}

// logn returns the base-2 logarithm of the lattice degree.
func (p FalconParams) logn() uint {
	if p == Falcon1024 {
		return 10
	}
	return 9
}

// MLKEMParams selects the ML-KEM security level.
type MLKEMParams int

const (
	MLKEM512 MLKEMParams = iota + 1
	MLKEM768
	MLKEM1024
)

// ParseMLKEMParams accepts "ml-kem-768", "mlkem768" and "ML_KEM_768" spellings.
func ParseMLKEMParams(name string) (MLKEMParams, error) {
	switch normalizeParamName(name) {
	case "mlkem512":
		return MLKEM512, nil
	case "mlkem768":
		return MLKEM768, nil
	case "mlkem1024":
		return MLKEM1024, nil
	}
	return 0, fmt.Errorf("%w: ml-kem parameter set %q", ErrUnsupportedKeyType, name)
}

func (p MLKEMParams) String() string {
	switch p {
	case MLKEM512:
		return "ml-kem-512"
	case MLKEM768:
		return "ml-kem-768"
	case MLKEM1024:
		return "ml-kem-1024"
	}
	return fmt.Sprintf("MLKEMParams(%d)", int(p))
}

// MLDSAParams selects the ML-DSA parameter set (NIST levels 2, 3 and 5).
type MLDSAParams int

const (
	MLDSA44 MLDSAParams = iota + 1
	MLDSA65
	MLDSA87
)

// ParseMLDSAParams accepts "ml-dsa-65", "mldsa65" and "ML_DSA_65" spellings.
func ParseMLDSAParams(name string) (MLDSAParams, error) {
	switch normalizeParamName(name) {
	case "mldsa44":
		return MLDSA44, nil
	case "mldsa65":
		return MLDSA65, nil
	case "mldsa87":
		return MLDSA87, nil
	}
	return 0, fmt.Errorf("%w: ml-dsa parameter set %q", ErrUnsupportedKeyType, name)
}

func (p MLDSAParams) String() string {
	switch p {
	case MLDSA44:
		return "ml-dsa-44"
	case MLDSA65:
		return "ml-dsa-65"
	case MLDSA87:
		return "ml-dsa-87"
	}
	return fmt.Sprintf("MLDSAParams(%d)", int(p))
}

// SLHDSAParams selects one of the twelve FIPS 205 parameter sets.
type SLHDSAParams int

const (
	SLHDSASHA2_128s SLHDSAParams = iota + 1
	SLHDSASHA2_128f
	SLHDSASHA2_192s
	SLHDSASHA2_192f
	SLHDSASHA2_256s
	SLHDSASHA2_256f
	SLHDSASHAKE_128s
	SLHDSASHAKE_128f
	SLHDSASHAKE_192s
	SLHDSASHAKE_192f
	SLHDSASHAKE_256s
	SLHDSASHAKE_256f
)

var slhdsaParams = []struct {
	params SLHDSAParams
	name   string
	id     slhdsa.ID
}{
	{SLHDSASHA2_128s, "slh-dsa-sha2-128s", slhdsa.SHA2_128s},
	{SLHDSASHA2_128f, "slh-dsa-sha2-128f", slhdsa.SHA2_128f},
	{SLHDSASHA2_192s, "slh-dsa-sha2-192s", slhdsa.SHA2_192s},
	{SLHDSASHA2_192f, "slh-dsa-sha2-192f", slhdsa.SHA2_192f},
	{SLHDSASHA2_256s, "slh-dsa-sha2-256s", slhdsa.SHA2_256s},
	{SLHDSASHA2_256f, "slh-dsa-sha2-256f", slhdsa.SHA2_256f},
	{SLHDSASHAKE_128s, "slh-dsa-shake-128s", slhdsa.SHAKE_128s},
	{SLHDSASHAKE_128f, "slh-dsa-shake-128f", slhdsa.SHAKE_128f},
	{SLHDSASHAKE_192s, "slh-dsa-shake-192s", slhdsa.SHAKE_192s},
	{SLHDSASHAKE_192f, "slh-dsa-shake-192f", slhdsa.SHAKE_192f},
	{SLHDSASHAKE_256s, "slh-dsa-shake-256s", slhdsa.SHAKE_256s},
	{SLHDSASHAKE_256f, "slh-dsa-shake-256f", slhdsa.SHAKE_256f},
}

// ParseSLHDSAParams accepts "slh-dsa-sha2-128s" and the underscore spelling.
func ParseSLHDSAParams(name string) (SLHDSAParams, error) {
	want := normalizeParamName(name)
	for _, p := range slhdsaParams {
		if normalizeParamName(p.name) == want {
			return p.params, nil
		}
	}
	return 0, fmt.Errorf("%w: slh-dsa parameter set %q", ErrUnsupportedKeyType, name)
}

func (p SLHDSAParams) String() string {
	for _, e := range slhdsaParams {
		if e.params == p {
			return e.name
		}
	}
	return fmt.Sprintf("SLHDSAParams(%d)", int(p))
}

func (p SLHDSAParams) id() (slhdsa.ID, bool) {
	for _, e := range slhdsaParams {
		if e.params == p {
			return e.id, true
		}
	}
	return 0, false
}

func slhdsaParamsFromID(id slhdsa.ID) (SLHDSAParams, bool) {
	for _, e := range slhdsaParams {
		if e.id == id {
			return e.params, true
		}
	}
	return 0, false
}

// normalizeParamName lower-cases and strips separators so that
// "ML_DSA_65", "ml-dsa-65" and "mldsa65" compare equal.
func normalizeParamName(s string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(s)))
}
