package ca

import (
	"errors"
	"fmt"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

// CAError represents a certificate authority operation error with structured context.
// It supports errors.Is() and errors.As().
type CAError struct {
	Op     string // Operation: "sign", "sign-csr", "serial"
	Serial string // Certificate serial number (if known)
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *CAError) Error() string {
	if e.Serial != "" {
		return fmt.Sprintf("ca %s [%s]: %v", e.Op, e.Serial, e.Err)
	}
	return fmt.Sprintf("ca %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CAError) Unwrap() error { return e.Err }

// NewCAError creates a new CAError with the given operation and error.
func NewCAError(op string, err error) *CAError {
	return &CAError{Op: op, Err: err}
}

// Sentinel errors for CA operations.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrValidation indicates a malformed request: an empty or past
	// validity window, or a serial shorter than 8 bytes.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedKeyType indicates an algorithm the engine cannot sign
	// with or derive a key usage for.
	ErrUnsupportedKeyType = pkicrypto.ErrUnsupportedKeyType

	// ErrUnsupportedOperation indicates signing was attempted with a
	// KEM-only key.
	ErrUnsupportedOperation = pkicrypto.ErrUnsupportedOperation

	// ErrIssuerPolicyViolation indicates the issuer cannot issue the
	// requested certificate: it is missing, is not a CA, or its key does
	// not match.
	ErrIssuerPolicyViolation = errors.New("issuer policy violation")

	// ErrCSRVerification indicates the CSR self-signature check failed.
	ErrCSRVerification = x509util.ErrCSRSignature
)
