// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/dto"
	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
	"github.com/Vanaheimr/Hermod-sub016/internal/profile"
)

// Error codes for API responses.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeProfileNotFound    = "PROFILE_NOT_FOUND"
	CodeInvalidCSR         = "INVALID_CSR"
	CodeUnsupportedKey     = "UNSUPPORTED_KEY_TYPE"
	CodeUnsupportedOp      = "UNSUPPORTED_OPERATION"
	CodeIssuerPolicy       = "ISSUER_POLICY_VIOLATION"
	CodeKeyMismatch        = "KEY_MISMATCH"
	CodeRequestCancelled   = "REQUEST_CANCELLED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// MapError maps an internal error to an HTTP status code and APIError.
// Internal errors never leak their message.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	status, code := classify(err)
	if code == CodeInternal {
		return status, &dto.APIError{Code: code, Message: "An internal error occurred"}
	}
	apiErr := &dto.APIError{Code: code, Message: err.Error()}

	var caErr *ca.CAError
	if errors.As(err, &caErr) {
		apiErr.Details = map[string]string{"operation": caErr.Op}
		if caErr.Serial != "" {
			apiErr.Details["serial"] = caErr.Serial
		}
	}
	return status, apiErr
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound, CodeProfileNotFound
	case errors.Is(err, ca.ErrCSRVerification):
		return http.StatusBadRequest, CodeInvalidCSR
	case errors.Is(err, ca.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity, CodeUnsupportedOp
	case errors.Is(err, ca.ErrUnsupportedKeyType):
		return http.StatusUnprocessableEntity, CodeUnsupportedKey
	case errors.Is(err, ca.ErrIssuerPolicyViolation):
		return http.StatusForbidden, CodeIssuerPolicy
	case errors.Is(err, credential.ErrKeyMismatch):
		return http.StatusUnprocessableEntity, CodeKeyMismatch
	case errors.Is(err, ca.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeRequestCancelled
	}
	return http.StatusInternalServerError, CodeInternal
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(resource, id string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]string{"id": id},
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string, details map[string]string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
	}
}
