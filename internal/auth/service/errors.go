package service

import (
	"errors"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/provider"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidMFACode     = errors.New("invalid_mfa_code")
	ErrMFANotEnabled      = errors.New("mfa_not_enabled")
	ErrMFAAlreadyEnabled  = errors.New("mfa_already_enabled")
	ErrMFANotConfigured   = errors.New("mfa_not_configured")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrDuplicateEmail     = errors.New("duplicate_email")
	ErrValidation         = errors.New("validation_error")
	ErrNotFound           = errors.New("not_found")
	ErrInternal           = errors.New("internal_error")

	ErrProviderInfoUnavailable = provider.ErrInfoUnavailable
	ErrExchangeFailed          = provider.ErrExchangeFailed
	ErrUnknownProvider         = domain.ErrUnknownProvider
)

// ValidationError reports a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// publicErrors are the failures callers may see. Anything else is internal.
var publicErrors = []error{
	ErrInvalidCredentials,
	ErrInvalidMFACode,
	ErrMFANotEnabled,
	ErrMFAAlreadyEnabled,
	ErrMFANotConfigured,
	ErrInvalidToken,
	ErrProviderInfoUnavailable,
	ErrExchangeFailed,
	ErrUnknownProvider,
	ErrDuplicateEmail,
	ErrNotFound,
}

// publicError reduces err to the sentinel it matches, or returns nil.
// Validation errors are kept whole since their text is ours.
func publicError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	if errors.Is(err, provider.ErrNotConfigured) {
		return ErrUnknownProvider
	}
	for _, s := range publicErrors {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}
