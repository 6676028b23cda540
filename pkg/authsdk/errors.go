package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeValidation              = "validation_error"
	ErrorCodeDuplicateEmail          = "duplicate_email"
	ErrorCodeInvalidCredentials      = "invalid_credentials"
	ErrorCodeInvalidMFACode          = "invalid_mfa_code"
	ErrorCodeMFANotEnabled           = "mfa_not_enabled"
	ErrorCodeMFAAlreadyEnabled       = "mfa_already_enabled"
	ErrorCodeMFANotConfigured        = "mfa_not_configured"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeProviderInfoUnavailable = "provider_info_unavailable"
	ErrorCodeExchangeFailed          = "exchange_failed"
	ErrorCodeUnknownProvider         = "unknown_provider"
	ErrorCodeNotFound                = "not_found"
	ErrorCodeRateLimited             = "rate_limit_exceeded"
	ErrorCodeServerError             = "internal_error"
)

// APIError is a non-2xx response. The server writes it and the client
// returns it.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WriteError writes e as an unsuccessful AuthResponse-shaped body.
func (e *APIError) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(AuthResponse{
		Success: false,
		Error:   e.Code,
		Message: e.Message,
	})
}

// WithMessage returns a copy of e with a different message.
func (e *APIError) WithMessage(msg string) *APIError {
	c := *e
	c.Message = msg
	return &c
}

func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// parseErrorResponse turns a non-2xx response into an *APIError. It
// understands both the service's own bodies and the {error,
// error_description} bodies written by middleware.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var payload struct {
		Error            string `json:"error"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg := payload.Message
		if msg == "" {
			msg = payload.ErrorDescription
		}
		return &APIError{StatusCode: resp.StatusCode, Code: payload.Error, Message: msg}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
