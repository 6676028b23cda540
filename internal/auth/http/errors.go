package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/identity/internal/auth/service"
	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

var (
	errInvalidBody = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "Invalid JSON body")
	errServer      = authsdk.NewAPIError(http.StatusInternalServerError, authsdk.ErrorCodeServerError, "An internal error occurred")
	errNoSession   = authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "The access token is missing or invalid")
)

// errorTable maps service errors onto responses. Order matters only where
// one error wraps another.
var errorTable = []struct {
	err  error
	resp *authsdk.APIError
}{
	{service.ErrInvalidCredentials, authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "Invalid email or password")},
	{service.ErrInvalidMFACode, authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidMFACode, "Invalid MFA code")},
	{service.ErrMFANotEnabled, authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeMFANotEnabled, "MFA is not enabled for this user")},
	{service.ErrMFAAlreadyEnabled, authsdk.NewAPIError(http.StatusConflict, authsdk.ErrorCodeMFAAlreadyEnabled, "MFA is already enabled for this user")},
	{service.ErrMFANotConfigured, authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeMFANotConfigured, "MFA setup has not been started")},
	{service.ErrInvalidToken, authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "Invalid or expired refresh token")},
	{service.ErrProviderInfoUnavailable, authsdk.NewAPIError(http.StatusBadGateway, authsdk.ErrorCodeProviderInfoUnavailable, "Could not retrieve user information from the provider")},
	{service.ErrExchangeFailed, authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeExchangeFailed, "Failed to exchange the authorization code")},
	{service.ErrUnknownProvider, authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeUnknownProvider, "Unsupported identity provider")},
	{service.ErrDuplicateEmail, authsdk.NewAPIError(http.StatusConflict, authsdk.ErrorCodeDuplicateEmail, "An account with this email already exists")},
	{service.ErrNotFound, authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "User not found")},
	{service.ErrInternal, errServer},
}

// writeServiceError writes the response for err. Unknown errors are logged
// and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, ve.Error()).WriteError(w)
		return
	}

	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			if e.resp.StatusCode >= 500 {
				log.Error("request failed", "err", err)
			}
			e.resp.WriteError(w)
			return
		}
	}

	log.Error("unhandled service error", "err", err)
	errServer.WriteError(w)
}
