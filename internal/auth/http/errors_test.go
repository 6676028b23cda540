package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/identity/internal/auth/service"
	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestWriteServiceError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "Invalid email or password"},
		{"wrapped token", fmt.Errorf("rotate: %w", service.ErrInvalidToken), http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, ""},
		{"validation", &service.ValidationError{Field: "email", Reason: "is required"}, http.StatusBadRequest, authsdk.ErrorCodeValidation, "email is required"},
		{"provider", service.ErrProviderInfoUnavailable, http.StatusBadGateway, authsdk.ErrorCodeProviderInfoUnavailable, ""},
		{"internal", service.ErrInternal, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "An internal error occurred"},
		{"unknown", errors.New("sqlite: disk I/O error at /var/lib/db"), http.StatusInternalServerError, authsdk.ErrorCodeServerError, "An internal error occurred"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/", nil), tc.err)

			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

			var body authsdk.AuthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.False(t, body.Success)
			require.Equal(t, tc.code, body.Error)
			if tc.msg != "" {
				require.Equal(t, tc.msg, body.Message)
			}
			require.NotContains(t, rec.Body.String(), "sqlite")
		})
	}
}
