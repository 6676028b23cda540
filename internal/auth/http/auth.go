package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/service"
	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/aussiebroadwan/identity/pkg/httpx"
)

// AuthHandler serves the login, session and logout endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleRegister handles POST /v1/auth/register
//
//	@Summary	Register a password account
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		authsdk.RegisterRequest	true	"Account details"
//	@Success	201		{object}	authsdk.AuthResponse
//	@Failure	400		{object}	authsdk.AuthResponse	"Validation error"
//	@Failure	409		{object}	authsdk.AuthResponse	"Email already registered"
//	@Router		/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		errInvalidBody.WriteError(w)
		return
	}

	res, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAuthResponse(res, "Registration successful"))
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in with email and password
//	@Description	Users with MFA enabled get requires_mfa=true and no tokens unless mfa_code is supplied.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		401		{object}	authsdk.AuthResponse	"Invalid credentials or MFA code"
//	@Failure		429		{object}	httpx.ErrorResponse		"Rate limit exceeded"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		errInvalidBody.WriteError(w)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password, req.MFACode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res, "Login successful"))
}

// HandleExternalLogin handles POST /v1/auth/external/{provider}
//
//	@Summary	Log in with Google, GitHub or Discord
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		provider	path		string							true	"google, github or discord"
//	@Param		request		body		authsdk.ExternalLoginRequest	true	"Provider credential"
//	@Success	200			{object}	authsdk.AuthResponse
//	@Failure	404			{object}	authsdk.AuthResponse	"Unsupported provider"
//	@Failure	502			{object}	authsdk.AuthResponse	"Provider unavailable"
//	@Router		/v1/auth/external/{provider} [post].
func (h *AuthHandler) HandleExternalLogin(w http.ResponseWriter, r *http.Request) {
	p, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		writeServiceError(w, r, service.ErrUnknownProvider)
		return
	}

	var req authsdk.ExternalLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		errInvalidBody.WriteError(w)
		return
	}

	cred, ok := externalCredential(p, req)
	if !ok {
		writeServiceError(w, r, &service.ValidationError{Field: "access_token", Reason: "or code is required, but not both"})
		return
	}

	res, err := h.AuthService.ExternalLogin(r.Context(), p, cred)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res, "Login successful"))
}

// externalCredential picks the credential out of req. The legacy token
// field is classified by shape.
func externalCredential(p domain.Provider, req authsdk.ExternalLoginRequest) (domain.ExternalCredential, bool) {
	token := strings.TrimSpace(req.AccessToken)
	code := strings.TrimSpace(req.Code)
	legacy := strings.TrimSpace(req.Token)

	switch {
	case token != "" && code == "":
		return domain.ExternalCredential{Kind: domain.CredentialAccessToken, Value: token}, true
	case code != "" && token == "":
		return domain.ExternalCredential{Kind: domain.CredentialAuthorizationCode, Value: code}, true
	case token == "" && code == "" && legacy != "":
		return domain.ExternalCredential{Kind: domain.GuessCredentialKind(p, legacy), Value: legacy}, true
	}
	return domain.ExternalCredential{}, false
}

// HandleVerifyMFALogin handles POST /v1/auth/mfa/verify-login
//
//	@Summary		Complete a login that requires MFA
//	@Description	Limited per IP and per user_id; the per user_id bucket ignores the client address.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyMFALoginRequest	true	"Pending user and code"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		401		{object}	authsdk.AuthResponse	"Invalid code"
//	@Failure		429		{object}	httpx.ErrorResponse		"Rate limit exceeded"
//	@Router			/v1/auth/mfa/verify-login [post].
func (h *AuthHandler) HandleVerifyMFALogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyMFALoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		errInvalidBody.WriteError(w)
		return
	}
	if req.UserID == "" {
		writeServiceError(w, r, &service.ValidationError{Field: "user_id", Reason: "is required"})
		return
	}

	res, err := h.AuthService.VerifyMFAAndLogin(r.Context(), req.UserID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res, "Login successful"))
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Rotate a refresh token
//	@Description	The presented refresh token is revoked and replaced; reusing it fails with invalid_token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		401		{object}	authsdk.AuthResponse	"Invalid, expired or revoked token"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		errInvalidBody.WriteError(w)
		return
	}

	res, err := h.AuthService.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res, "Token refreshed"))
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Revoke one session
//	@Description	Revokes the chain of refresh_token, or every session of the caller when it is omitted.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LogoutRequest	false	"Session to end"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Failure		401		{object}	authsdk.AuthResponse	"Missing or invalid access token"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errNoSession.WriteError(w)
		return
	}

	var req authsdk.LogoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		errInvalidBody.WriteError(w)
		return
	}

	if err := h.AuthService.Logout(r.Context(), userID, req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Logged out"})
}

// HandleRevokeAll handles POST /v1/auth/revoke-all
//
//	@Summary	Revoke every session of the caller
//	@Tags		Auth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.StatusResponse
//	@Failure	401	{object}	authsdk.AuthResponse	"Missing or invalid access token"
//	@Router		/v1/auth/revoke-all [post].
func (h *AuthHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errNoSession.WriteError(w)
		return
	}

	if err := h.AuthService.RevokeAll(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "All sessions revoked"})
}

func toAuthResponse(res *domain.AuthResult, message string) authsdk.AuthResponse {
	out := authsdk.AuthResponse{
		Success: true,
		Message: message,
		User: &authsdk.UserSummary{
			ID:         res.User.ID,
			FirstName:  res.User.FirstName,
			LastName:   res.User.LastName,
			Email:      res.User.Email,
			MFAEnabled: res.User.MFAEnabled,
		},
	}
	if res.RequiresMFA() {
		out.RequiresMFA = true
		out.Message = "MFA verification required"
		return out
	}

	exp := res.AccessTokenExpiresAt
	out.AccessToken = res.AccessToken
	out.RefreshToken = res.RefreshToken
	out.AccessTokenExpiresAt = &exp
	return out
}
