package http

import (
	"encoding/base64"
	"net/http"

	"github.com/aussiebroadwan/identity/internal/auth/service"
	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// MFAHandler handles the authenticated MFA management endpoints.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleSetup handles POST /v1/mfa/setup
//
//	@Summary		Start TOTP enrollment
//	@Description	Returns the secret, provisioning URI and a base64 PNG QR code. Repeated calls return the same pending secret.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MFASetupResponse
//	@Failure		409	{object}	authsdk.AuthResponse	"MFA already enabled"
//	@Router			/v1/mfa/setup [post].
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errNoSession.WriteError(w)
		return
	}

	setup, err := h.MFAService.SetupMFA(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := authsdk.MFASetupResponse{
		Success:         true,
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
	}
	if len(setup.QRCodePNG) > 0 {
		resp.QRCode = base64.StdEncoding.EncodeToString(setup.QRCodePNG)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleEnable handles POST /v1/mfa/enable
//
//	@Summary	Finish TOTP enrollment
//	@Tags		MFA
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		authsdk.MFACodeRequest	true	"Current code"
//	@Success	200		{object}	authsdk.StatusResponse
//	@Failure	400		{object}	authsdk.AuthResponse	"Setup not started"
//	@Failure	401		{object}	authsdk.AuthResponse	"Invalid code"
//	@Router		/v1/mfa/enable [post].
func (h *MFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	userID, code, ok := h.codeRequest(w, r)
	if !ok {
		return
	}

	if err := h.MFAService.EnableMFA(r.Context(), userID, code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("MFA enabled", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "MFA enabled"})
}

// HandleVerify handles POST /v1/mfa/verify
//
//	@Summary	Check a TOTP code for the caller
//	@Tags		MFA
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		authsdk.MFACodeRequest	true	"Current code"
//	@Success	200		{object}	authsdk.StatusResponse
//	@Failure	400		{object}	authsdk.AuthResponse	"MFA not enabled"
//	@Failure	401		{object}	authsdk.AuthResponse	"Invalid code"
//	@Router		/v1/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	userID, code, ok := h.codeRequest(w, r)
	if !ok {
		return
	}

	if err := h.MFAService.VerifyLogin(r.Context(), userID, code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Code verified"})
}

// HandleDisable handles DELETE /v1/mfa
//
//	@Summary	Disable MFA
//	@Tags		MFA
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.StatusResponse
//	@Failure	400	{object}	authsdk.AuthResponse	"MFA not enabled"
//	@Router		/v1/mfa [delete].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errNoSession.WriteError(w)
		return
	}

	if err := h.MFAService.DisableMFA(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("MFA disabled", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "MFA disabled"})
}

// HandleStatus handles GET /v1/mfa/status
//
//	@Summary	Report whether MFA is enabled
//	@Tags		MFA
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.MFAStatusResponse
//	@Router		/v1/mfa/status [get].
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errNoSession.WriteError(w)
		return
	}

	st, err := h.MFAService.GetStatus(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MFAStatusResponse{
		Success:   true,
		Enabled:   st.Enabled,
		EnabledAt: st.EnabledAt,
	})
}

func (h *MFAHandler) codeRequest(w http.ResponseWriter, r *http.Request) (userID, code string, ok bool) {
	userID, ok = httpx.UserIDFromContext(r.Context())
	if !ok {
		errNoSession.WriteError(w)
		return "", "", false
	}

	var req authsdk.MFACodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		errInvalidBody.WriteError(w)
		return "", "", false
	}
	return userID, req.Code, true
}
