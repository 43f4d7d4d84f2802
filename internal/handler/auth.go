package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/service"
)

type AuthHandler struct {
	svc      *service.AuthService
	machines *service.MachineAuthenticator
}

// NewAuthHandler wires the auth routes. machines may be nil.
func NewAuthHandler(svc *service.AuthService, machines *service.MachineAuthenticator) *AuthHandler {
	return &AuthHandler{svc: svc, machines: machines}
}

// Login godoc
// @Summary Login
// @Description Starts a session and ends any session the account already had. Accounts with TOTP enabled must send the current 6 digit token.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Username, password and optional TOTP token"
// @Success 200 {object} model.Session
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse "TOTP is required"
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req.Username, req.Password, req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Refresh godoc
// @Summary Refresh session
// @Description Rotates the refresh token and extends the session. A wrong or stale refresh token ends the session.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest true "Session id and refresh token"
// @Success 200 {object} model.Session
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	session, err := h.svc.Refresh(c.Request.Context(), req.SessionID, req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// MachineLogin godoc
// @Summary Machine login
// @Description Opens a machine session for a configured API client. The assertion is an HS256 JWT whose subject is the client id.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.MachineLoginRequest true "Signed client assertion"
// @Success 200 {object} model.Session
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/machine [post]
func (h *AuthHandler) MachineLogin(c *gin.Context) {
	var req model.MachineLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	session, err := h.machines.Login(c.Request.Context(), req.Assertion)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout godoc
// @Summary Logout
// @Description Ends the caller's session.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	session := GetSession(c)
	if session == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(c.Request.Context(), session); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "logged_out"})
}

// ChangePassword godoc
// @Summary Change password
// @Description Re-keys the account. The TOTP token is required when TOTP is enabled.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Old and new password"
// @Success 200 {object} model.CreationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), account, req.OldPassword, req.NewPassword, req.Token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.CreationResponse{Created: true})
}

// ToggleTOTP godoc
// @Summary Enable or disable TOTP
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.TOTPToggleRequest true "Password and current token"
// @Success 200 {object} model.ProtectedAccount
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/totp [put]
func (h *AuthHandler) ToggleTOTP(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req model.TOTPToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.svc.ToggleTOTP(c.Request.Context(), account, req.Password, req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated.Protected())
}

// TOTPProvisioning godoc
// @Summary Get TOTP provisioning URI
// @Description Returns the otpauth:// URI of the current secret for enrollment in an authenticator app.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.TOTPSecretRequest true "Password"
// @Success 200 {object} model.TOTPProvisioningResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/totp [post]
func (h *AuthHandler) TOTPProvisioning(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req model.TOTPSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	uri, err := h.svc.TOTPProvisioning(c.Request.Context(), account, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.TOTPProvisioningResponse{URI: uri})
}

// RegenerateTOTPSecret godoc
// @Summary Regenerate TOTP secret
// @Description Replaces the secret. The current token is required while TOTP is enabled.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.TOTPSecretRequest true "Password and optional token"
// @Success 200 {object} model.TOTPProvisioningResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/auth/totp/secret [post]
func (h *AuthHandler) RegenerateTOTPSecret(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req model.TOTPSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	uri, err := h.svc.RegenerateTOTPSecret(c.Request.Context(), account, req.Password, req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.TOTPProvisioningResponse{URI: uri})
}
