package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/service"
)

type AccountHandler struct {
	svc   *service.AuthService
	authz *service.Authorizer
}

func NewAccountHandler(svc *service.AuthService, authz *service.Authorizer) *AccountHandler {
	return &AccountHandler{svc: svc, authz: authz}
}

// Signup godoc
// @Summary Create an account
// @Tags account
// @Accept json
// @Produce json
// @Param request body model.SignupRequest true "Username and password"
// @Success 201 {object} model.CreationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/account/signup [post]
func (h *AccountHandler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	if _, err := h.svc.Signup(c.Request.Context(), req.Username, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.CreationResponse{Created: true})
}

// Me godoc
// @Summary Get current account
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.ProtectedAccount
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/account/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	c.JSON(http.StatusOK, account.Protected())
}

// ChangeUsername godoc
// @Summary Change username
// @Description Accounts can only rename themselves.
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id (account:...)"
// @Param request body model.ChangeUsernameRequest true "New username"
// @Success 200 {object} model.ProtectedAccount
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/account/{id} [put]
func (h *AccountHandler) ChangeUsername(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	target, err := model.ParseID(model.TableAccount, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req model.ChangeUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.svc.ChangeUsername(c.Request.Context(), account, target, req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated.Protected())
}

// Permissions godoc
// @Summary List granted permissions
// @Description Own permissions are always readable; reading another account needs account.permission.get.
// @Tags account
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id (account:...)"
// @Success 200 {array} string
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/account/{id}/permissions [get]
func (h *AccountHandler) Permissions(c *gin.Context) {
	target, err := model.ParseID(model.TableAccount, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.canRead(c, target); err != nil {
		writeError(c, err)
		return
	}

	list, err := h.authz.Permissions(c.Request.Context(), target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AccountHandler) canRead(c *gin.Context, target model.ID) error {
	if account := GetAccount(c); account != nil {
		if account.ID == target {
			return nil
		}
		return h.authz.HasPermission(c.Request.Context(), account.ID, model.AccountPermissionGet)
	}
	if session := GetSession(c); session != nil && session.Target.Kind == model.TargetMachine {
		return h.authz.HasMachinePermission(session.Target.ID, model.AccountPermissionGet)
	}
	return service.ErrUnauthorized
}

// GrantPermission godoc
// @Summary Grant a permission
// @Description Requires account.permission.grant. Granting an already held permission succeeds.
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id (account:...)"
// @Param request body model.GrantPermissionRequest true "Permission name"
// @Success 200 {object} model.CreationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/account/{id}/permissions [post]
func (h *AccountHandler) GrantPermission(c *gin.Context) {
	target, err := model.ParseID(model.TableAccount, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req model.GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}
	permission, err := model.ParsePermission(req.Permission)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.authz.GrantPermission(c.Request.Context(), target, permission); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.CreationResponse{Created: true})
}

// Link godoc
// @Summary Link an external identity
// @Description Exchanges an OIDC authorization code and stores the subject as the account uuid.
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.LinkAccountRequest true "Authorization code"
// @Success 200 {object} model.ProtectedAccount
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/account/link [post]
func (h *AccountHandler) Link(c *gin.Context) {
	account := GetAccount(c)
	if account == nil {
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req model.LinkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.svc.LinkAccount(c.Request.Context(), account, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated.Protected())
}
