package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/myplayplanet/backend/internal/model"
)

// RegisterRoutes mounts every endpoint on router.
func RegisterRoutes(router *gin.Engine, guard *Guard, auth *AuthHandler, accounts *AccountHandler) {
	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/openapi.json", OpenAPIDoc)

	session := RequireSession(guard, model.Default)

	api := router.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", auth.Login)
	authGroup.POST("/refresh", auth.Refresh)
	authGroup.POST("/machine", auth.MachineLogin)
	authGroup.POST("/logout", session, auth.Logout)
	authGroup.PUT("/password", session, auth.ChangePassword)
	authGroup.PUT("/totp", session, auth.ToggleTOTP)
	authGroup.POST("/totp", session, auth.TOTPProvisioning)
	authGroup.POST("/totp/secret", session, auth.RegenerateTOTPSecret)

	accountGroup := api.Group("/account")
	accountGroup.POST("/signup", accounts.Signup)
	accountGroup.GET("/me", session, accounts.Me)
	accountGroup.POST("/link", session, accounts.Link)
	accountGroup.PUT("/:id", session, accounts.ChangeUsername)
	accountGroup.GET("/:id/permissions", session, accounts.Permissions)
	accountGroup.POST("/:id/permissions", RequireSession(guard, model.AccountPermissionGrant), accounts.GrantPermission)
}
