package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/service"
)

// writeError answers with {"error": "..."}. Unauthorized is always generic;
// internal failures are logged and hidden from the client.
func writeError(c *gin.Context, err error) {
	var svcErr *service.Error
	message := ""
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		abortJSON(c, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		abortJSON(c, http.StatusForbidden, orDefault(message, "forbidden"))
	case errors.Is(err, service.ErrInvalidInput):
		abortJSON(c, http.StatusBadRequest, orDefault(message, "invalid input"))
	case errors.Is(err, model.ErrInvalidID),
		errors.Is(err, model.ErrTableMismatch),
		errors.Is(err, model.ErrUnknownPermission):
		abortJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		abortJSON(c, http.StatusConflict, orDefault(message, "already exists"))
	case errors.Is(err, service.ErrTooManyRequests):
		abortJSON(c, http.StatusTooManyRequests, "too many requests")
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		abortJSON(c, http.StatusInternalServerError, "server error")
	}
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Error: message})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
