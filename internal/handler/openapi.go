package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/myplayplanet/backend/docs"
)

// OpenAPIDoc returns the generated OpenAPI document with the host the
// request was addressed to.
func OpenAPIDoc(c *gin.Context) {
	spec := *docs.SwaggerInfo
	spec.Host = c.Request.Host
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(spec.ReadDoc()))
}
