package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithForbidden sends a 403 Forbidden response and aborts the request.
func AbortWithForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, NewAPIError(message, nil))
}
