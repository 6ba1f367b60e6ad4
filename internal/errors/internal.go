package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithInternal sends a generic 500 response and aborts the request.
// The real error is expected to be logged by the caller; the body stays generic.
func AbortWithInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewAPIError("Internal server error", nil))
}
