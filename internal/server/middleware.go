package server

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/cinescout/cinescout/internal/errors"
	"github.com/cinescout/cinescout/internal/logger"
)

// RequestID attaches a correlation id to every request. An inbound
// X-Request-ID is honored so callers can trace across systems.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// CORS mirrors the permissive browser policy of the rest of the stack.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RefererCheck rejects browser requests whose Referer host is not on the
// allow-list. A completely absent Referer is allowed through (non-browser
// callers send none); a present but unparseable or mismatched one is
// rejected. Subdomains of an allowed host are accepted.
func RefererCheck(allowList []string, log *logger.Logger) gin.HandlerFunc {
	allowed := make([]string, 0, len(allowList))
	for _, host := range allowList {
		allowed = append(allowed, strings.ToLower(strings.TrimSpace(host)))
	}
	log = log.WithComponent("referer-check")

	return func(c *gin.Context) {
		referer := c.GetHeader("Referer")
		if referer == "" {
			c.Next()
			return
		}

		parsed, err := url.Parse(referer)
		if err != nil || parsed.Hostname() == "" {
			log.Warn("rejecting malformed referer", slog.String("referer", referer))
			apierrors.AbortWithForbidden(c, "Unauthorized")
			return
		}

		host := strings.ToLower(parsed.Hostname())
		for _, candidate := range allowed {
			if host == candidate || strings.HasSuffix(host, "."+candidate) {
				c.Next()
				return
			}
		}

		log.Warn("rejecting referer not on allow-list", slog.String("host", host))
		apierrors.AbortWithForbidden(c, "Unauthorized")
	}
}
