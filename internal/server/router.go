package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cinescout/cinescout/internal/logger"
)

// NewRouter assembles the gin engine: open health and metrics endpoints,
// referer-guarded search API.
func NewRouter(handler *Handler, refererAllowList []string, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORS())
	router.Use(RequestID())

	router.GET("/health", Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(RefererCheck(refererAllowList, log))
	{
		api.GET("/search", handler.Search)
		api.POST("/search", handler.Search)
		api.POST("/search/stream", handler.SearchStream)
	}

	return router
}
