package approuters

import (
	"github.com/gin-gonic/gin"

	"Mercury/internal/configuration"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorGroup := router.Group("/mc/api/monitor")
	{
		monitorGroup.GET("/stats", container.MonitorHandler.GetHubStats)
		monitorGroup.GET("/health", container.MonitorHandler.GetHealth)
	}
}
