package routes

import (
	handlers "storefront/internal/handlers/shared"
	"storefront/internal/middleware"
	"storefront/pkg/logger"
	"storefront/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupAnalyticsRoutes mounts the public ingestion endpoint and the
// secret-gated admin analytics endpoints under r (normally /api).
func SetupAnalyticsRoutes(r *gin.RouterGroup, analyticsHandler *handlers.AnalyticsHandler, liveHandler *websocket.Handler, adminSecret string, log *logger.Logger) {
	// Public ingestion
	r.POST("/analytics/track", analyticsHandler.Track)

	admin := r.Group("/admin/analytics")
	{
		admin.GET("", middleware.AdminRequired(adminSecret, log), analyticsHandler.GetSummary)
		admin.GET("/events", middleware.AdminRequired(adminSecret, log), analyticsHandler.ListEvents)
		admin.DELETE("/events", middleware.AdminRequired(adminSecret, log), analyticsHandler.PurgeEvents)
		admin.GET("/realtime", middleware.AdminRequired(adminSecret, log), analyticsHandler.GetRealtime)

		if liveHandler != nil {
			admin.GET("/live", middleware.AdminRequiredOrQueryToken(adminSecret, log), liveHandler.HandleWebSocket)
		}
	}
}
