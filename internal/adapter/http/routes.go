package http

import (
	"github.com/gin-gonic/gin"

	"whatstasker/internal/adapter/http/handlers"
	"whatstasker/internal/adapter/http/middleware"
)

func RegisterRoutes(
	r *gin.Engine,
	healthHandler *handlers.HealthHandler,
	bridgeHandler *handlers.BridgeHandler,
	itemHandler *handlers.ItemHandler,
	negotiationHandler *handlers.NegotiationHandler,
	oauthHandler *handlers.OAuthHandler,
) {
	api := r.Group("/api")
	api.Use(middleware.LanguageMiddleware())
	{
		api.GET("/health", healthHandler.CheckHealth)
		api.GET("/health/report", healthHandler.CheckHealthReport)

		api.POST("/bridge/incoming", bridgeHandler.ReceiveMessage)
		api.GET("/bridge/outgoing", bridgeHandler.ListOutgoing)
		api.POST("/bridge/ack", bridgeHandler.AckMessages)

		api.GET("/users/:id/items", itemHandler.ListItems)
		api.GET("/users/:id/sessions.ics", itemHandler.ExportSessions)
		api.POST("/users/:id/slots/propose", negotiationHandler.ProposeSlots)
		api.POST("/users/:id/slots/finalize", negotiationHandler.FinalizeSlots)

		api.GET("/users/:id/calendar/connect", oauthHandler.Connect)
	}

	// Google redirects here; the path must match the registered redirect URI.
	r.GET("/oauth2callback", middleware.LanguageMiddleware(), oauthHandler.Callback)
}
