package routes

import (
	"github.com/gin-gonic/gin"

	"checkoutgo/internal/interfaces/http/handlers"
)

// SetupWebhookRoutes registers the provider webhook endpoint. Auth is the
// provider signature inside the delivery, checked by the gateway.
func SetupWebhookRoutes(
	api *gin.RouterGroup,
	webhookHandler *handlers.WebhookHandler,
	rateLimit gin.HandlerFunc,
) {
	webhooks := api.Group("/webhooks")
	if rateLimit != nil {
		webhooks.Use(rateLimit)
	}

	webhooks.POST("/:provider", webhookHandler.HandleWebhook)
}
