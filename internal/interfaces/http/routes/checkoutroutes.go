package routes

import (
	"github.com/gin-gonic/gin"

	"checkoutgo/internal/interfaces/http/handlers"
	"checkoutgo/internal/interfaces/http/middleware"
)

// SetupCheckoutRoutes registers the merchant API and the customer return
// routes. Return and cancel are unauthenticated; the customer arrives from
// the provider's hosted page with nothing but the reference.
func SetupCheckoutRoutes(
	api *gin.RouterGroup,
	checkoutHandler *handlers.CheckoutHandler,
	returnHandler *handlers.ReturnHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	checkouts := api.Group("/checkouts")

	authed := checkouts.Group("", authMiddleware.RequireAuth())
	{
		authed.POST("", checkoutHandler.CreateCheckout)
		authed.GET("/:reference", checkoutHandler.GetCheckout)
		authed.POST("/:reference/cancel-subscription", checkoutHandler.CancelSubscription)
	}

	checkouts.GET("/:reference/return", returnHandler.HandleReturn)
	checkouts.GET("/:reference/cancel", returnHandler.HandleCancel)
}
