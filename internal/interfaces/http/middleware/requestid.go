package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"checkoutgo/internal/shared/constants"
)

// RequestID tags every request, honoring an inbound X-Request-ID so
// merchant-side traces line up with ours.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(constants.ContextKeyRequestID, requestID)
		c.Header(constants.HeaderXRequestID, requestID)

		c.Next()
	}
}
