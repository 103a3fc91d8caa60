package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkoutgo/internal/infrastructure/ratelimit"
	"checkoutgo/internal/shared/logger"
	"checkoutgo/internal/shared/utils"
)

// WebhookRateLimit limits webhook deliveries per provider and client IP.
// Redis unavailability fails open; dropping legitimate confirmations costs
// more than absorbing a burst.
func WebhookRateLimit(limiter ratelimit.RateLimiter, requestsPerMinute int, log logger.Interface) gin.HandlerFunc {
	limit := ratelimit.Limit{RequestsPerMinute: requestsPerMinute}

	return func(c *gin.Context) {
		key := fmt.Sprintf("webhook:%s:%s", c.Param("provider"), c.ClientIP())

		allowed, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			log.Warnw("rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		if !allowed {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
