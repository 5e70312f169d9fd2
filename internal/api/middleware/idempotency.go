package middleware

import (
	"github.com/gin-gonic/gin"
)

// IdempotencyMiddleware copies the Idempotency-Key header into the request
// context so handlers can replay previously stored responses.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		c.Set("idempotency_key", idempotencyKey)
		c.Next()
	}
}
