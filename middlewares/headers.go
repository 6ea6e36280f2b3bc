package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
)

const TimestampLayout = "2006-01-02 15:04:05"

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		c.Next()
	}
}

// TimestampHeader stamps every response with the server time in UTC.
func TimestampHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Timestamp", time.Now().UTC().Format(TimestampLayout))
		c.Next()
	}
}
