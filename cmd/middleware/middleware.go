package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/zlog"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
)

// LoggingMiddleware logs each request with its status and duration.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

// RequireAuth guards the admin routes: a valid Bearer session token is
// required, otherwise the request is rejected with a 401 envelope.
func RequireAuth(tokens *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			dto.UnauthorizedError(c, "Missing or malformed session token")
			c.Abort()
			return
		}

		email, err := tokens.ParseToken(tokenString)
		if err != nil {
			dto.UnauthorizedError(c, "Invalid or expired session token")
			c.Abort()
			return
		}

		c.Set("admin_email", email)
		c.Next()
	}
}
