package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"familycal/internal/auth"
	appLog "familycal/internal/log"
)

const identityKey = "identity"

// cors allows the dashboard to be served from any origin. Preflight
// requests are answered here and never reach a handler.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requireAuth(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(c.Request.Context(), auth.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			appLog.Warn("request rejected", "path", c.Request.URL.Path, "reason", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(started).String(),
		}
		if v, ok := c.Get(identityKey); ok {
			kv = append(kv, "subject", v.(auth.Identity).Subject)
		}
		appLog.Debug("http request", kv...)
	}
}
