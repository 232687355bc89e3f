package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/utils"
)

// Auth authenticates requests with either the static X-API-Key header
// or a Bearer JWT issued by the token endpoint. The root health
// endpoint and token endpoint stay open.
func Auth(settings config.Settings) gin.HandlerFunc {
	if settings.APIKey == "" {
		log.Fatalf("❌ ERROR: No API key set in environment. Set AUTODOCK_API_KEY environment variable")
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		// Websocket clients cannot set custom headers from browsers
		if path == "/" || path == "/api/auth/token" || strings.HasPrefix(path, "/ws/") {
			c.Next()
			return
		}

		if key := c.GetHeader("X-API-Key"); key != "" {
			if key == settings.APIKey {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Invalid API key",
			})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if token, found := strings.CutPrefix(authHeader, "Bearer "); found {
			if _, err := utils.ValidateToken(settings.JWTSecret, token); err == nil {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "Authentication required",
		})
		c.Abort()
	}
}
