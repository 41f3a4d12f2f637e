package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey is the header that carries the API key.
const HeaderAPIKey = "X-Api-Key"

// RequireAPIKey returns a middleware that checks the API key in the X-Api-Key header
// or the apikey query parameter. An empty key disables the check.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(HeaderAPIKey)
		if provided == "" {
			provided = c.Query("apikey")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
