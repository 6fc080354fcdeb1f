package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"presence-service/internal/response"
)

const HeaderInternalAPIKey = "X-Internal-API-Key"

// InternalAuth guards service-to-service routes with a shared API key.
// An empty key rejects every request.
func InternalAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(HeaderInternalAPIKey)
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			response.AbortWithError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid internal API key")
			return
		}
		c.Next()
	}
}
