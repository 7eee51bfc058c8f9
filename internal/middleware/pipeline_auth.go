package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
)

// PipelineAuthMiddleware guards the price feed and rebuild endpoints with a
// shared X-API-Key. An empty configured key disables the pipeline entirely.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
