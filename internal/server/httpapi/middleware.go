package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/server/auth"
)

const uploaderIDKey = "uploader_id"

// uploaderMiddleware reads the optional bearer token. Requests without an
// Authorization header pass through anonymously; a header carrying a bad
// or expired token is rejected.
func (s *HTTPServer) uploaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		if header == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || token == "" {
			abortWithError(c, http.StatusUnauthorized, "malformed authorization header")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			s.logger.Warn(c.Request.Context(), "rejected bearer token", "error", err)
			abortWithError(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set(uploaderIDKey, userID)
		c.Next()
	}
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
