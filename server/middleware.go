package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// requestMiddleware logs every request and feeds the HTTP metrics.
func (s *Server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		recordRequest(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), elapsed.Seconds())

		s.logger.Info("API request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", elapsed.Milliseconds())
	}
}

// authMiddleware enforces the configured authentication mode: a
// static bearer token when set, else basic credentials when set, else
// the API is open. Comparisons are constant-time.
func (s *Server) authMiddleware() gin.HandlerFunc {
	switch {
	case s.config.AuthToken != "":
		return func(c *gin.Context) {
			token := extractBearerToken(c.Request)
			if token == "" {
				c.Header("WWW-Authenticate", "Bearer")
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication token required")
				c.Abort()
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AuthToken)) != 1 {
				c.Header("WWW-Authenticate", "Bearer")
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				c.Abort()
				return
			}
			c.Set("user", "token")
			c.Next()
		}

	case s.config.BasicUser != "":
		return func(c *gin.Context) {
			user, pass, ok := c.Request.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.config.BasicUser)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.config.BasicPass)) == 1
			if !ok || !userOK || !passOK {
				c.Header("WWW-Authenticate", `Basic realm="certindex"`)
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
				c.Abort()
				return
			}
			c.Set("user", user)
			c.Next()
		}

	default:
		return func(c *gin.Context) { c.Next() }
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// respondError writes the standard error envelope.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"status":    "error",
		"code":      code,
		"message":   message,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
