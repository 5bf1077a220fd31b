package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRequired answers every request with setup instructions while the
// backend connection settings are missing.
func SetupRequired(missing []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(missing) == 0 || c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		abort(c, http.StatusServiceUnavailable, "SETUP_REQUIRED", "Backend connection is not configured", gin.H{
			"missing":      missing,
			"instructions": "Set BACKEND_URL and BACKEND_ANON_KEY in the environment or .env file and restart the server.",
		})
	}
}
