package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/session"
)

const sessionKey = "citifix.session"

// SessionResolver is satisfied by *session.Manager.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// RequireSession resolves the bearer token and rejects the request without one.
func RequireSession(r SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := r.Resolve(c.Request.Context(), BearerToken(c))
		if err != nil {
			msg := "Authentication required"
			if errors.Is(err, auth.ErrSessionExpired) {
				msg = "Session expired, please sign in again"
			}
			_ = c.Error(err)
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", msg, nil)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}
