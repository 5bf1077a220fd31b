package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/http/middleware"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (r CredentialsRequest) credentials() auth.Credentials {
	return auth.Credentials{Email: r.Email, Password: r.Password, FullName: r.FullName}
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// @Summary Sign up
// @Tags auth
// @Accept json
// @Produce json
// @Param body body CredentialsRequest true "credentials"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 429 {object} map[string]any
// @Router /api/auth/signup [post]
func (h *Handler) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.Accounts.SignUp(c.Request.Context(), c.ClientIP(), req.credentials())
	if err != nil {
		h.fail(c, err)
		return
	}
	if s == nil {
		c.JSON(http.StatusCreated, gin.H{
			"confirmation_required": true,
			"message":               "Account created! Please check your email to verify.",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"confirmation_required": false, "session": s})
}

// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body CredentialsRequest true "credentials"
// @Success 200 {object} auth.Session
// @Failure 400 {object} map[string]any
// @Failure 429 {object} map[string]any
// @Router /api/auth/signin [post]
func (h *Handler) SignIn(c *gin.Context) {
	var req CredentialsRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.Accounts.SignIn(c.Request.Context(), c.ClientIP(), req.credentials())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary Sign out
// @Tags auth
// @Success 204
// @Router /api/auth/signout [post]
func (h *Handler) SignOut(c *gin.Context) {
	s := currentSession(c)
	if err := h.Accounts.SignOut(c.Request.Context(), s.Token); err != nil {
		// The local session is already gone; the provider keeps its own expiry.
		h.Logger.Warn().Err(err).Str("user_id", s.Identity.UserID).Msg("provider sign out failed")
	}
	c.Status(http.StatusNoContent)
}

// @Summary Refresh the access token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest true "refresh token"
// @Success 200 {object} auth.Session
// @Router /api/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.Accounts.Refresh(c.Request.Context(), middleware.BearerToken(c), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary Send a password reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param body body ResetPasswordRequest true "email"
// @Success 200 {object} map[string]any
// @Router /api/auth/reset-password [post]
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.Accounts.ResetPassword(c.Request.Context(), c.ClientIP(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent! Check your inbox."})
}

// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/auth/session [get]
func (h *Handler) Session(c *gin.Context) {
	s := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"user":         s.Identity,
		"display_name": s.Identity.DisplayName(),
		"expires_at":   s.ExpiresAt,
		"voted":        s.Workspace.Votes.Voted(),
	})
}
