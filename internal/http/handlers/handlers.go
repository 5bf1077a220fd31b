package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/classifier"
	"github.com/citifix/backend/internal/composer"
	"github.com/citifix/backend/internal/db"
	"github.com/citifix/backend/internal/geocode"
	"github.com/citifix/backend/internal/http/middleware"
	"github.com/citifix/backend/internal/reports"
	"github.com/citifix/backend/internal/resilience"
	"github.com/citifix/backend/internal/service"
	"github.com/citifix/backend/internal/session"
	"github.com/citifix/backend/internal/storage"
	"github.com/citifix/backend/internal/voting"
)

type Handler struct {
	Dashboard *service.Dashboard
	Accounts  *service.Accounts
	Repo      db.Repository
	Validator *validator.Validate
	Logger    zerolog.Logger

	// MaxUploadBytes bounds an uploaded image; zero means no bound.
	MaxUploadBytes int64
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.Repo == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Repo.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// bind decodes the JSON body into dst and runs the struct validator.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if h.Validator == nil {
		return true
	}
	if err := h.Validator.Struct(dst); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

// fail maps a service error onto the response envelope.
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *composer.ValidationError
	var ierr *auth.InputError
	var apiErr *auth.APIError
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message, gin.H{"field": verr.Field})
	case errors.As(err, &ierr):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", ierr.Message, gin.H{"field": ierr.Field})
	case errors.Is(err, classifier.ErrUnknownCategory):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown category", nil)
	case errors.Is(err, geocode.ErrInvalidCoordinates):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Coordinates out of range", nil)
	case errors.Is(err, storage.ErrNotImage):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Please upload an image file", nil)
	case errors.Is(err, composer.ErrTooSoon):
		writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", composer.RateLimitMessage, nil)
	case errors.Is(err, composer.ErrSubmitInProgress):
		writeError(c, http.StatusConflict, "SUBMIT_IN_PROGRESS", "A submission is already in progress", nil)
	case errors.Is(err, auth.ErrSessionExpired):
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Session expired, please sign in again", nil)
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, session.ErrNoToken):
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
	case errors.Is(err, service.ErrReportNotFound), errors.Is(err, reports.ErrNotFound),
		errors.Is(err, voting.ErrUnknownReport), errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Report not found", nil)
	case resilience.IsOpen(err):
		writeError(c, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "Backend temporarily unavailable, please try again later", err.Error())
	case errors.As(err, &apiErr) && auth.IsClientError(err):
		writeError(c, apiErr.Status, "AUTH_ERROR", auth.FriendlyMessage(err), apiErr.Code)
	default:
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("backend call failed")
		writeError(c, http.StatusBadGateway, "BACKEND_ERROR", "Backend request failed", err.Error())
	}
}

func currentSession(c *gin.Context) *session.Session {
	return middleware.CurrentSession(c)
}
