package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citifix/backend/internal/models"
	"github.com/citifix/backend/internal/service"
)

type LocateRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (r LocateRequest) coordinates() models.Coordinates {
	return models.Coordinates{Lat: *r.Lat, Lng: *r.Lng}
}

type SelectCategoryRequest struct {
	Category string `json:"category" validate:"required"`
}

// @Summary Category catalog
// @Tags analysis
// @Produce json
// @Success 200 {array} models.CategoryOption
// @Router /api/categories [get]
func (h *Handler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, h.Dashboard.Categories())
}

// @Summary Upload a photo for analysis
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "photo"
// @Success 200 {object} models.AnalysisResult
// @Failure 400 {object} map[string]any
// @Failure 413 {object} map[string]any
// @Router /api/analysis [post]
func (h *Handler) Analyze(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		// Room for the multipart envelope around the file itself.
		limit := h.MaxUploadBytes + multipartSlack
		if c.Request.ContentLength > limit {
			h.uploadTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadTooLarge(c)
			return
		}
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "image file required", nil)
		return
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		h.uploadTooLarge(c)
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable upload", err.Error())
		return
	}
	defer f.Close()

	res, err := h.Dashboard.Analyze(c.Request.Context(), currentSession(c), service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

const multipartSlack = 64 << 10

func (h *Handler) uploadTooLarge(c *gin.Context) {
	writeError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Image is too large", gin.H{"max_bytes": h.MaxUploadBytes})
}

// @Summary Choose the category
// @Tags analysis
// @Accept json
// @Produce json
// @Param body body SelectCategoryRequest true "category"
// @Success 200 {object} models.AnalysisResult
// @Router /api/analysis/select [post]
func (h *Handler) SelectCategory(c *gin.Context) {
	var req SelectCategoryRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Dashboard.SelectCategory(currentSession(c), req.Category)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Report form state
// @Tags composer
// @Produce json
// @Success 200 {object} composer.State
// @Router /api/composer [get]
func (h *Handler) ComposerState(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Workspace.Composer.State())
}

// @Summary Offer the device location to the report form
// @Tags composer
// @Accept json
// @Produce json
// @Param body body LocateRequest true "coordinates"
// @Success 200 {object} map[string]any
// @Router /api/composer/location [put]
func (h *Handler) SetLocation(c *gin.Context) {
	var req LocateRequest
	if !h.bind(c, &req) {
		return
	}
	s := currentSession(c)
	place, ok, err := h.Dashboard.AcquireLocation(c.Request.Context(), s, req.coordinates())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"located": ok, "place": place, "state": s.Workspace.Composer.State()})
}

// @Summary Drop the location fix
// @Tags composer
// @Produce json
// @Success 200 {object} composer.State
// @Router /api/composer/location [delete]
func (h *Handler) ClearLocation(c *gin.Context) {
	s := currentSession(c)
	s.Workspace.Composer.ClearLocation()
	c.JSON(http.StatusOK, s.Workspace.Composer.State())
}

// @Summary Label coordinates
// @Tags composer
// @Accept json
// @Produce json
// @Param body body LocateRequest true "coordinates"
// @Success 200 {object} geocode.Place
// @Router /api/locate [post]
func (h *Handler) Locate(c *gin.Context) {
	var req LocateRequest
	if !h.bind(c, &req) {
		return
	}
	place, err := h.Dashboard.Locate(c.Request.Context(), req.coordinates())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, place)
}
