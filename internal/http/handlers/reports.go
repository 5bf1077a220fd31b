package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citifix/backend/internal/composer"
	"github.com/citifix/backend/internal/models"
	"github.com/citifix/backend/internal/reports"
)

// ReportView is a report as the signed-in user sees it.
type ReportView struct {
	models.Report
	Voted bool `json:"voted"`
}

type StatusRequest struct {
	Status models.Status `json:"status" validate:"required,status"`
}

// @Summary Submit a report
// @Tags reports
// @Accept json
// @Produce json
// @Param body body composer.Draft true "draft"
// @Success 201 {object} models.Report
// @Failure 400 {object} map[string]any
// @Failure 429 {object} map[string]any
// @Router /api/reports [post]
func (h *Handler) SubmitReport(c *gin.Context) {
	var draft composer.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	r, err := h.Dashboard.SubmitReport(c.Request.Context(), currentSession(c), draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// @Summary List reports
// @Tags reports
// @Produce json
// @Param q query string false "search text"
// @Param status query string false "status or All"
// @Param category query string false "category or All"
// @Success 200 {object} map[string]any
// @Router /api/reports [get]
func (h *Handler) ListReports(c *gin.Context) {
	var f reports.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid filter", err.Error())
		return
	}
	s := currentSession(c)
	list := h.Dashboard.Reports(c.Request.Context(), s, f)
	items := make([]ReportView, 0, len(list))
	for _, r := range list {
		items = append(items, ReportView{Report: r, Voted: s.Workspace.Votes.HasVoted(r.ID)})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// @Summary Reload reports from the backend
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/reports/refresh [post]
func (h *Handler) RefreshReports(c *gin.Context) {
	s := currentSession(c)
	if err := h.Dashboard.Refresh(c.Request.Context(), s); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": s.Workspace.Reports.Len()})
}

// @Summary Vote for a report
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} ReportView
// @Failure 404 {object} map[string]any
// @Router /api/reports/{id}/vote [post]
func (h *Handler) Vote(c *gin.Context) {
	s := currentSession(c)
	r, err := h.Dashboard.Vote(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ReportView{Report: r, Voted: true})
}

// @Summary Dashboard statistics
// @Tags reports
// @Produce json
// @Success 200 {object} models.Stats
// @Router /api/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.Dashboard.Statistics(c.Request.Context(), currentSession(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary Reports submitted by the current user
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/me/reports [get]
func (h *Handler) MyReports(c *gin.Context) {
	list, err := h.Dashboard.MyReports(c.Request.Context(), currentSession(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}

// @Summary Set report status
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param body body StatusRequest true "status"
// @Success 200 {object} models.Report
// @Router /api/reports/{id}/status [patch]
func (h *Handler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	r, err := h.Dashboard.ModerateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary Delete a report
// @Tags admin
// @Param id path string true "Report ID"
// @Success 204
// @Router /api/reports/{id} [delete]
func (h *Handler) DeleteReport(c *gin.Context) {
	if err := h.Dashboard.DeleteReport(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
