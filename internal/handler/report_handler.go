package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"campuslib/internal/service"
)

// ReportHandler serves librarian and admin reports.
type ReportHandler struct {
	svc service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(svc service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// OverdueIssues godoc
// @Summary List overdue loans
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]IssueResponse}
// @Failure 403 {object} errors.ErrorResponse
// @Router /reports/overdue [get]
func (h *ReportHandler) OverdueIssues(c echo.Context) error {
	issues, err := h.svc.OverdueIssues(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return respondList(c, newIssueResponses(issues), len(issues))
}

// Analytics godoc
// @Summary Library analytics
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.Analytics}
// @Failure 403 {object} errors.ErrorResponse
// @Router /reports/analytics [get]
func (h *ReportHandler) Analytics(c echo.Context) error {
	analytics, err := h.svc.Analytics(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "", analytics)
}

// IssueEvents godoc
// @Summary Audit trail of an issue
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} Response{data=[]model.IssueEvent}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /reports/issues/{id}/events [get]
func (h *ReportHandler) IssueEvents(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	events, err := h.svc.IssueHistory(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return respondList(c, events, len(events))
}
