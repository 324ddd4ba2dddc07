package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"campuslib/internal/service"
)

// IssueHandler serves the borrowing workflow.
type IssueHandler struct {
	svc service.IssueService
}

// NewIssueHandler creates a new issue handler.
func NewIssueHandler(svc service.IssueService) *IssueHandler {
	return &IssueHandler{svc: svc}
}

// IssueRequest asks to borrow a book.
type IssueRequest struct {
	BookID string `json:"bookId" validate:"required,uuid"`
}

// RequestIssue godoc
// @Summary Request a book
// @Tags issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body IssueRequest true "Book to borrow"
// @Success 201 {object} Response{data=IssueResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /issues/request [post]
func (h *IssueHandler) RequestIssue(c echo.Context) error {
	caller, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req IssueRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	bookID, err := uuid.Parse(req.BookID)
	if err != nil {
		return badRequest("invalid bookId", "INVALID_UUID")
	}

	issue, err := h.svc.RequestIssue(c.Request().Context(), caller.UserID, bookID)
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusCreated, "issue request submitted", newIssueResponse(issue))
}

// ListMyIssues godoc
// @Summary List my issues
// @Description Issues past their due date are reported as Overdue.
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]IssueResponse}
// @Failure 401 {object} errors.ErrorResponse
// @Router /issues [get]
func (h *IssueHandler) ListMyIssues(c echo.Context) error {
	caller, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	issues, err := h.svc.ListMyIssues(c.Request().Context(), caller.UserID)
	if err != nil {
		return respondError(err)
	}
	return respondList(c, newIssueResponses(issues), len(issues))
}

// ListPendingIssues godoc
// @Summary List pending requests
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]IssueResponse}
// @Failure 403 {object} errors.ErrorResponse
// @Router /issues/pending [get]
func (h *IssueHandler) ListPendingIssues(c echo.Context) error {
	issues, err := h.svc.ListPendingIssues(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return respondList(c, newIssueResponses(issues), len(issues))
}

// ApproveIssue godoc
// @Summary Approve a request
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} Response{data=IssueResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /issues/{id}/approve [put]
func (h *IssueHandler) ApproveIssue(c echo.Context) error {
	caller, id, err := h.target(c)
	if err != nil {
		return err
	}
	issue, err := h.svc.ApproveIssue(c.Request().Context(), caller, id)
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "issue approved", newIssueResponse(issue))
}

// RejectIssue godoc
// @Summary Reject a request
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /issues/{id}/reject [put]
func (h *IssueHandler) RejectIssue(c echo.Context) error {
	caller, id, err := h.target(c)
	if err != nil {
		return err
	}
	if err := h.svc.RejectIssue(c.Request().Context(), caller, id); err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "issue rejected", nil)
}

// ReturnBook godoc
// @Summary Return a book
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} Response{data=IssueResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /issues/{id}/return [put]
func (h *IssueHandler) ReturnBook(c echo.Context) error {
	caller, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	issue, err := h.svc.ReturnBook(c.Request().Context(), caller, id)
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "book returned", newIssueResponse(issue))
}

// RenewBook godoc
// @Summary Renew a loan
// @Description Faculty only. Extends the current due date.
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} Response{data=IssueResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /issues/{id}/renew [put]
func (h *IssueHandler) RenewBook(c echo.Context) error {
	caller, id, err := h.target(c)
	if err != nil {
		return err
	}
	issue, err := h.svc.RenewBook(c.Request().Context(), caller, id)
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "book renewed", newIssueResponse(issue))
}

func (h *IssueHandler) target(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	caller, err := mustPrincipal(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := pathID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return caller.UserID, id, nil
}
