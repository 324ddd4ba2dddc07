package handler

import (
	"time"

	"github.com/google/uuid"

	"campuslib/internal/model"
)

// IssueResponse is an issue with summaries of its book and user.
type IssueResponse struct {
	ID         uuid.UUID          `json:"id"`
	UserID     uuid.UUID          `json:"userId"`
	BookID     uuid.UUID          `json:"bookId"`
	IssueDate  time.Time          `json:"issueDate"`
	DueDate    time.Time          `json:"dueDate"`
	ReturnDate *time.Time         `json:"returnDate"`
	Status     model.IssueStatus  `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Book       *model.BookSummary `json:"book,omitempty"`
	User       *model.UserSummary `json:"user,omitempty"`
}

func newIssueResponse(issue *model.Issue) IssueResponse {
	return IssueResponse{
		ID:         issue.ID,
		UserID:     issue.UserID,
		BookID:     issue.BookID,
		IssueDate:  issue.IssueDate,
		DueDate:    issue.DueDate,
		ReturnDate: issue.ReturnDate,
		Status:     issue.Status,
		CreatedAt:  issue.CreatedAt,
		UpdatedAt:  issue.UpdatedAt,
		Book:       issue.Book.Summary(),
		User:       issue.User.Summary(),
	}
}

func newIssueResponses(issues []model.Issue) []IssueResponse {
	out := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		out = append(out, newIssueResponse(&issues[i]))
	}
	return out
}
