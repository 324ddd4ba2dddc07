package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IssueStatus represents the lifecycle state of a loan.
type IssueStatus string

const (
	IssueStatusPending  IssueStatus = "Pending"
	IssueStatusIssued   IssueStatus = "Issued"
	IssueStatusReturned IssueStatus = "Returned"
	IssueStatusOverdue  IssueStatus = "Overdue"
)

// ActiveIssueStatuses are the statuses that hold a (user, book) slot.
var ActiveIssueStatuses = []IssueStatus{IssueStatusPending, IssueStatusIssued, IssueStatusOverdue}

// OnLoanStatuses are the statuses of a loan whose copy is out of the library.
var OnLoanStatuses = []IssueStatus{IssueStatusIssued, IssueStatusOverdue}

// Active reports whether s occupies the one-per-(user, book) slot.
func (s IssueStatus) Active() bool {
	return s == IssueStatusPending || s == IssueStatusIssued || s == IssueStatusOverdue
}

// OnLoan reports whether a copy is checked out under s.
func (s IssueStatus) OnLoan() bool {
	return s == IssueStatusIssued || s == IssueStatusOverdue
}

// Issue represents a single loan of one book to one user.
type Issue struct {
	ID         uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	UserID     uuid.UUID   `json:"userId" gorm:"type:char(36);not null;index:idx_issue_user_book"`
	BookID     uuid.UUID   `json:"bookId" gorm:"type:char(36);not null;index:idx_issue_user_book;index"`
	IssueDate  time.Time   `json:"issueDate" gorm:"not null"`
	DueDate    time.Time   `json:"dueDate" gorm:"not null;index"`
	ReturnDate *time.Time  `json:"returnDate"`
	Status     IssueStatus `json:"status" gorm:"type:varchar(20);not null;default:'Pending';index"`
	CreatedAt  time.Time   `json:"createdAt" gorm:"index"`
	UpdatedAt  time.Time   `json:"updatedAt"`

	// Relations
	User *User `json:"-" gorm:"foreignKey:UserID"`
	Book *Book `json:"-" gorm:"foreignKey:BookID"`
}

// BeforeCreate sets UUID before creating the record.
func (i *Issue) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// PromoteIfOverdue moves an Issued loan past its due date to Overdue.
// It reports whether the status changed.
func (i *Issue) PromoteIfOverdue(now time.Time) bool {
	if i.Status != IssueStatusIssued || !i.DueDate.Before(now) {
		return false
	}
	i.Status = IssueStatusOverdue
	return true
}
