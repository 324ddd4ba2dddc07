package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IssueAction names a lifecycle transition recorded in the audit trail.
type IssueAction string

const (
	IssueActionRequested IssueAction = "requested"
	IssueActionApproved  IssueAction = "approved"
	IssueActionRejected  IssueAction = "rejected"
	IssueActionReturned  IssueAction = "returned"
	IssueActionRenewed   IssueAction = "renewed"
	IssueActionOverdue   IssueAction = "overdue"
)

// IssueEvent is an append-only audit entry for an issue transition.
// Entries outlive the issue itself, which matters for rejected requests.
type IssueEvent struct {
	ID        uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	IssueID   uuid.UUID   `json:"issueId" gorm:"type:char(36);not null;index"`
	UserID    uuid.UUID   `json:"userId" gorm:"type:char(36);not null;index"`
	BookID    uuid.UUID   `json:"bookId" gorm:"type:char(36);not null;index"`
	ActorID   uuid.UUID   `json:"actorId" gorm:"type:char(36)"`
	Action    IssueAction `json:"action" gorm:"type:varchar(20);not null;index"`
	CreatedAt time.Time   `json:"createdAt" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (e *IssueEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
