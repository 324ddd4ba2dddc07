package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campuslib/internal/model"
)

// IssueEventRepository persists the issue audit trail.
type IssueEventRepository interface {
	CreateBatch(ctx context.Context, events []model.IssueEvent) error
	ListByIssue(ctx context.Context, issueID uuid.UUID) ([]model.IssueEvent, error)
}

type issueEventRepository struct {
	db *gorm.DB
}

// NewIssueEventRepository creates a new issue event repository.
func NewIssueEventRepository(db *gorm.DB) IssueEventRepository {
	return &issueEventRepository{db: db}
}

// CreateBatch inserts events in one statement.
func (r *issueEventRepository) CreateBatch(ctx context.Context, events []model.IssueEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&events).Error
}

// ListByIssue returns an issue's events in the order they happened.
func (r *issueEventRepository) ListByIssue(ctx context.Context, issueID uuid.UUID) ([]model.IssueEvent, error) {
	var events []model.IssueEvent
	if err := r.db.WithContext(ctx).
		Where("issue_id = ?", issueID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
