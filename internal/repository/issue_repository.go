package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campuslib/internal/model"
)

// BookPopularity is one row of the most-issued ranking.
type BookPopularity struct {
	BookID     uuid.UUID `json:"bookId"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	ISBN       string    `json:"isbn" gorm:"column:isbn"`
	IssueCount int64     `json:"count"`
}

// IssueRepository defines loan persistence operations.
type IssueRepository interface {
	Create(ctx context.Context, issue *model.Issue) error
	Update(ctx context.Context, issue *model.Issue) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindByID loads the issue with its user and book.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Issue, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Issue, error)
	// FindActive returns the Pending, Issued or Overdue issue for the pair, if any.
	FindActive(ctx context.Context, userID, bookID uuid.UUID) (*model.Issue, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Issue, error)
	// ListByStatus returns issues in any of the statuses, ordered by due date.
	ListByStatus(ctx context.Context, statuses ...model.IssueStatus) ([]model.Issue, error)
	// MarkOverdue flips the given Issued loans to Overdue and returns the rows changed.
	MarkOverdue(ctx context.Context, ids []uuid.UUID) (int64, error)
	CountActiveByBook(ctx context.Context, bookID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[model.IssueStatus]int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	// MostIssued ranks books by how many of their issues are in the given statuses.
	MostIssued(ctx context.Context, limit int, statuses ...model.IssueStatus) ([]BookPopularity, error)
}

type issueRepository struct {
	db *gorm.DB
}

// NewIssueRepository creates a new issue repository.
func NewIssueRepository(db *gorm.DB) IssueRepository {
	return &issueRepository{db: db}
}

// Create creates a new issue.
func (r *issueRepository) Create(ctx context.Context, issue *model.Issue) error {
	return r.db.WithContext(ctx).Omit("User", "Book").Create(issue).Error
}

// Update updates an existing issue.
func (r *issueRepository) Update(ctx context.Context, issue *model.Issue) error {
	return r.db.WithContext(ctx).Omit("User", "Book").Save(issue).Error
}

// Delete removes an issue. Missing rows yield gorm.ErrRecordNotFound.
func (r *issueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Issue{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID finds an issue by ID.
func (r *issueRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Issue, error) {
	var issue model.Issue
	if err := r.db.WithContext(ctx).Preload("User").Preload("Book").
		Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

// FindByIDForUpdate finds an issue by ID with row-level lock for update.
func (r *issueRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Issue, error) {
	var issue model.Issue
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *issueRepository) FindActive(ctx context.Context, userID, bookID uuid.UUID) (*model.Issue, error) {
	var issue model.Issue
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND status IN ?", userID, bookID, model.ActiveIssueStatuses).
		First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

// ListByUser returns a user's issues, newest first.
func (r *issueRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Issue, error) {
	var issues []model.Issue
	if err := r.db.WithContext(ctx).Preload("Book").Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *issueRepository) ListByStatus(ctx context.Context, statuses ...model.IssueStatus) ([]model.Issue, error) {
	var issues []model.Issue
	if err := r.db.WithContext(ctx).Preload("Book").Preload("User").
		Where("status IN ?", statuses).
		Order("due_date ASC").
		Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *issueRepository) MarkOverdue(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Issue{}).
		Where("id IN ? AND status = ?", ids, model.IssueStatusIssued).
		Update("status", model.IssueStatusOverdue)
	return res.RowsAffected, res.Error
}

func (r *issueRepository) CountActiveByBook(ctx context.Context, bookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Issue{}).
		Where("book_id = ? AND status IN ?", bookID, model.ActiveIssueStatuses).
		Count(&count).Error
	return count, err
}

func (r *issueRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Issue{}).Count(&count).Error
	return count, err
}

func (r *issueRepository) CountByStatus(ctx context.Context) (map[model.IssueStatus]int64, error) {
	var rows []struct {
		Status model.IssueStatus
		Total  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Issue{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.IssueStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *issueRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Issue{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// MostIssued breaks ties by the earliest issue of each book.
func (r *issueRepository) MostIssued(ctx context.Context, limit int, statuses ...model.IssueStatus) ([]BookPopularity, error) {
	var rows []BookPopularity
	err := r.db.WithContext(ctx).Table("issues").
		Select("issues.book_id AS book_id, books.title AS title, books.author AS author, books.isbn AS isbn, " +
			"COUNT(*) AS issue_count, MIN(issues.created_at) AS first_issued_at").
		Joins("JOIN books ON books.id = issues.book_id").
		Where("issues.status IN ?", statuses).
		Group("issues.book_id, books.title, books.author, books.isbn").
		Order("issue_count DESC, first_issued_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
