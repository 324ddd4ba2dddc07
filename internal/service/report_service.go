package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "campuslib/internal/errors"
	"campuslib/internal/model"
	"campuslib/internal/repository"
)

const (
	popularBooksLimit    = 5
	recentIssueWindow    = 30 * 24 * time.Hour
	analyticsConcurrency = 4
)

// Overview holds the headline counts of the analytics snapshot.
type Overview struct {
	TotalBooks           int64 `json:"totalBooks"`
	TotalUsers           int64 `json:"totalUsers"`
	TotalIssues          int64 `json:"totalIssues"`
	TotalAvailableCopies int64 `json:"totalAvailableCopies"`
	RecentIssues         int64 `json:"recentIssues"`
}

// Analytics is a point-in-time usage summary.
type Analytics struct {
	Overview       Overview                    `json:"overview"`
	UsersByRole    map[model.Role]int64        `json:"usersByRole"`
	IssuesByStatus map[model.IssueStatus]int64 `json:"issuesByStatus"`
	PopularBooks   []repository.BookPopularity `json:"popularBooks"`
}

// ReportService derives read-only views over the stores.
type ReportService interface {
	OverdueIssues(ctx context.Context) ([]model.Issue, error)
	Analytics(ctx context.Context) (*Analytics, error)
	IssueHistory(ctx context.Context, issueID uuid.UUID) ([]model.IssueEvent, error)
}

type reportService struct {
	store repository.Store
	audit *AuditLog
	now   func() time.Time
}

// NewReportService creates a new report service.
func NewReportService(store repository.Store, audit *AuditLog, now func() time.Time) ReportService {
	if now == nil {
		now = time.Now
	}
	return &reportService{store: store, audit: audit, now: now}
}

// OverdueIssues promotes loans past due and returns every Overdue loan, earliest due first.
func (s *reportService) OverdueIssues(ctx context.Context) ([]model.Issue, error) {
	issues, err := s.store.Issues().ListByStatus(ctx, model.OnLoanStatuses...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	if err := promoteOverdue(ctx, s.store, s.audit, issues, s.now().UTC()); err != nil {
		return nil, err
	}

	overdue := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Status == model.IssueStatusOverdue {
			overdue = append(overdue, issue)
		}
	}
	return overdue, nil
}

// Analytics recomputes the usage snapshot. The aggregates are independent reads
// and run concurrently.
func (s *reportService) Analytics(ctx context.Context) (*Analytics, error) {
	var result Analytics
	books, users, issues := s.store.Books(), s.store.Users(), s.store.Issues()
	since := s.now().UTC().Add(-recentIssueWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyticsConcurrency)
	g.Go(func() (err error) {
		result.Overview.TotalBooks, err = books.Count(gctx)
		return wrap(err, "count books")
	})
	g.Go(func() (err error) {
		result.Overview.TotalUsers, err = users.Count(gctx)
		return wrap(err, "count users")
	})
	g.Go(func() (err error) {
		result.Overview.TotalIssues, err = issues.Count(gctx)
		return wrap(err, "count issues")
	})
	g.Go(func() (err error) {
		result.Overview.TotalAvailableCopies, err = books.SumAvailable(gctx)
		return wrap(err, "sum available copies")
	})
	g.Go(func() (err error) {
		result.Overview.RecentIssues, err = issues.CountCreatedSince(gctx, since)
		return wrap(err, "count recent issues")
	})
	g.Go(func() (err error) {
		result.UsersByRole, err = users.CountByRole(gctx)
		return wrap(err, "count users by role")
	})
	g.Go(func() (err error) {
		result.IssuesByStatus, err = issues.CountByStatus(gctx)
		return wrap(err, "count issues by status")
	})
	g.Go(func() (err error) {
		result.PopularBooks, err = issues.MostIssued(gctx, popularBooksLimit, model.IssueStatusIssued, model.IssueStatusReturned)
		return wrap(err, "rank books")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if result.PopularBooks == nil {
		result.PopularBooks = []repository.BookPopularity{}
	}
	return &result, nil
}

func wrap(err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IssueHistory returns the audit trail of an issue, including rejected ones.
func (s *reportService) IssueHistory(ctx context.Context, issueID uuid.UUID) ([]model.IssueEvent, error) {
	events, err := s.store.Events().ListByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("list issue events: %w", err)
	}
	if len(events) == 0 {
		return nil, apperrors.ErrIssueNotFound
	}
	return events, nil
}
