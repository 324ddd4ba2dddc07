package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "campuslib/internal/errors"
	"campuslib/internal/model"
	"campuslib/internal/policy"
	"campuslib/internal/repository"
)

// LoanPolicy holds loan and renewal lengths in days.
type LoanPolicy struct {
	StudentDays int
	FacultyDays int
	RenewalDays int
}

// DefaultLoanPolicy lends 14 days to most roles and 30 to faculty, renewing by 30.
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{StudentDays: 14, FacultyDays: 30, RenewalDays: 30}
}

// LoanPeriod returns how long a new loan for role lasts.
func (p LoanPolicy) LoanPeriod(role model.Role) time.Duration {
	if role == model.RoleFaculty {
		return days(p.FacultyDays)
	}
	return days(p.StudentDays)
}

// RenewalPeriod returns how far a renewal pushes the due date.
func (p LoanPolicy) RenewalPeriod() time.Duration {
	return days(p.RenewalDays)
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// IssueService runs the loan lifecycle: Pending -> Issued -> Returned, with
// Issued -> Overdue promoted lazily on reads and Pending -> deleted on rejection.
type IssueService interface {
	RequestIssue(ctx context.Context, userID, bookID uuid.UUID) (*model.Issue, error)
	ApproveIssue(ctx context.Context, actorID, issueID uuid.UUID) (*model.Issue, error)
	RejectIssue(ctx context.Context, actorID, issueID uuid.UUID) error
	ReturnBook(ctx context.Context, caller policy.Principal, issueID uuid.UUID) (*model.Issue, error)
	RenewBook(ctx context.Context, actorID, issueID uuid.UUID) (*model.Issue, error)
	ListMyIssues(ctx context.Context, userID uuid.UUID) ([]model.Issue, error)
	ListPendingIssues(ctx context.Context) ([]model.Issue, error)
}

// IssueOption customizes an IssueService.
type IssueOption func(*issueService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) IssueOption {
	return func(s *issueService) { s.now = now }
}

type issueService struct {
	store repository.Store
	audit *AuditLog
	locks *BookLocks
	loans LoanPolicy
	now   func() time.Time
}

// NewIssueService creates a new issue service.
func NewIssueService(store repository.Store, locks *BookLocks, audit *AuditLog, loans LoanPolicy, opts ...IssueOption) IssueService {
	s := &issueService{
		store: store,
		audit: audit,
		locks: locks,
		loans: loans,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *issueService) clock() time.Time {
	return s.now().UTC()
}

// RequestIssue creates a Pending issue. Copies are reserved only on approval.
func (s *issueService) RequestIssue(ctx context.Context, userID, bookID uuid.UUID) (*model.Issue, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}

	// Serializes the active-issue check with the insert for this book.
	unlock := s.locks.Lock(bookID)
	defer unlock()

	var issue *model.Issue
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		book, err := tx.Books().FindByID(ctx, bookID)
		if err != nil {
			return notFound(err, apperrors.ErrBookNotFound)
		}
		if book.AvailableCopies <= 0 {
			return apperrors.ErrBookUnavailable
		}

		existing, err := tx.Issues().FindActive(ctx, userID, bookID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find active issue: %w", err)
		}
		if existing != nil {
			return apperrors.ErrActiveIssueExists
		}

		now := s.clock()
		issue = &model.Issue{
			UserID:    userID,
			BookID:    bookID,
			IssueDate: now,
			DueDate:   now.Add(s.loans.LoanPeriod(user.Role)),
			Status:    model.IssueStatusPending,
		}
		if err := tx.Issues().Create(ctx, issue); err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
		issue.Book = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	issue.User = user
	s.audit.Record(ctx, issue, userID, model.IssueActionRequested)
	return issue, nil
}

// ApproveIssue issues a Pending request and takes one copy off the shelf in the same transaction.
func (s *issueService) ApproveIssue(ctx context.Context, actorID, issueID uuid.UUID) (*model.Issue, error) {
	current, err := s.store.Issues().FindByID(ctx, issueID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrIssueNotFound)
	}

	unlock := s.locks.Lock(current.BookID)
	defer unlock()

	var issue *model.Issue
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		issue, err = tx.Issues().FindByIDForUpdate(ctx, issueID)
		if err != nil {
			return notFound(err, apperrors.ErrIssueNotFound)
		}
		if issue.Status != model.IssueStatusPending {
			return apperrors.ErrIssueNotPending
		}

		book, err := tx.Books().FindByIDForUpdate(ctx, issue.BookID)
		if err != nil {
			return notFound(err, apperrors.ErrBookNotFound)
		}
		if book.AvailableCopies <= 0 {
			return apperrors.ErrBookUnavailable
		}
		taken, err := tx.Books().DecrementAvailable(ctx, book.ID)
		if err != nil {
			return fmt.Errorf("decrement copies: %w", err)
		}
		if !taken {
			return apperrors.ErrBookUnavailable
		}

		issue.Status = model.IssueStatusIssued
		issue.IssueDate = s.clock()
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return fmt.Errorf("update issue: %w", err)
		}
		book.AvailableCopies--
		issue.Book = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	issue.User = current.User
	s.audit.Record(ctx, issue, actorID, model.IssueActionApproved)
	return issue, nil
}

// RejectIssue deletes a Pending request. The audit trail keeps a record of it.
func (s *issueService) RejectIssue(ctx context.Context, actorID, issueID uuid.UUID) error {
	var issue *model.Issue
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		issue, err = tx.Issues().FindByIDForUpdate(ctx, issueID)
		if err != nil {
			return notFound(err, apperrors.ErrIssueNotFound)
		}
		if issue.Status != model.IssueStatusPending {
			return apperrors.ErrIssueNotPending
		}
		if err := tx.Issues().Delete(ctx, issueID); err != nil {
			return notFound(err, apperrors.ErrIssueNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, issue, actorID, model.IssueActionRejected)
	return nil
}

// ReturnBook closes a loan for its owner or staff and puts the copy back on the shelf.
func (s *issueService) ReturnBook(ctx context.Context, caller policy.Principal, issueID uuid.UUID) (*model.Issue, error) {
	current, err := s.store.Issues().FindByID(ctx, issueID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrIssueNotFound)
	}
	if err := policy.AuthorizeOwned(&caller, policy.OpIssueReturn, current.UserID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.BookID)
	defer unlock()

	var issue *model.Issue
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		issue, err = tx.Issues().FindByIDForUpdate(ctx, issueID)
		if err != nil {
			return notFound(err, apperrors.ErrIssueNotFound)
		}
		if !issue.Status.OnLoan() {
			return apperrors.ErrIssueNotOnLoan
		}

		now := s.clock()
		issue.Status = model.IssueStatusReturned
		issue.ReturnDate = &now
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return fmt.Errorf("update issue: %w", err)
		}

		// The book may have been deleted meanwhile; the loan still closes.
		book, err := tx.Books().FindByIDForUpdate(ctx, issue.BookID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find book: %w", err)
		}
		if _, err := tx.Books().IncrementAvailable(ctx, book.ID); err != nil {
			return fmt.Errorf("increment copies: %w", err)
		}
		book.AvailableCopies++
		book.Clamp()
		issue.Book = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	issue.User = current.User
	s.audit.Record(ctx, issue, caller.UserID, model.IssueActionReturned)
	return issue, nil
}

// RenewBook extends a faculty loan from its current due date and clears Overdue.
func (s *issueService) RenewBook(ctx context.Context, actorID, issueID uuid.UUID) (*model.Issue, error) {
	var issue *model.Issue
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		issue, err = tx.Issues().FindByIDForUpdate(ctx, issueID)
		if err != nil {
			return notFound(err, apperrors.ErrIssueNotFound)
		}

		owner, err := tx.Users().FindByID(ctx, issue.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find owner: %w", err)
		}
		if owner == nil || owner.Role != model.RoleFaculty {
			return apperrors.ErrRenewalNotAllowed
		}
		if !issue.Status.OnLoan() {
			return apperrors.ErrIssueNotOnLoan
		}

		issue.DueDate = issue.DueDate.Add(s.loans.RenewalPeriod())
		issue.Status = model.IssueStatusIssued
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return fmt.Errorf("update issue: %w", err)
		}
		issue.User = owner
		return nil
	})
	if err != nil {
		return nil, err
	}

	if book, err := s.store.Books().FindByID(ctx, issue.BookID); err == nil {
		issue.Book = book
	}
	s.audit.Record(ctx, issue, actorID, model.IssueActionRenewed)
	return issue, nil
}

// ListMyIssues returns the user's issues, newest first, after overdue promotion.
func (s *issueService) ListMyIssues(ctx context.Context, userID uuid.UUID) ([]model.Issue, error) {
	issues, err := s.store.Issues().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if err := promoteOverdue(ctx, s.store, s.audit, issues, s.clock()); err != nil {
		return nil, err
	}
	return issues, nil
}

// ListPendingIssues returns requests awaiting a librarian, newest first.
func (s *issueService) ListPendingIssues(ctx context.Context) ([]model.Issue, error) {
	issues, err := s.store.Issues().ListByStatus(ctx, model.IssueStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending issues: %w", err)
	}
	sortNewestFirst(issues)
	return issues, nil
}

// promoteOverdue applies Issue.PromoteIfOverdue to every loan in issues and
// persists the ones that changed before the caller responds.
func promoteOverdue(ctx context.Context, store repository.Store, audit *AuditLog, issues []model.Issue, now time.Time) error {
	var promoted []uuid.UUID
	for i := range issues {
		if issues[i].PromoteIfOverdue(now) {
			promoted = append(promoted, issues[i].ID)
		}
	}
	if len(promoted) == 0 {
		return nil
	}
	changed, err := store.Issues().MarkOverdue(ctx, promoted)
	if err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}
	if changed == 0 {
		return nil
	}
	for i := range issues {
		for _, id := range promoted {
			if issues[i].ID == id {
				audit.Record(ctx, &issues[i], uuid.Nil, model.IssueActionOverdue)
			}
		}
	}
	return nil
}

// notFound maps gorm's missing-row error to the given domain error.
func notFound(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}

func sortNewestFirst(issues []model.Issue) {
	slices.SortStableFunc(issues, func(a, b model.Issue) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
