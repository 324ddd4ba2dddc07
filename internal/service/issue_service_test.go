package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "campuslib/internal/errors"
	"campuslib/internal/model"
)

func TestIssueService_LastCopyBlocksNextRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	bob := f.user(t, "bob@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0001", 1)

	issue, err := f.issues.RequestIssue(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusPending, issue.Status)
	assert.Equal(t, 1, f.availableCopies(t, book), "requests do not reserve copies")

	approved, err := f.issues.ApproveIssue(ctx, librarian.ID, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusIssued, approved.Status)
	assert.Equal(t, 0, approved.Book.AvailableCopies)
	assert.Equal(t, 0, f.availableCopies(t, book))

	_, err = f.issues.RequestIssue(ctx, bob.ID, book.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidOperation)
	assert.Equal(t, apperrors.ErrBookUnavailable, err)
}

func TestIssueService_ApproveTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0002", 2)

	issue := f.issued(t, alice, book, librarian)

	_, err := f.issues.ApproveIssue(ctx, librarian.ID, issue.ID)
	assert.Equal(t, apperrors.ErrIssueNotPending, err)
	assert.Equal(t, 1, f.availableCopies(t, book), "second approval must not take another copy")
}

func TestIssueService_ApproveRechecksAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	bob := f.user(t, "bob@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0003", 1)

	first, err := f.issues.RequestIssue(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	second, err := f.issues.RequestIssue(ctx, bob.ID, book.ID)
	require.NoError(t, err)

	_, err = f.issues.ApproveIssue(ctx, librarian.ID, first.ID)
	require.NoError(t, err)
	_, err = f.issues.ApproveIssue(ctx, librarian.ID, second.ID)
	assert.Equal(t, apperrors.ErrBookUnavailable, err)

	still, err := f.store.Issues().FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusPending, still.Status, "failed approval leaves the issue untouched")
	assert.Equal(t, 0, f.availableCopies(t, book))
}

func TestIssueService_DueDateByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.user(t, "student@campus.edu", model.RoleStudent)
	faculty := f.user(t, "faculty@campus.edu", model.RoleFaculty)
	book := f.book(t, "978-0004", 2)
	requestedAt := f.clock.Now()

	studentIssue, err := f.issues.RequestIssue(ctx, student.ID, book.ID)
	require.NoError(t, err)
	facultyIssue, err := f.issues.RequestIssue(ctx, faculty.ID, book.ID)
	require.NoError(t, err)

	assert.WithinDuration(t, requestedAt, studentIssue.IssueDate, time.Millisecond)
	assert.WithinDuration(t, requestedAt.Add(14*24*time.Hour), studentIssue.DueDate, time.Millisecond)
	assert.WithinDuration(t, requestedAt.Add(30*24*time.Hour), facultyIssue.DueDate, time.Millisecond)
}

func TestIssueService_ApproveResetsIssueDateKeepsDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.user(t, "student@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0005", 1)

	issue, err := f.issues.RequestIssue(ctx, student.ID, book.ID)
	require.NoError(t, err)
	due := issue.DueDate

	f.clock.Advance(2 * time.Hour)
	approved, err := f.issues.ApproveIssue(ctx, librarian.ID, issue.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, f.clock.Now(), approved.IssueDate, time.Millisecond)
	assert.WithinDuration(t, due, approved.DueDate, time.Millisecond)
}

func TestIssueService_DuplicateActiveRequestConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0006", 3)

	_, err := f.issues.RequestIssue(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	_, err = f.issues.RequestIssue(ctx, alice.ID, book.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	pending, err := f.issues.ListPendingIssues(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	issue, err := f.issues.ApproveIssue(ctx, librarian.ID, pending[0].ID)
	require.NoError(t, err)
	_, err = f.issues.RequestIssue(ctx, alice.ID, book.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "an Issued loan still holds the slot")

	_, err = f.issues.ReturnBook(ctx, principal(alice), issue.ID)
	require.NoError(t, err)
	_, err = f.issues.RequestIssue(ctx, alice.ID, book.ID)
	assert.NoError(t, err, "returned loans free the slot")
}

func TestIssueService_RequestUnknownBook(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)

	_, err := f.issues.RequestIssue(context.Background(), alice.ID, uuid.New())
	assert.Equal(t, apperrors.ErrBookNotFound, err)
}

func TestIssueService_RenewExtendsFromDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	faculty := f.user(t, "faculty@campus.edu", model.RoleFaculty)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0007", 1)

	issue := f.issued(t, faculty, book, librarian)
	due := issue.DueDate

	renewed, err := f.issues.RenewBook(ctx, faculty.ID, issue.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, due.Add(30*24*time.Hour), renewed.DueDate, time.Millisecond)
	assert.Equal(t, model.IssueStatusIssued, renewed.Status)
}

func TestIssueService_RenewClearsOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	faculty := f.user(t, "faculty@campus.edu", model.RoleFaculty)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0008", 1)

	issue := f.issued(t, faculty, book, librarian)
	f.clock.Advance(31 * 24 * time.Hour)

	mine, err := f.issues.ListMyIssues(ctx, faculty.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, model.IssueStatusOverdue, mine[0].Status)

	renewed, err := f.issues.RenewBook(ctx, faculty.ID, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusIssued, renewed.Status)
	assert.WithinDuration(t, issue.DueDate.Add(30*24*time.Hour), renewed.DueDate, time.Millisecond)
}

func TestIssueService_RenewRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.user(t, "student@campus.edu", model.RoleStudent)
	faculty := f.user(t, "faculty@campus.edu", model.RoleFaculty)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0009", 2)

	studentLoan := f.issued(t, student, book, librarian)
	_, err := f.issues.RenewBook(ctx, faculty.ID, studentLoan.ID)
	assert.Equal(t, apperrors.ErrRenewalNotAllowed, err, "only loans owned by faculty renew")

	pending, err := f.issues.RequestIssue(ctx, faculty.ID, book.ID)
	require.NoError(t, err)
	_, err = f.issues.RenewBook(ctx, faculty.ID, pending.ID)
	assert.Equal(t, apperrors.ErrIssueNotOnLoan, err)

	_, err = f.issues.RenewBook(ctx, faculty.ID, uuid.New())
	assert.Equal(t, apperrors.ErrIssueNotFound, err)
}

func TestIssueService_ReturnClampsAtTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0010", 1)

	issue := f.issued(t, alice, book, librarian)

	// An admin restocks the shelf while the copy is still out.
	restocked := 1
	_, err := f.books.UpdateBook(ctx, book.ID, BookUpdate{AvailableCopies: &restocked})
	require.NoError(t, err)
	require.Equal(t, 1, f.availableCopies(t, book))

	returned, err := f.issues.ReturnBook(ctx, principal(alice), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.WithinDuration(t, f.clock.Now(), *returned.ReturnDate, time.Millisecond)
	assert.Equal(t, 1, f.availableCopies(t, book))

	_, err = f.issues.ReturnBook(ctx, principal(alice), issue.ID)
	assert.Equal(t, apperrors.ErrIssueNotOnLoan, err)
}

func TestIssueService_ReturnAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	mallory := f.user(t, "mallory@campus.edu", model.RoleFaculty)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0011", 1)

	issue := f.issued(t, alice, book, librarian)

	_, err := f.issues.ReturnBook(ctx, principal(mallory), issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, 0, f.availableCopies(t, book))

	_, err = f.issues.ReturnBook(ctx, principal(librarian), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.availableCopies(t, book))
}

func TestIssueService_RejectDeletesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0012", 2)

	issue, err := f.issues.RequestIssue(ctx, alice.ID, book.ID)
	require.NoError(t, err)

	require.NoError(t, f.issues.RejectIssue(ctx, librarian.ID, issue.ID))
	_, err = f.issues.ApproveIssue(ctx, librarian.ID, issue.ID)
	assert.Equal(t, apperrors.ErrIssueNotFound, err)
	assert.Equal(t, apperrors.ErrIssueNotFound, f.issues.RejectIssue(ctx, librarian.ID, issue.ID))
	assert.Equal(t, 2, f.availableCopies(t, book))

	f.audit.Close()
	history, err := f.reports.IssueHistory(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.IssueActionRequested, history[0].Action)
	assert.Equal(t, model.IssueActionRejected, history[1].Action)
	assert.Equal(t, librarian.ID, history[1].ActorID)
}

func TestIssueService_RejectOnlyPending(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0013", 1)

	issue := f.issued(t, alice, book, librarian)
	err := f.issues.RejectIssue(context.Background(), librarian.ID, issue.ID)
	assert.Equal(t, apperrors.ErrIssueNotPending, err)
}

func TestIssueService_LazyPromotionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0014", 1)

	issue := f.issued(t, alice, book, librarian)

	mine, err := f.issues.ListMyIssues(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusIssued, mine[0].Status, "not yet due")

	f.clock.Advance(15 * 24 * time.Hour)
	for i := 0; i < 3; i++ {
		mine, err = f.issues.ListMyIssues(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, model.IssueStatusOverdue, mine[0].Status)
	}

	stored, err := f.store.Issues().FindByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusOverdue, stored.Status, "promotion is persisted")

	f.audit.Close()
	history, err := f.reports.IssueHistory(ctx, issue.ID)
	require.NoError(t, err)
	var overdueEvents int
	for _, e := range history {
		if e.Action == model.IssueActionOverdue {
			overdueEvents++
		}
	}
	assert.Equal(t, 1, overdueEvents, "repeated reads record a single promotion")
}

func TestIssueService_ConcurrentApprovalsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	book := f.book(t, "978-0015", 3)

	var pending []*model.Issue
	for i := 0; i < 8; i++ {
		u := f.user(t, uuid.NewString()+"@campus.edu", model.RoleStudent)
		issue, err := f.issues.RequestIssue(ctx, u.ID, book.ID)
		require.NoError(t, err)
		pending = append(pending, issue)
	}

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		approved    int
		unavailable int
	)
	for _, issue := range pending {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.issues.ApproveIssue(ctx, librarian.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, apperrors.ErrBookUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(issue.ID)
	}
	wg.Wait()

	assert.Equal(t, 3, approved)
	assert.Equal(t, 5, unavailable)
	assert.Equal(t, 0, f.availableCopies(t, book))
}

func TestIssueService_CopyInvariantAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	faculty := f.user(t, "faculty@campus.edu", model.RoleFaculty)
	book := f.book(t, "978-0016", 2)

	var students []*model.User
	for i := 0; i < 4; i++ {
		students = append(students, f.user(t, uuid.NewString()+"@campus.edu", model.RoleStudent))
	}

	var loans []*model.Issue
	for _, s := range students {
		issue, err := f.issues.RequestIssue(ctx, s.ID, book.ID)
		if err != nil {
			continue
		}
		if approved, err := f.issues.ApproveIssue(ctx, librarian.ID, issue.ID); err == nil {
			loans = append(loans, approved)
		}
		f.availableCopies(t, book)
	}
	require.Len(t, loans, 2)

	shrink := 1
	_, err := f.books.UpdateBook(ctx, book.ID, BookUpdate{TotalCopies: &shrink})
	require.NoError(t, err)
	f.availableCopies(t, book)

	for _, loan := range loans {
		_, err := f.issues.ReturnBook(ctx, principal(librarian), loan.ID)
		require.NoError(t, err)
		f.availableCopies(t, book)
	}
	assert.Equal(t, 1, f.availableCopies(t, book))

	_, err = f.issues.RequestIssue(ctx, faculty.ID, book.ID)
	require.NoError(t, err)
}
