package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campuslib/internal/dbtest"
	"campuslib/internal/model"
	"campuslib/internal/policy"
	"campuslib/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store   repository.Store
	audit   *AuditLog
	clock   *testClock
	books   BookService
	users   UserService
	issues  IssueService
	reports ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewStore(dbtest.New(t))
	audit := NewAuditLog(store.Events())
	t.Cleanup(audit.Close)

	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	locks := NewBookLocks()
	return &fixture{
		store:   store,
		audit:   audit,
		clock:   clock,
		books:   NewBookService(store, locks),
		users:   NewUserService(store.Users()),
		issues:  NewIssueService(store, locks, audit, DefaultLoanPolicy(), WithClock(clock.Now)),
		reports: NewReportService(store, audit, clock.Now),
	}
}

func (f *fixture) user(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Name: email, Email: email, Role: role, PasswordHash: "hash"}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) book(t *testing.T, isbn string, copies int) *model.Book {
	t.Helper()
	b, err := f.books.CreateBook(context.Background(), BookInput{
		Title:         "Title " + isbn,
		Author:        "Author",
		ISBN:          isbn,
		Category:      "Science",
		Publisher:     "Campus Press",
		ShelfLocation: "B2",
		TotalCopies:   copies,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) availableCopies(t *testing.T, b *model.Book) int {
	t.Helper()
	got, err := f.store.Books().FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, got.AvailableCopies, 0)
	require.LessOrEqual(t, got.AvailableCopies, got.TotalCopies)
	return got.AvailableCopies
}

// issued requests and approves a loan for u.
func (f *fixture) issued(t *testing.T, u *model.User, b *model.Book, librarian *model.User) *model.Issue {
	t.Helper()
	ctx := context.Background()
	issue, err := f.issues.RequestIssue(ctx, u.ID, b.ID)
	require.NoError(t, err)
	issue, err = f.issues.ApproveIssue(ctx, librarian.ID, issue.ID)
	require.NoError(t, err)
	return issue
}

func principal(u *model.User) policy.Principal {
	return policy.Principal{UserID: u.ID, Role: u.Role}
}
