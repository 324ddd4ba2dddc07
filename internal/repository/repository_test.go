package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campuslib/internal/dbtest"
	"campuslib/internal/model"
)

func newBook(isbn, title, category string, total, available int) *model.Book {
	return &model.Book{
		Title:           title,
		Author:          "Author " + title,
		ISBN:            isbn,
		Category:        category,
		Publisher:       "Campus Press",
		ShelfLocation:   "A1",
		TotalCopies:     total,
		AvailableCopies: available,
	}
}

func newUser(email string, role model.Role) *model.User {
	return &model.User{Name: email, Email: email, Role: role, PasswordHash: "x"}
}

func TestBookRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t))
	books := store.Books()

	require.NoError(t, books.Create(ctx, newBook("978-1", "Go Programming", "Computer Science", 2, 2)))
	require.NoError(t, books.Create(ctx, newBook("978-2", "100% Pure Physics", "Physics", 1, 1)))
	require.NoError(t, books.Create(ctx, newBook("978-3", "Data_Structures", "Computer Science", 1, 1)))

	tests := []struct {
		name   string
		filter BookFilter
		want   []string
	}{
		{name: "no filter newest first", filter: BookFilter{}, want: []string{"978-3", "978-2", "978-1"}},
		{name: "title case insensitive", filter: BookFilter{Search: "go prog"}, want: []string{"978-1"}},
		{name: "isbn substring", filter: BookFilter{Search: "978-2"}, want: []string{"978-2"}},
		{name: "author", filter: BookFilter{Search: "AUTHOR DATA"}, want: []string{"978-3"}},
		{name: "percent is literal", filter: BookFilter{Search: "100%"}, want: []string{"978-2"}},
		{name: "underscore is literal", filter: BookFilter{Search: "a_s"}, want: []string{"978-3"}},
		{name: "category substring", filter: BookFilter{Category: "computer"}, want: []string{"978-3", "978-1"}},
		{name: "search and category", filter: BookFilter{Search: "go", Category: "physics"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := books.List(ctx, tt.filter)
			require.NoError(t, err)
			var isbns []string
			for _, b := range got {
				isbns = append(isbns, b.ISBN)
			}
			assert.Equal(t, tt.want, isbns)
		})
	}
}

func TestBookRepository_DuplicateISBN(t *testing.T) {
	ctx := context.Background()
	books := NewBookRepository(dbtest.New(t))

	require.NoError(t, books.Create(ctx, newBook("978-1", "A", "X", 1, 1)))
	err := books.Create(ctx, newBook("978-1", "B", "X", 1, 1))
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}

func TestBookRepository_GuardedCopyUpdates(t *testing.T) {
	ctx := context.Background()
	books := NewBookRepository(dbtest.New(t))
	book := newBook("978-1", "A", "X", 1, 1)
	require.NoError(t, books.Create(ctx, book))

	changed, err := books.IncrementAvailable(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, changed, "increment must not pass total copies")

	changed, err = books.DecrementAvailable(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = books.DecrementAvailable(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, changed, "decrement must not go below zero")

	got, err := books.FindByIDForUpdate(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	sum, err := books.SumAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
}

func TestBookRepository_DeleteMissing(t *testing.T) {
	books := NewBookRepository(dbtest.New(t))
	err := books.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_CountByRole(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(dbtest.New(t))

	require.NoError(t, users.Create(ctx, newUser("a@campus.edu", model.RoleStudent)))
	require.NoError(t, users.Create(ctx, newUser("b@campus.edu", model.RoleStudent)))
	require.NoError(t, users.Create(ctx, newUser("c@campus.edu", model.RoleAdmin)))

	counts, err := users.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.Role]int64{model.RoleStudent: 2, model.RoleAdmin: 1}, counts)

	found, err := users.FindByEmail(ctx, "c@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, found.Role)
}

func TestIssueRepository_ActiveAndOverdue(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t))
	user := newUser("a@campus.edu", model.RoleStudent)
	book := newBook("978-1", "A", "X", 2, 2)
	require.NoError(t, store.Users().Create(ctx, user))
	require.NoError(t, store.Books().Create(ctx, book))

	now := time.Now().UTC()
	returned := &model.Issue{UserID: user.ID, BookID: book.ID, IssueDate: now, DueDate: now, Status: model.IssueStatusReturned}
	issued := &model.Issue{UserID: user.ID, BookID: book.ID, IssueDate: now, DueDate: now.Add(-time.Hour), Status: model.IssueStatusIssued}
	require.NoError(t, store.Issues().Create(ctx, returned))
	require.NoError(t, store.Issues().Create(ctx, issued))

	active, err := store.Issues().FindActive(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, active.ID)

	n, err := store.Issues().MarkOverdue(ctx, []uuid.UUID{issued.ID, returned.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only Issued rows are promoted")

	n, err = store.Issues().MarkOverdue(ctx, []uuid.UUID{issued.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	loaded, err := store.Issues().FindByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueStatusOverdue, loaded.Status)
	require.NotNil(t, loaded.Book)
	assert.Equal(t, "978-1", loaded.Book.ISBN)
	require.NotNil(t, loaded.User)
	assert.Equal(t, user.Email, loaded.User.Email)

	count, err := store.Issues().CountActiveByBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	byStatus, err := store.Issues().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.IssueStatus]int64{model.IssueStatusReturned: 1, model.IssueStatusOverdue: 1}, byStatus)
}

func TestIssueRepository_MostIssued(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t))
	user := newUser("a@campus.edu", model.RoleFaculty)
	require.NoError(t, store.Users().Create(ctx, user))

	first := newBook("978-1", "First", "X", 5, 5)
	second := newBook("978-2", "Second", "X", 5, 5)
	third := newBook("978-3", "Third", "X", 5, 5)
	for _, b := range []*model.Book{first, second, third} {
		require.NoError(t, store.Books().Create(ctx, b))
	}

	base := time.Now().UTC()
	add := func(book *model.Book, status model.IssueStatus, offset time.Duration) {
		issue := &model.Issue{
			UserID: user.ID, BookID: book.ID, IssueDate: base, DueDate: base,
			Status: status, CreatedAt: base.Add(offset),
		}
		require.NoError(t, store.Issues().Create(ctx, issue))
	}
	add(second, model.IssueStatusReturned, time.Minute)
	add(first, model.IssueStatusIssued, 2*time.Minute)
	add(third, model.IssueStatusReturned, 3*time.Minute)
	add(third, model.IssueStatusIssued, 4*time.Minute)
	add(first, model.IssueStatusPending, 5*time.Minute)

	ranked, err := store.Issues().MostIssued(ctx, 5, model.IssueStatusIssued, model.IssueStatusReturned)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, third.ID, ranked[0].BookID)
	assert.Equal(t, int64(2), ranked[0].IssueCount)
	// Equal counts rank the book issued first ahead.
	assert.Equal(t, second.ID, ranked[1].BookID)
	assert.Equal(t, first.ID, ranked[2].BookID)
	assert.Equal(t, "First", ranked[2].Title)

	since, err := store.Issues().CountCreatedSince(ctx, base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), since)
}

func TestStore_WithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t))
	book := newBook("978-1", "A", "X", 1, 1)
	require.NoError(t, store.Books().Create(ctx, book))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.Books().DecrementAvailable(ctx, book.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Books().FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestIssueEventRepository_ListByIssue(t *testing.T) {
	ctx := context.Background()
	events := NewIssueEventRepository(dbtest.New(t))
	issueID := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, events.CreateBatch(ctx, []model.IssueEvent{
		{IssueID: issueID, Action: model.IssueActionApproved, CreatedAt: now.Add(time.Second)},
		{IssueID: issueID, Action: model.IssueActionRequested, CreatedAt: now},
		{IssueID: uuid.New(), Action: model.IssueActionRequested, CreatedAt: now},
	}))
	require.NoError(t, events.CreateBatch(ctx, nil))

	got, err := events.ListByIssue(ctx, issueID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.IssueActionRequested, got[0].Action)
	assert.Equal(t, model.IssueActionApproved, got[1].Action)
}
