package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuslib/internal/model"
)

func TestReportService_OverdueListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.user(t, "student@campus.edu", model.RoleStudent)
	faculty := f.user(t, "faculty@campus.edu", model.RoleFaculty)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	bookA := f.book(t, "978-OA", 1)
	bookB := f.book(t, "978-OB", 1)
	bookC := f.book(t, "978-OC", 1)

	studentLoan := f.issued(t, student, bookA, librarian)
	f.clock.Advance(time.Hour)
	facultyLoan := f.issued(t, faculty, bookB, librarian)
	_, err := f.issues.RequestIssue(ctx, student.ID, bookC.ID)
	require.NoError(t, err)

	overdue, err := f.reports.OverdueIssues(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	// Past the student's 14 days, before the faculty's 30.
	f.clock.Advance(20 * 24 * time.Hour)
	overdue, err = f.reports.OverdueIssues(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, studentLoan.ID, overdue[0].ID)
	assert.Equal(t, model.IssueStatusOverdue, overdue[0].Status)
	require.NotNil(t, overdue[0].Book)
	assert.Equal(t, "978-OA", overdue[0].Book.ISBN)

	f.clock.Advance(20 * 24 * time.Hour)
	overdue, err = f.reports.OverdueIssues(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, studentLoan.ID, overdue[0].ID, "earliest due first")
	assert.Equal(t, facultyLoan.ID, overdue[1].ID)

	_, err = f.issues.RenewBook(ctx, faculty.ID, facultyLoan.ID)
	require.NoError(t, err)
	overdue, err = f.reports.OverdueIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, overdue, 1, "renewal clears overdue")
}

func TestReportService_Analytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@campus.edu", model.RoleStudent)
	bob := f.user(t, "bob@campus.edu", model.RoleStudent)
	faculty := f.user(t, "faculty@campus.edu", model.RoleFaculty)
	librarian := f.user(t, "lib@campus.edu", model.RoleLibrarian)
	popular := f.book(t, "978-P1", 3)
	quiet := f.book(t, "978-P2", 2)
	f.book(t, "978-P3", 4)

	first := f.issued(t, alice, popular, librarian)
	_, err := f.issues.ReturnBook(ctx, principal(alice), first.ID)
	require.NoError(t, err)
	f.issued(t, bob, popular, librarian)
	f.issued(t, faculty, quiet, librarian)
	_, err = f.issues.RequestIssue(ctx, alice.ID, quiet.ID)
	require.NoError(t, err)

	stats, err := f.reports.Analytics(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Overview.TotalBooks)
	assert.Equal(t, int64(4), stats.Overview.TotalUsers)
	assert.Equal(t, int64(4), stats.Overview.TotalIssues)
	assert.Equal(t, int64(2+1+4), stats.Overview.TotalAvailableCopies)
	assert.Equal(t, int64(4), stats.Overview.RecentIssues)
	assert.Equal(t, map[model.Role]int64{
		model.RoleStudent:   2,
		model.RoleFaculty:   1,
		model.RoleLibrarian: 1,
	}, stats.UsersByRole)
	assert.Equal(t, map[model.IssueStatus]int64{
		model.IssueStatusReturned: 1,
		model.IssueStatusIssued:   2,
		model.IssueStatusPending:  1,
	}, stats.IssuesByStatus)

	require.Len(t, stats.PopularBooks, 2)
	assert.Equal(t, popular.ID, stats.PopularBooks[0].BookID)
	assert.Equal(t, int64(2), stats.PopularBooks[0].IssueCount)
	assert.Equal(t, quiet.ID, stats.PopularBooks[1].BookID)
	assert.Equal(t, int64(1), stats.PopularBooks[1].IssueCount)
}

func TestReportService_AnalyticsEmpty(t *testing.T) {
	f := newFixture(t)

	stats, err := f.reports.Analytics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Overview.TotalAvailableCopies)
	assert.NotNil(t, stats.PopularBooks)
	assert.Empty(t, stats.PopularBooks)
}
