//go:build integration
// +build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"campuslib/internal/db"
	"campuslib/internal/model"
)

func setupPostgres(t *testing.T) *gorm.DB {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("library"),
		postgres.WithUsername("library"),
		postgres.WithPassword("library"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	gormDB, err := db.Open(db.DriverPostgres, connStr)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func TestPostgres_ConcurrentDecrementNeverOversells(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupPostgres(t))

	book := newBook("978-pg", "Row Locks", "Databases", 3, 3)
	require.NoError(t, store.Books().Create(ctx, book))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
				if _, err := tx.Books().FindByIDForUpdate(ctx, book.ID); err != nil {
					return err
				}
				ok, err := tx.Books().DecrementAvailable(ctx, book.ID)
				if err != nil {
					return err
				}
				if ok {
					mu.Lock()
					granted++
					mu.Unlock()
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	got, err := store.Books().FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
}

func TestPostgres_SearchAndRanking(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupPostgres(t))

	user := newUser("pg@campus.edu", model.RoleStudent)
	require.NoError(t, store.Users().Create(ctx, user))
	book := newBook("978-pg-1", "50% Off Databases", "Databases", 2, 2)
	require.NoError(t, store.Books().Create(ctx, book))

	found, err := store.Books().List(ctx, BookFilter{Search: "50%"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	now := time.Now().UTC()
	require.NoError(t, store.Issues().Create(ctx, &model.Issue{
		UserID: user.ID, BookID: book.ID, IssueDate: now, DueDate: now, Status: model.IssueStatusReturned,
	}))

	ranked, err := store.Issues().MostIssued(ctx, 5, model.IssueStatusIssued, model.IssueStatusReturned)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, book.ID, ranked[0].BookID)
	assert.Equal(t, int64(1), ranked[0].IssueCount)

	sum, err := store.Books().SumAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum)
}
