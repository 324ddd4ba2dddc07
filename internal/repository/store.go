package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the entity repositories that share one database handle.
// Repositories obtained from the Store passed to a WithTransaction callback
// all run inside that transaction.
type Store interface {
	Books() BookRepository
	Users() UserRepository
	Issues() IssueRepository
	Events() IssueEventRepository
	// WithTransaction executes fn within a database transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Books() BookRepository        { return &bookRepository{db: s.db} }
func (s *gormStore) Users() UserRepository        { return &userRepository{db: s.db} }
func (s *gormStore) Issues() IssueRepository      { return &issueRepository{db: s.db} }
func (s *gormStore) Events() IssueEventRepository { return &issueEventRepository{db: s.db} }

// WithTransaction executes a function within a database transaction.
func (s *gormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormStore{db: tx})
	})
}

// forUpdate adds a row-level write lock. SQLite ignores it.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
