package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campuslib/internal/model"
)

// BookFilter narrows a catalog listing. Empty fields do not filter.
type BookFilter struct {
	// Search matches title, author or ISBN, case-insensitively.
	Search string
	// Category matches as a case-insensitive substring.
	Category string
}

// BookRepository defines catalog persistence operations.
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Book, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)
	List(ctx context.Context, filter BookFilter) ([]model.Book, error)
	// DecrementAvailable takes one copy if any is left. It reports whether a row changed.
	DecrementAvailable(ctx context.Context, id uuid.UUID) (bool, error)
	// IncrementAvailable gives one copy back without exceeding the total.
	IncrementAvailable(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int64, error)
	SumAvailable(ctx context.Context) (int64, error)
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book.
func (r *bookRepository) Create(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// Update updates an existing book.
func (r *bookRepository) Update(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

// Delete removes a book. Missing rows yield gorm.ErrRecordNotFound.
func (r *bookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Book{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID finds a book by ID.
func (r *bookRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByIDForUpdate finds a book by ID with row-level lock for update.
func (r *bookRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	var book model.Book
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByISBN finds a book by its exact ISBN.
func (r *bookRepository) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns books matching the filter, newest first.
func (r *bookRepository) List(ctx context.Context, filter BookFilter) ([]model.Book, error) {
	query := r.db.WithContext(ctx).Model(&model.Book{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := containsPattern(s)
		query = query.Where(
			"LOWER(title) LIKE ? ESCAPE '!' OR LOWER(author) LIKE ? ESCAPE '!' OR LOWER(isbn) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern,
		)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		query = query.Where("LOWER(category) LIKE ? ESCAPE '!'", containsPattern(c))
	}

	var books []model.Book
	if err := query.Order("created_at DESC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

// DecrementAvailable lends one copy when at least one is on the shelf.
func (r *bookRepository) DecrementAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ? AND available_copies > 0", id).
		Update("available_copies", gorm.Expr("available_copies - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementAvailable returns one copy to the shelf, capped at total_copies.
func (r *bookRepository) IncrementAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		Update("available_copies", gorm.Expr("available_copies + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Count returns the number of catalog entries.
func (r *bookRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Book{}).Count(&count).Error
	return count, err
}

// SumAvailable returns the number of copies on the shelf across the catalog.
func (r *bookRepository) SumAvailable(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Book{}).
		Select("COALESCE(SUM(available_copies), 0)").
		Scan(&total).Error
	return total, err
}

// containsPattern builds a lower-cased LIKE pattern with wildcards escaped by '!'.
func containsPattern(s string) string {
	escaped := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(strings.ToLower(s))
	return "%" + escaped + "%"
}
