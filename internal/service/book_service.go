package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "campuslib/internal/errors"
	"campuslib/internal/model"
	"campuslib/internal/repository"
)

// BookInput carries the fields of a new catalog entry.
type BookInput struct {
	Title         string
	Author        string
	ISBN          string
	Category      string
	Publisher     string
	ShelfLocation string
	TotalCopies   int
}

// BookUpdate carries optional changes. Nil or blank fields are left alone.
type BookUpdate struct {
	Title           *string
	Author          *string
	ISBN            *string
	Category        *string
	Publisher       *string
	ShelfLocation   *string
	TotalCopies     *int
	AvailableCopies *int
}

// BookService handles catalog operations.
type BookService interface {
	ListBooks(ctx context.Context, filter repository.BookFilter) ([]model.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error)
	CreateBook(ctx context.Context, input BookInput) (*model.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, update BookUpdate) (*model.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

type bookService struct {
	store repository.Store
	locks *BookLocks
}

// NewBookService creates a new book service.
func NewBookService(store repository.Store, locks *BookLocks) BookService {
	return &bookService{store: store, locks: locks}
}

func (s *bookService) ListBooks(ctx context.Context, filter repository.BookFilter) ([]model.Book, error) {
	books, err := s.store.Books().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *bookService) GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	book, err := s.store.Books().FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrBookNotFound)
	}
	return book, nil
}

// CreateBook adds a catalog entry with every copy on the shelf.
func (s *bookService) CreateBook(ctx context.Context, input BookInput) (*model.Book, error) {
	book := &model.Book{
		Title:         strings.TrimSpace(input.Title),
		Author:        strings.TrimSpace(input.Author),
		ISBN:          strings.TrimSpace(input.ISBN),
		Category:      strings.TrimSpace(input.Category),
		Publisher:     strings.TrimSpace(input.Publisher),
		ShelfLocation: strings.TrimSpace(input.ShelfLocation),
		TotalCopies:   input.TotalCopies,
	}
	if book.Title == "" || book.Author == "" || book.ISBN == "" || book.Category == "" ||
		book.Publisher == "" || book.ShelfLocation == "" || book.TotalCopies < 1 {
		return nil, apperrors.Validation("please provide all required fields")
	}
	book.AvailableCopies = book.TotalCopies

	if _, err := s.store.Books().FindByISBN(ctx, book.ISBN); err == nil {
		return nil, apperrors.ErrDuplicateISBN
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check isbn: %w", err)
	}

	if err := s.store.Books().Create(ctx, book); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateISBN
		}
		return nil, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}

// UpdateBook applies changes under the book lock. A new total without an explicit
// available count shifts the available count by the same delta; the result is clamped.
func (s *bookService) UpdateBook(ctx context.Context, id uuid.UUID, update BookUpdate) (*model.Book, error) {
	if update.TotalCopies != nil && *update.TotalCopies < 0 {
		return nil, apperrors.Validation("totalCopies must not be negative")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var book *model.Book
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		book, err = tx.Books().FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, apperrors.ErrBookNotFound)
		}

		if isbn := trimmed(update.ISBN); isbn != "" && isbn != book.ISBN {
			other, err := tx.Books().FindByISBN(ctx, isbn)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("check isbn: %w", err)
			}
			if other != nil && other.ID != book.ID {
				return apperrors.ErrDuplicateISBN
			}
			book.ISBN = isbn
		}
		setIfPresent(&book.Title, update.Title)
		setIfPresent(&book.Author, update.Author)
		setIfPresent(&book.Category, update.Category)
		setIfPresent(&book.Publisher, update.Publisher)
		setIfPresent(&book.ShelfLocation, update.ShelfLocation)

		if update.TotalCopies != nil {
			delta := *update.TotalCopies - book.TotalCopies
			book.TotalCopies = *update.TotalCopies
			if update.AvailableCopies == nil {
				book.AvailableCopies += delta
			}
		}
		if update.AvailableCopies != nil {
			book.AvailableCopies = *update.AvailableCopies
		}
		book.Clamp()

		if err := tx.Books().Update(ctx, book); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrDuplicateISBN
			}
			return fmt.Errorf("update book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook removes a book that has no Pending, Issued or Overdue issues.
func (s *bookService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Books().FindByIDForUpdate(ctx, id); err != nil {
			return notFound(err, apperrors.ErrBookNotFound)
		}
		active, err := tx.Issues().CountActiveByBook(ctx, id)
		if err != nil {
			return fmt.Errorf("count active issues: %w", err)
		}
		if active > 0 {
			return apperrors.ErrBookHasActiveIssues
		}
		if err := tx.Books().Delete(ctx, id); err != nil {
			return notFound(err, apperrors.ErrBookNotFound)
		}
		return nil
	})
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func setIfPresent(dst *string, v *string) {
	if s := trimmed(v); s != "" {
		*dst = s
	}
}
