package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Book represents a catalog title and its copy counts.
type Book struct {
	ID              uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Title           string    `json:"title" gorm:"size:255;not null;index"`
	Author          string    `json:"author" gorm:"size:255;not null;index"`
	ISBN            string    `json:"isbn" gorm:"column:isbn;uniqueIndex;size:32;not null"`
	Category        string    `json:"category" gorm:"size:120;not null;index"`
	Publisher       string    `json:"publisher" gorm:"size:255;not null"`
	ShelfLocation   string    `json:"shelfLocation" gorm:"size:64;not null"`
	TotalCopies     int       `json:"totalCopies" gorm:"not null;default:0"`
	AvailableCopies int       `json:"availableCopies" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Clamp forces 0 <= AvailableCopies <= TotalCopies.
func (b *Book) Clamp() {
	if b.TotalCopies < 0 {
		b.TotalCopies = 0
	}
	if b.AvailableCopies < 0 {
		b.AvailableCopies = 0
	}
	if b.AvailableCopies > b.TotalCopies {
		b.AvailableCopies = b.TotalCopies
	}
}

// BookSummary is the subset of a book embedded in issue responses.
type BookSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Category        string    `json:"category"`
	AvailableCopies int       `json:"availableCopies"`
}

// Summary returns the embeddable view of b.
func (b *Book) Summary() *BookSummary {
	if b == nil {
		return nil
	}
	return &BookSummary{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Category:        b.Category,
		AvailableCopies: b.AvailableCopies,
	}
}
