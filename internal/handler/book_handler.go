package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"campuslib/internal/repository"
	"campuslib/internal/service"
)

// BookHandler serves the catalog endpoints.
type BookHandler struct {
	svc service.BookService
}

// NewBookHandler creates a new book handler.
func NewBookHandler(svc service.BookService) *BookHandler {
	return &BookHandler{svc: svc}
}

// CreateBookRequest is the payload for adding a title to the catalog.
type CreateBookRequest struct {
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	ISBN          string `json:"isbn" validate:"required"`
	Category      string `json:"category" validate:"required"`
	Publisher     string `json:"publisher"`
	ShelfLocation string `json:"shelfLocation"`
	TotalCopies   int    `json:"totalCopies" validate:"required,min=1"`
}

// UpdateBookRequest carries optional changes to a catalog entry.
type UpdateBookRequest struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	ISBN            *string `json:"isbn"`
	Category        *string `json:"category"`
	Publisher       *string `json:"publisher"`
	ShelfLocation   *string `json:"shelfLocation"`
	TotalCopies     *int    `json:"totalCopies" validate:"omitempty,min=0"`
	AvailableCopies *int    `json:"availableCopies" validate:"omitempty,min=0"`
}

// ListBooks godoc
// @Summary List books
// @Description Case-insensitive search over title, author and ISBN, optionally narrowed by category.
// @Tags books
// @Produce json
// @Param search query string false "Search term"
// @Param category query string false "Category filter"
// @Success 200 {object} Response{data=[]model.Book}
// @Failure 500 {object} errors.ErrorResponse
// @Router /books [get]
func (h *BookHandler) ListBooks(c echo.Context) error {
	filter := repository.BookFilter{
		Search:   c.QueryParam("search"),
		Category: c.QueryParam("category"),
	}
	books, err := h.svc.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return respondError(err)
	}
	return respondList(c, books, len(books))
}

// GetBook godoc
// @Summary Get book by id
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} Response{data=model.Book}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	book, err := h.svc.GetBook(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "", book)
}

// CreateBook godoc
// @Summary Add a book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBookRequest true "Book data"
// @Success 201 {object} Response{data=model.Book}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /books [post]
func (h *BookHandler) CreateBook(c echo.Context) error {
	var req CreateBookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	book, err := h.svc.CreateBook(c.Request().Context(), service.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Category:      req.Category,
		Publisher:     req.Publisher,
		ShelfLocation: req.ShelfLocation,
		TotalCopies:   req.TotalCopies,
	})
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusCreated, "book created successfully", book)
}

// UpdateBook godoc
// @Summary Update a book
// @Description Changing totalCopies shifts availableCopies by the same amount unless availableCopies is given.
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Book ID"
// @Param request body UpdateBookRequest true "Fields to change"
// @Success 200 {object} Response{data=model.Book}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /books/{id} [put]
func (h *BookHandler) UpdateBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateBookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	book, err := h.svc.UpdateBook(c.Request().Context(), id, service.BookUpdate{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		Category:        req.Category,
		Publisher:       req.Publisher,
		ShelfLocation:   req.ShelfLocation,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.AvailableCopies,
	})
	if err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "book updated successfully", book)
}

// DeleteBook godoc
// @Summary Delete a book
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path string true "Book ID"
// @Success 200 {object} Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [delete]
func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBook(c.Request().Context(), id); err != nil {
		return respondError(err)
	}
	return respond(c, http.StatusOK, "book deleted successfully", nil)
}
