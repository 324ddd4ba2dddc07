package errors

import (
	"errors"
	"net/http"
)

// Error kinds. Every domain error unwraps to exactly one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrValidation       = errors.New("validation error")
)

var (
	// ErrBookNotFound is returned when a book is not found.
	ErrBookNotFound = New(ErrNotFound, "book not found")
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = New(ErrNotFound, "user not found")
	// ErrIssueNotFound is returned when an issue is not found.
	ErrIssueNotFound = New(ErrNotFound, "issue not found")

	// ErrDuplicateISBN is returned when another book already uses the ISBN.
	ErrDuplicateISBN = New(ErrDuplicateKey, "book with this ISBN already exists")
	// ErrDuplicateEmail is returned when another account already uses the email.
	ErrDuplicateEmail = New(ErrDuplicateKey, "email already exists")

	// ErrBookUnavailable is returned when no copy is left to lend.
	ErrBookUnavailable = New(ErrInvalidOperation, "book is not available")
	// ErrIssueNotPending is returned when approving or rejecting a non-pending issue.
	ErrIssueNotPending = New(ErrInvalidOperation, "issue is not pending")
	// ErrIssueNotOnLoan is returned when returning or renewing a book that is not issued.
	ErrIssueNotOnLoan = New(ErrInvalidOperation, "book is not currently issued")
	// ErrBookHasActiveIssues is returned when deleting a book that is still lent or requested.
	ErrBookHasActiveIssues = New(ErrInvalidOperation, "book has active issues")
	// ErrSelfRoleChange is returned when an admin tries to change their own role.
	ErrSelfRoleChange = New(ErrInvalidOperation, "you cannot change your own role")
	// ErrSelfDelete is returned when an admin tries to delete their own account.
	ErrSelfDelete = New(ErrInvalidOperation, "you cannot delete your own account")

	// ErrActiveIssueExists is returned when the user already holds an active issue for the book.
	ErrActiveIssueExists = New(ErrConflict, "you already have a pending or active issue for this book")

	// ErrRenewalNotAllowed is returned when the issue owner is not faculty.
	ErrRenewalNotAllowed = New(ErrForbidden, "only faculty can renew books")
	// ErrPermissionDenied is returned when the role may not perform the operation.
	ErrPermissionDenied = New(ErrForbidden, "you do not have permission to perform this action")

	// ErrNotAuthenticated is returned when no valid identity accompanies the request.
	ErrNotAuthenticated = New(ErrUnauthenticated, "authentication required")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = New(ErrUnauthenticated, "invalid email or password")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = New(ErrUnauthenticated, "invalid or expired refresh token")

	// ErrInvalidRole is returned for a role outside the known set.
	ErrInvalidRole = New(ErrValidation, "invalid role")
)

// Error is a domain error carrying a client-safe message and its kind.
type Error struct {
	Kind    error
	Message string
}

// New creates a domain error of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Validation builds a validation error with a caller-facing message.
func Validation(message string) error {
	return New(ErrValidation, message)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Success: false,
		Message: e.Message,
		Code:    e.Code,
	}
}

// IsInternal reports whether the mapped error hides an unexpected failure.
func (e *HTTPError) IsInternal() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// MapErrorToHTTP maps domain errors to HTTP errors.
// Anything that is not a domain error becomes an opaque 500.
func MapErrorToHTTP(err error) *HTTPError {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
	msg := domainErr.Message
	switch {
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, msg, "NOT_FOUND")
	case errors.Is(err, ErrDuplicateKey):
		return NewHTTPError(http.StatusConflict, msg, "DUPLICATE_KEY")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, msg, "CONFLICT")
	case errors.Is(err, ErrInvalidOperation):
		return NewHTTPError(http.StatusBadRequest, msg, "INVALID_OPERATION")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, msg, "FORBIDDEN")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, msg, "UNAUTHENTICATED")
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusUnprocessableEntity, msg, "VALIDATION_ERROR")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
