package handler

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"campuslib/internal/auth"
	"campuslib/internal/errors"
	"campuslib/internal/policy"
)

const principalKey = "principal"

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Data: data, Message: message})
}

func respondList(c echo.Context, data interface{}, count int) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

// respondError maps a service error to an echo.HTTPError carrying the error envelope.
// Unexpected errors keep the cause as Internal for logging.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	he := echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	if httpErr.IsInternal() {
		he = he.SetInternal(err)
	}
	return he
}

func badRequest(message, code string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Message: message, Code: code})
}

// bindAndValidate decodes the body into req and runs struct validation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "BAD_REQUEST")
	}
	if err := c.Validate(req); err != nil {
		return respondError(errors.Validation(err.Error()))
	}
	return nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id", "INVALID_UUID")
	}
	return id, nil
}

// SetPrincipal stores the authenticated caller on the request.
func SetPrincipal(c echo.Context, p policy.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(c echo.Context) (policy.Principal, bool) {
	p, ok := c.Get(principalKey).(policy.Principal)
	return p, ok
}

func mustPrincipal(c echo.Context) (policy.Principal, error) {
	p, ok := PrincipalFrom(c)
	if !ok {
		return policy.Principal{}, respondError(errors.ErrNotAuthenticated)
	}
	return p, nil
}

// AccessClaims returns the bearer token claims parsed by the JWT middleware.
func AccessClaims(c echo.Context) *auth.Claims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, _ := token.Claims.(*auth.Claims)
	return claims
}
