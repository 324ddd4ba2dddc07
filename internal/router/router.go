package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"campuslib/internal/auth"
	"campuslib/internal/handler"
	"campuslib/internal/policy"
	"campuslib/internal/ratelimit"
	"campuslib/internal/service"
)

// Handlers groups the HTTP handlers served under /api.
type Handlers struct {
	Auth    *handler.AuthHandler
	Books   *handler.BookHandler
	Issues  *handler.IssueHandler
	Users   *handler.UserHandler
	Reports *handler.ReportHandler
}

// Security carries what the secured group needs to resolve callers.
type Security struct {
	JWT  *auth.JWTService
	Auth service.AuthService
	// AuthLimiter throttles register and login. Nil disables throttling.
	AuthLimiter *ratelimit.FixedWindowLimiter
}

// Register wires routes and middleware.
func Register(e *echo.Echo, sec Security, h Handlers) {
	e.JSONSerializer = JSONSerializer{}
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RequestID())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	authLimit := RateLimit(sec.AuthLimiter, "too many attempts, try again later")
	api.POST("/auth/register", h.Auth.Register, authLimit)
	api.POST("/auth/login", h.Auth.Login, authLimit)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/books", h.Books.ListBooks, RequirePermission(policy.OpBookList))
	api.GET("/books/:id", h.Books.GetBook, RequirePermission(policy.OpBookGet))

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  sec.JWT.SigningKey(),
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing bearer token").SetInternal(err)
		},
	}), Authenticate(sec.Auth))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/me", h.Auth.Me, RequirePermission(policy.OpProfileRead))

	// Catalog administration
	secured.POST("/books", h.Books.CreateBook, RequirePermission(policy.OpBookCreate))
	secured.PUT("/books/:id", h.Books.UpdateBook, RequirePermission(policy.OpBookUpdate))
	secured.DELETE("/books/:id", h.Books.DeleteBook, RequirePermission(policy.OpBookDelete))

	// Issue workflow
	secured.POST("/issues/request", h.Issues.RequestIssue, RequirePermission(policy.OpIssueRequest))
	secured.GET("/issues", h.Issues.ListMyIssues, RequirePermission(policy.OpIssueListOwn))
	secured.GET("/issues/pending", h.Issues.ListPendingIssues, RequirePermission(policy.OpIssueListPending))
	secured.PUT("/issues/:id/approve", h.Issues.ApproveIssue, RequirePermission(policy.OpIssueApprove))
	secured.PUT("/issues/:id/reject", h.Issues.RejectIssue, RequirePermission(policy.OpIssueReject))
	secured.PUT("/issues/:id/return", h.Issues.ReturnBook, RequirePermission(policy.OpIssueReturn))
	secured.PUT("/issues/:id/renew", h.Issues.RenewBook, RequirePermission(policy.OpIssueRenew))

	// Reports
	secured.GET("/reports/overdue", h.Reports.OverdueIssues, RequirePermission(policy.OpReportOverdue))
	secured.GET("/reports/analytics", h.Reports.Analytics, RequirePermission(policy.OpReportAnalytics))
	secured.GET("/reports/issues/:id/events", h.Reports.IssueEvents, RequirePermission(policy.OpReportIssueEvents))

	// Account administration
	secured.GET("/users", h.Users.ListUsers, RequirePermission(policy.OpUserList))
	secured.GET("/users/:id", h.Users.GetUser, RequirePermission(policy.OpUserGet))
	secured.PUT("/users/:id", h.Users.UpdateUser, RequirePermission(policy.OpUserUpdate))
	secured.DELETE("/users/:id", h.Users.DeleteUser, RequirePermission(policy.OpUserDelete))
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
