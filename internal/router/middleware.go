package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "campuslib/internal/errors"
	"campuslib/internal/handler"
	"campuslib/internal/logging"
	"campuslib/internal/policy"
	"campuslib/internal/ratelimit"
	"campuslib/internal/service"
)

// RequestLogger logs one http_request record per request and attaches a
// request-scoped logger to the context.
func RequestLogger() echo.MiddlewareFunc {
	logged := middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			switch {
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			case v.Status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			logging.FromContext(c.Request().Context()).LogAttrs(c.Request().Context(), level, "http_request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withLogger := func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			logger := slog.Default().With("request_id", id)
			c.SetRequest(req.WithContext(logging.WithLogger(req.Context(), logger)))
			return next(c)
		}
		return logged(withLogger)
	}
}

// Authenticate resolves the bearer token to the current account and stores the principal.
func Authenticate(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := authService.Authenticate(c.Request().Context(), handler.AccessClaims(c))
			if err != nil {
				return err
			}
			handler.SetPrincipal(c, policy.Principal{UserID: user.ID, Role: user.Role})
			return next(c)
		}
	}
}

// RequirePermission rejects callers the access policy does not admit for op.
func RequirePermission(op policy.Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var caller *policy.Principal
			if p, ok := handler.PrincipalFrom(c); ok {
				caller = &p
			}
			if err := policy.Authorize(caller, op); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RateLimit throttles requests per route and client IP.
// Requests pass when the limiter backend is unreachable.
func RateLimit(limiter *ratelimit.FixedWindowLimiter, message string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		retryAfter := strconv.Itoa(int(limiter.Window().Seconds()))
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			allowed, err := limiter.Allow(ctx, c.Path()+"|"+c.RealIP())
			if err != nil {
				logging.FromContext(ctx).WarnContext(ctx, "rate limiter unavailable", "path", c.Path(), "err", err)
			}
			if !allowed {
				c.Response().Header().Set("Retry-After", retryAfter)
				return echo.NewHTTPError(http.StatusTooManyRequests, apperrors.ErrorResponse{
					Message: message,
					Code:    "RATE_LIMITED",
				})
			}
			return next(c)
		}
	}
}

var statusCodes = map[int]string{
	http.StatusBadRequest:            "BAD_REQUEST",
	http.StatusUnauthorized:          "UNAUTHENTICATED",
	http.StatusForbidden:             "FORBIDDEN",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	http.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	http.StatusTooManyRequests:       "RATE_LIMITED",
}

// ErrorHandler renders every error as the standard error envelope.
// Unexpected failures are logged and answered with a generic 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorBody(err)
	ctx := c.Request().Context()
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).ErrorContext(ctx, "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"err", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "write error response", "err", err)
	}
}

func errorBody(err error) (int, apperrors.ErrorResponse) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		httpErr := apperrors.MapErrorToHTTP(err)
		return httpErr.StatusCode, httpErr.ToErrorResponse()
	}

	switch msg := he.Message.(type) {
	case apperrors.ErrorResponse:
		return he.Code, msg
	case string:
		if he.Code >= http.StatusInternalServerError {
			msg = "internal server error"
		}
		return he.Code, apperrors.ErrorResponse{Message: msg, Code: codeFor(he.Code)}
	default:
		return he.Code, apperrors.ErrorResponse{Message: http.StatusText(he.Code), Code: codeFor(he.Code)}
	}
}

func codeFor(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "ERROR"
}
