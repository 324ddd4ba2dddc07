package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"campuslib/docs"
	"campuslib/internal/auth"
	"campuslib/internal/cache"
	"campuslib/internal/config"
	"campuslib/internal/db"
	"campuslib/internal/handler"
	"campuslib/internal/logging"
	"campuslib/internal/ratelimit"
	"campuslib/internal/repository"
	"campuslib/internal/router"
	"campuslib/internal/service"
)

// @title Campus Library API
// @version 1.0
// @description Library catalog, borrowing workflow and reports with role-based JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := logging.Init(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Drop tables if RESET_DB is set
	if cfg.ResetDB {
		logger.Warn("RESET_DB set, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			return err
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		logger.Warn("redis unreachable, token revocation and rate limiting degraded", "addr", cfg.RedisAddr, "err", err)
	}

	authLimiter, err := ratelimit.NewFixedWindowLimiter(cacheClient.Redis(), "campuslib:auth", cfg.AuthRateLimitPerMinute, time.Minute)
	if err != nil {
		logger.Warn("auth rate limiting disabled", "err", err)
		authLimiter = nil
	}

	store := repository.NewStore(gormDB)
	audit := service.NewAuditLog(store.Events())
	defer audit.Close()
	locks := service.NewBookLocks()
	loans := service.LoanPolicy{
		StudentDays: cfg.StudentLoanDays,
		FacultyDays: cfg.FacultyLoanDays,
		RenewalDays: cfg.RenewalDays,
	}

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(store.Users(), jwtService, tokenStore)
	userService := service.NewUserService(store.Users())
	bookService := service.NewBookService(store, locks)
	issueService := service.NewIssueService(store, locks, audit, loans)
	reportService := service.NewReportService(store, audit, time.Now)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Security{
		JWT:         jwtService,
		Auth:        authService,
		AuthLimiter: authLimiter,
	}, router.Handlers{
		Auth:    handler.NewAuthHandler(authService, userService),
		Books:   handler.NewBookHandler(bookService),
		Issues:  handler.NewIssueHandler(issueService),
		Users:   handler.NewUserHandler(userService),
		Reports: handler.NewReportHandler(reportService),
	})

	docs.SwaggerInfo.Host = swaggerHost(cfg)
	logger.Info("swagger documentation available", "url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.ServerPort
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "db_driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// swaggerHost strips any scheme from SWAGGER_HOST and falls back to the listen port.
func swaggerHost(cfg *config.Config) string {
	if cfg.SwaggerHost == "" {
		return "localhost:" + cfg.ServerPort
	}
	host := strings.TrimPrefix(cfg.SwaggerHost, "https://")
	return strings.TrimPrefix(host, "http://")
}
