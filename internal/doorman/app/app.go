package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	httpapi "github.com/veldhq/doorman/internal/doorman/http"
	"github.com/veldhq/doorman/internal/doorman/obs"
	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/internal/doorman/session"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/internal/doorman/store/drivers/sqlite"
	"github.com/veldhq/doorman/pkg/cryptox"
	"github.com/veldhq/doorman/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the doorman service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	sessions *session.Store

	// Services
	loginService        *service.LoginService
	userService         *service.UserService
	passwordService     *service.PasswordService
	auditService        *service.AuditService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "doorman",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	obs.Init()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()

	// Provision the initial administrator on an empty database
	ctx := slogx.WithContext(context.Background(), app.logger)
	if err := service.EnsureAdmin(ctx, app.db, service.BootstrapAdmin{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}); err != nil {
		return nil, fmt.Errorf("bootstrap administrator: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("doorman starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down doorman...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("doorman stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.sessions = session.NewStore(app.cfg.SessionTTL)

	app.auditService = &service.AuditService{Store: app.db}

	policy := domain.LockoutPolicy{
		MaxAttempts:     app.cfg.MaxLoginAttempts,
		LockoutDuration: app.cfg.LockoutDuration,
	}
	if policy.MaxAttempts <= 0 {
		policy = domain.DefaultLockoutPolicy
	}

	app.loginService = service.NewLoginService(app.db, app.sessions, app.auditService, policy)
	app.userService = service.NewUserService(app.db, app.sessions, app.auditService)
	app.passwordService = service.NewPasswordService(app.db, app.sessions, app.auditService, app.cfg.PasswordChangeInterval)

	app.housekeepingService = service.NewHousekeepingService(
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.sessions, app.logger)

	// Wire services to router
	router.LoginService = app.loginService
	router.UserService = app.userService
	router.PasswordService = app.passwordService
	router.AuditService = app.auditService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
