package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/event"
	httpapi "github.com/nexusbq/portal/internal/portal/http"
	"github.com/nexusbq/portal/internal/portal/service"
	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/internal/portal/store/drivers/sqlite"
	"github.com/nexusbq/portal/pkg/jwtx"
	"github.com/nexusbq/portal/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the portal core together: store, engines, event bus,
// and the HTTP surface.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db  store.Store
	bus *event.Bus

	inviteService  *service.InviteService
	focusService   *service.FocusService
	accountService *service.AccountService
	reconciler     *service.ReconcilerService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.TokenSecret == "" {
		return nil, errors.New("PORTAL_TOKEN_SECRET is required")
	}

	app := &Application{
		cfg: cfg,
		bus: event.NewBus(),
		logger: slogx.New(slogx.Config{
			Service: "portal-core",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.bootstrapAdmin(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.db = db
	app.logger.Info("database ready", "file", app.cfg.DatabaseFile)
	return nil
}

// bootstrapAdmin seeds one admin account into an empty store. Every other
// account enters through invite redemption; someone has to hold the first
// invite.
func (app *Application) bootstrapAdmin() error {
	if app.cfg.BootstrapAdminID == "" {
		return nil
	}

	ctx := context.Background()
	empty, err := app.db.Accounts().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for existing accounts: %w", err)
	}
	if !empty {
		return nil
	}

	now := time.Now()
	err = app.db.Accounts().CreateAccount(ctx, domain.Account{
		ID:           app.cfg.BootstrapAdminID,
		DisplayName:  app.cfg.BootstrapAdminName,
		IsAdmin:      true,
		PremiumUntil: app.cfg.InviteExpiry,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	app.logger.Info("bootstrapped admin account", "account_id", app.cfg.BootstrapAdminID)
	return nil
}

func (app *Application) initServices() {
	app.inviteService = &service.InviteService{
		Store:   app.db,
		Bus:     app.bus,
		Horizon: app.cfg.InviteExpiry,
	}
	app.focusService = &service.FocusService{
		Store: app.db,
		Bus:   app.bus,
	}
	app.accountService = &service.AccountService{Store: app.db}
	app.reconciler = service.NewReconcilerService(app.db, app.logger, app.cfg.ReconcileInterval)
}

func (app *Application) initHTTP() {
	verifier := jwtx.Verifier{
		Secret: []byte(app.cfg.TokenSecret),
		Issuer: app.cfg.TokenIssuer,
	}

	router := httpapi.NewRouter(verifier, BuildVersion, app.db, app.logger)
	router.InviteService = app.inviteService
	router.FocusService = app.focusService
	router.AccountService = app.accountService
	router.Bus = app.bus
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.reconciler.Start()

	app.logger.Info("portal core starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown requested", "signal", sig.String())
	}

	return app.Shutdown()
}

// Shutdown drains the HTTP server, stops background workers and closes the
// store.
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful shutdown failed", "err", err)
		_ = app.server.Close()
	}

	app.reconciler.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", "err", err)
		return err
	}

	app.logger.Info("shutdown complete")
	return nil
}
