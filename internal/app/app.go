// Package app wires configuration, storage, services and transport into a
// runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/pitskod/expense-tracker/docs"
	"github.com/pitskod/expense-tracker/internal/config"
	"github.com/pitskod/expense-tracker/internal/logging"
	"github.com/pitskod/expense-tracker/internal/repository/memory"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
	"github.com/pitskod/expense-tracker/internal/repository/postgres"
	"github.com/pitskod/expense-tracker/internal/scheduler"
	"github.com/pitskod/expense-tracker/internal/service"
	httpx "github.com/pitskod/expense-tracker/internal/transport/http"
	"github.com/pitskod/expense-tracker/internal/transport/mail"
	"github.com/pitskod/expense-tracker/internal/util"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Config  config.Config
	Logger  *log.Logger
	Auth    *service.AuthService
	Sweeper *service.Sweeper

	store     ports.Store
	db        *sqlx.DB
	jwt       *util.JWTManager
	logCloser io.Closer
}

// New builds the application from cfg. Close releases what it opened.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	out, logCloser, err := logging.Output(cfg.LogstashTCPAddr)
	if err != nil {
		return nil, fmt.Errorf("log output: %w", err)
	}
	logger := logging.New("expense-tracker", cfg.LogLevel, out)

	a := &App{Config: cfg, Logger: logger, logCloser: logCloser}

	switch cfg.StorageBackend {
	case "memory":
		logger.Warnf("using in-memory storage, data is lost on restart")
		a.store = memory.NewStore()
	default:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = logCloser.Close()
			return nil, err
		}
		a.db = db
		a.store = postgres.NewStore(db)
	}

	a.jwt = util.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	hasher := util.NewPasswordHasher(cfg.HashConcurrency, util.DefaultArgon2Params)
	tokens := service.NewRefreshTokenService(a.store, a.jwt, cfg.RefreshTokenTTL)
	resets := service.NewResetCodeService(a.store, cfg.ResetCodeTTL, cfg.ResetCodeLength, cfg.FrontendBaseURL)

	var sender service.PasswordResetSender
	if m := mail.NewPasswordResetMailer(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		Timeout:  cfg.SMTPTimeout,
		CodeTTL:  cfg.ResetCodeTTL,
	}); m != nil {
		sender = m
	} else {
		logger.Warnf("SMTP not configured, password reset emails cannot be sent")
	}

	a.Auth = service.NewAuthService(a.store, hasher, tokens, resets, sender, logger)
	a.Sweeper = service.NewSweeper(resets, tokens, cfg.SweepBatchSize, logger)
	return a, nil
}

// Migrate applies pending database migrations. It is a no-op for the
// in-memory store.
func (a *App) Migrate(ctx context.Context) error {
	if a.db == nil {
		a.Logger.Infof("migrate: nothing to do for %s storage", a.Config.StorageBackend)
		return nil
	}
	if err := postgres.Migrate(ctx, a.db.DB); err != nil {
		return err
	}
	a.Logger.Infof("migrate: database is up to date")
	return nil
}

// Router builds the HTTP handler with every route mounted.
func (a *App) Router() (*echo.Echo, error) {
	e := httpx.NewRouter(httpx.RouterConfig{AllowOrigins: a.Config.AllowOrigins, Logger: a.Logger})
	e.Use(httpx.AuthGateway(a.jwt, httpx.GatewayConfig{
		ProtectedPrefixes: a.Config.AuthProtectedPrefixes,
		ExcludedPrefixes:  a.Config.AuthExcludedPrefixes,
	}))

	cookies := httpx.CookieConfig{Secure: a.Config.CookieSecure, MaxAge: a.Config.RefreshTokenTTL}
	httpx.RegisterAuth(e, a.Auth, cookies, httpx.RateLimit(a.Config.RateLimitPerSecond, a.Config.RateLimitTrustProxy))
	httpx.RegisterUsers(e, a.Auth)
	if err := httpx.RegisterSwagger(e, docs.SwaggerYAML); err != nil {
		return nil, err
	}
	return e, nil
}

// Serve runs the HTTP server and the sweep scheduler until ctx is done,
// then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.MigrateOnStart {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	e, err := a.Router()
	if err != nil {
		return err
	}
	sched, err := scheduler.New(a.Config.SweepSchedule, a.Sweeper, a.Logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Infof("listening on :%s", a.Config.Port)
		if err := e.Start(":" + a.Config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Logger.Infof("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Sweep runs one cleanup pass.
func (a *App) Sweep(ctx context.Context) (service.SweepResult, error) {
	return a.Sweeper.Run(ctx)
}

func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
