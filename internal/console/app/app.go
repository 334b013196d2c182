package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/backoffice/internal/console/cachepage"
	"github.com/aussiebroadwan/backoffice/internal/console/redisinspect"
	"github.com/aussiebroadwan/backoffice/internal/console/session"
	"github.com/aussiebroadwan/backoffice/internal/console/store"
	"github.com/aussiebroadwan/backoffice/internal/console/store/drivers/memory"
	"github.com/aussiebroadwan/backoffice/internal/console/store/drivers/sqlite"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the console's wired dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger
	logOut io.Closer

	db        store.Store
	client    *adminsdk.SDKClient
	session   *session.Controller
	inspector *redisinspect.Inspector
	cache     cachepage.Service
}

// New wires the console and restores any persisted session.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{cfg: cfg}

	if err := app.initLogger(); err != nil {
		return nil, err
	}
	if err := app.initStore(); err != nil {
		app.closeLog()
		return nil, err
	}
	if err := app.initServices(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *Application) Config() Config                  { return app.cfg }
func (app *Application) Logger() *slog.Logger            { return app.logger }
func (app *Application) Client() *adminsdk.SDKClient     { return app.client }
func (app *Application) Session() *session.Controller    { return app.session }
func (app *Application) CacheService() cachepage.Service { return app.cache }

// DirectCache reports whether cache operations go straight to Redis.
func (app *Application) DirectCache() bool { return app.inspector != nil }

// Close waits for background session work and releases resources.
func (app *Application) Close() error {
	if app.session != nil {
		app.session.Wait()
	}

	var errs []error
	if app.inspector != nil {
		if err := app.inspector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	app.closeLog()
	return errors.Join(errs...)
}

func (app *Application) initLogger() error {
	var out io.Writer = os.Stderr
	if app.cfg.LogFile != "" && app.cfg.LogFile != "-" {
		if err := os.MkdirAll(filepath.Dir(app.cfg.LogFile), 0o700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(app.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = f
		app.logOut = f
	}

	app.logger = slogx.New(slogx.Config{
		Service: "backoffice",
		Version: BuildVersion,
		Env:     app.cfg.Env,
		Level:   app.cfg.LogLevel,
		Format:  app.cfg.LogFormat,
		Output:  out,
	})
	return nil
}

func (app *Application) closeLog() {
	if app.logOut != nil {
		_ = app.logOut.Close()
		app.logOut = nil
	}
}

// initStore opens the session store and applies migrations.
func (app *Application) initStore() error {
	switch app.cfg.StoreDriver {
	case "memory":
		app.db = memory.NewStore()
	default:
		if err := os.MkdirAll(filepath.Dir(app.cfg.StateFile), 0o700); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.StateFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		app.db = db
	}

	if err := app.db.ApplyMigrations(); err != nil {
		_ = app.db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply state migrations: %w", err)
	}

	app.logger.Debug("state store ready", "driver", app.cfg.StoreDriver)
	return nil
}

func (app *Application) initServices(ctx context.Context) error {
	app.client = adminsdk.NewSDKClient(app.cfg.APIURL)
	app.client.HTTPClient.Timeout = app.cfg.RequestTimeout
	app.client.HTTPClient.Transport = &slogx.Transport{Base: http.DefaultTransport, Logger: app.logger}

	app.session = session.NewController(app.client, session.NewStore(app.db), app.logger)
	app.client.Tokens = app.session
	app.client.OnUnauthorized = app.session.HandleUnauthorized

	if err := app.session.Restore(ctx); err != nil {
		return err
	}

	if app.cfg.RedisURL != "" {
		insp, err := redisinspect.Open(app.cfg.RedisURL, redisinspect.WithLogger(app.logger))
		if err != nil {
			return err
		}
		app.inspector = insp
		app.cache = insp
		app.logger.Info("cache inspection via redis")
	} else {
		app.cache = cachepage.NewRESTService(app.client)
	}
	return nil
}
