// Package app runs the fake backoffice API as a standalone HTTP server.
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

	"github.com/aussiebroadwan/backoffice/internal/fakeapi"
	"github.com/aussiebroadwan/backoffice/pkg/cryptox"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

type Application struct {
	cfg    Config
	logger *slog.Logger

	svc    *fakeapi.Service
	server *http.Server
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "backoffice-fakeapi",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.Pepper != "" {
		cryptox.SetPepper(cfg.Pepper)
	}

	if err := app.initService(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

func (app *Application) initService() error {
	app.svc = fakeapi.NewService(fakeapi.Options{
		AccessTTL:      app.cfg.AccessTTL,
		ResendInterval: app.cfg.ResendInterval,
		Logger:         app.logger,
	})

	seed := DefaultSeed()
	if app.cfg.SeedFile != "" {
		loaded, err := LoadSeedFile(app.cfg.SeedFile)
		if err != nil {
			return err
		}
		seed = loaded
	}
	if err := seed.Apply(app.svc); err != nil {
		return err
	}

	app.logger.Info("fake backend seeded", "users", len(seed.Users), "cache_keys", len(seed.Cache))
	return nil
}

func (app *Application) initHTTP() {
	router := fakeapi.NewRouter(app.svc, app.cfg.APIPrefix, BuildVersion, fakeapi.DefaultLimits(), app.logger)
	router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler exposes the routed API, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.server.Handler
}

// Service exposes the backing state.
func (app *Application) Service() *fakeapi.Service {
	return app.svc
}

// Run starts the server and blocks until it fails or a shutdown signal
// arrives.
func (app *Application) Run() error {
	app.logger.Info("fake backend starting", "port", app.cfg.Port, "prefix", app.cfg.APIPrefix, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

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

func (app *Application) Shutdown() error {
	app.logger.Info("shutting down fake backend...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
			return err
		}
	}

	app.logger.Info("fake backend stopped")
	return nil
}
