package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nomad06/brain-defender/internal/guard/common/clock"
	"github.com/Nomad06/brain-defender/internal/guard/common/log"
	"github.com/Nomad06/brain-defender/internal/guard/config"
	"github.com/Nomad06/brain-defender/internal/guard/domain"
	"github.com/Nomad06/brain-defender/internal/guard/gateways/filterengine"
	"github.com/Nomad06/brain-defender/internal/guard/gateways/httpapi"
	"github.com/Nomad06/brain-defender/internal/guard/gateways/notify"
	"github.com/Nomad06/brain-defender/internal/guard/repos/migrate"
	"github.com/Nomad06/brain-defender/internal/guard/repos/store"
	"github.com/Nomad06/brain-defender/internal/guard/services/engine"
)

const (
	version = "0.1.0-dev"
	appName = "braindefd"

	notifierTabCapacity    = 512
	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the guard daemon.
type Application struct {
	config *config.AppConfig
	store  *store.Store
	engine *engine.Engine
	ticker *engine.Ticker
	server *http.Server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.LogLevel,
		"port":      cfg.Port,
		"db_path":   cfg.DBPath,
		"max_rules": cfg.MaxRules,
	}, "Starting braindefd")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Daemon failed")
	}

	log.Info(nil, "braindefd stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	st, err := store.Open(cfg.DBPath, int(cfg.MaxListBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	migrator := migrate.New(migrate.Options{Store: st, Clock: clk, Logger: logger})
	if err := migrator.Run(); err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			log.Info(nil, "Migration running in another context, continuing")
		} else {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	ruleEngine, err := filterengine.NewBolt(st.DB(), int(cfg.MaxRules))
	if err != nil {
		return nil, fmt.Errorf("failed to create filter engine: %w", err)
	}

	notifier, err := notify.New(notifierTabCapacity, time.Duration(cfg.NotifyWindowSec)*time.Second, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	eng := engine.New(engine.Options{
		Sites:      st,
		Stats:      st,
		Overlay:    st,
		Diag:       st,
		RuleEngine: ruleEngine,
		Notifier:   notifier,
		Clock:      clk,
		Logger:     logger,
		LandingURL: cfg.LandingURL,
	})

	// Storage-change trigger: every site/whitelist/session write funnels
	// into the coordinator. The single-flight gate collapses bursts.
	st.SetOnChange(func() {
		go func() {
			if err := eng.Rebuild(context.Background()); err != nil {
				log.Warn(map[string]any{"error": err}, "Storage-triggered rebuild failed")
			}
		}()
	})

	ticker := engine.NewTicker(time.Duration(cfg.RebuildIntervalSec)*time.Second, eng.Rebuild, logger)

	api := httpapi.New(eng, st, clk, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.Router(),
	}

	return &Application{
		config: cfg,
		store:  st,
		engine: eng,
		ticker: ticker,
		server: server,
	}, nil
}

// Run reconciles boot state, starts the trigger sources, and blocks until
// the context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if err := app.engine.Reconcile(ctx); err != nil {
		// A failed first rebuild is persisted diagnostics, not fatal; the
		// ticker retries every interval.
		log.Warn(map[string]any{"error": err}, "Boot reconciliation failed")
	}

	app.ticker.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	log.Info(map[string]any{"address": app.server.Addr}, "Control API started")

	select {
	case err := <-errChan:
		return fmt.Errorf("control API failed: %w", err)
	case <-ctx.Done():
	}

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during API shutdown")
	}
	app.ticker.Stop()
	if err := app.store.Close(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error closing store")
	}

	log.Info(nil, "Graceful shutdown completed")
	return nil
}
