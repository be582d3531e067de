package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/api"
	"github.com/staffcast/staffcast/internal/app/accuracy"
	"github.com/staffcast/staffcast/internal/app/alerting"
	"github.com/staffcast/staffcast/internal/app/calendar"
	"github.com/staffcast/staffcast/internal/app/dashboard"
	"github.com/staffcast/staffcast/internal/app/jobs"
	"github.com/staffcast/staffcast/internal/app/prediction"
	"github.com/staffcast/staffcast/internal/app/training"
	"github.com/staffcast/staffcast/internal/health"
	"github.com/staffcast/staffcast/internal/infra/cache"
	"github.com/staffcast/staffcast/internal/infra/registry"
	"github.com/staffcast/staffcast/internal/infra/sqlite"
)

// Daemon is the core staffcast runtime. It wires together all services.
type Daemon struct {
	Config Config
	Log    zerolog.Logger

	// Infrastructure
	DB        *sqlite.DB
	Artifacts *registry.Store
	Cache     *cache.Cache

	// Services
	Calendar  *calendar.Registry
	Trainer   *training.Trainer
	Predictor *prediction.Predictor
	Tracker   *accuracy.Tracker
	Alerts    *alerting.Engine
	Jobs      *jobs.Runner
	Dashboard *dashboard.Service
	Health    *health.Checker
	Server    *api.Server

	cancel context.CancelFunc
}

// New loads the config file and creates a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := NewLogger(cfg.Logging, os.Stderr)

	// Open SQLite
	db, err := sqlite.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Artifact store
	artifacts := registry.NewStore(cfg.Artifacts.Dir)
	if err := artifacts.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	// Optional Redis. An unreachable server degrades to no caching.
	rc, err := cache.New(context.Background(), cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, continuing without cache")
		rc = cache.Disabled()
	}

	d := &Daemon{
		Config:    cfg,
		Log:       logger,
		DB:        db,
		Artifacts: artifacts,
		Cache:     rc,
	}

	trainCfg := cfg.TrainingConfig()
	d.Calendar = calendar.NewRegistry(db, logger)
	d.Trainer = training.NewTrainer(db, artifacts, d.Calendar, trainCfg, logger)
	d.Predictor = prediction.NewPredictor(db, artifacts, d.Calendar, rc, cfg.PredictionConfig(), logger)
	d.Tracker = accuracy.NewTracker(db, cfg.AccuracyConfig(), logger)
	d.Alerts = alerting.NewEngine(db, rc, cfg.AlertingConfig(), logger)
	d.Jobs = jobs.NewRunner(d.Trainer, d.Predictor, d.Tracker, d.Alerts, db, cfg.JobsConfig(), logger)
	d.Dashboard = dashboard.NewService(d.Predictor, d.Tracker, d.Alerts)
	d.Health = health.NewChecker(db, artifacts, rc, logger)

	// Initialize API server
	srv := api.NewServer(api.Services{
		Trainer:      d.Trainer,
		Predictor:    d.Predictor,
		Tracker:      d.Tracker,
		Alerts:       d.Alerts,
		Calendar:     d.Calendar,
		Observations: db,
		Dashboard:    d.Dashboard,
		HolidaySeed:  calendar.Argentina2026,
	}, logger)
	srv.SetHealth(d.Health)
	srv.SetTrainTimeout(trainCfg.Timeout + time.Minute)

	// Enable Prometheus /metrics if configured
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: d.TrainingWriteTimeout(),
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			d.Log.Info().Msg("shutdown signal received")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	ev := d.Log.Info().Str("addr", "http://"+addr).Bool("redis", d.Cache.Available())
	if d.Config.Telemetry.Prometheus {
		ev = ev.Str("metrics", "http://"+addr+"/metrics")
	}
	ev.Msg("staffcast serving")

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// TrainingWriteTimeout is the HTTP write deadline; a synchronous /train
// call must be able to finish within it.
func (d *Daemon) TrainingWriteTimeout() time.Duration {
	return d.Config.TrainingConfig().Timeout + 2*time.Minute
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Cache != nil {
		_ = d.Cache.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
