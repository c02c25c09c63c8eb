package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"phiguard/baseline"
	"phiguard/config"
	"phiguard/detect"
	"phiguard/notify"
	"phiguard/report"
	"phiguard/storage"
)

// App represents the PHIGuard application with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Store     storage.KVStore
	Rules     *detect.RuleStore
	Baselines *baseline.Provider
	Refresher *baseline.Refresher
	Reporter  *report.Reporter
	Engine    *detect.Engine

	metricsServer *http.Server
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{}

	// A bootstrap logger carries us until the configured level is known.
	_, bootSugar, err := InitLogger("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := InitConfig(bootSugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	logger, sugar, err := InitLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("PHIGuard anomaly detection starting...")

	store, err := InitStore(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Store = store

	app.Rules = detect.NewRuleStore(store, sugar)
	app.Baselines = baseline.NewProvider(store, sugar)
	app.Refresher = baseline.NewRefresher(app.Baselines, baseline.NewStaticHistorySource(), cfg.Baseline.RefreshInterval, sugar)

	notifier, err := notify.NewNotifier(notify.Config{
		Enabled:        cfg.Notify.Enabled,
		Type:           notify.NotificationType(cfg.Notify.Type),
		WebhookURL:     cfg.Notify.WebhookURL,
		WebhookMethod:  cfg.Notify.WebhookMethod,
		WebhookHeaders: cfg.Notify.WebhookHeaders,
		MinSeverity:    cfg.Notify.MinSeverity,
		RatePerMinute:  cfg.Notify.RatePerMinute,
	}, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}
	app.Reporter = report.NewReporter(store, notifier, cfg.Reporting.IndexCap, sugar)

	window := detect.NewEventWindow(cfg.Engine.WindowSize)
	cooldown := detect.NewCooldownTracker(cfg.Engine.CooldownEntries, detect.DefaultCooldownRetention)
	app.Engine = detect.NewEngine(app.Rules, window, app.Baselines, cooldown, app.Reporter, sugar,
		detect.WithSystemComponent(cfg.Engine.SystemComponent))

	return app, nil
}

// Start loads rules, starts the baseline refresher and exposes metrics.
func (a *App) Start(ctx context.Context) error {
	if err := a.Rules.Load(ctx); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	a.Sugar.Infow("Detection rules loaded", "count", len(a.Rules.ActiveRules()))

	if path := a.Config.Engine.RulesFile; path != "" {
		count, err := detect.ImportRules(ctx, a.Rules, path, a.Sugar)
		if err != nil {
			a.Sugar.Errorw("Failed to import rules file", "path", path, "error", err)
		} else {
			a.Sugar.Infow("Imported rules from file", "path", path, "count", count)
		}
	}

	a.Refresher.Start(ctx)
	a.Sugar.Info("Baseline refresher started")

	if a.Config.Metrics.Enabled {
		a.startMetricsServer()
	}

	return nil
}

// startMetricsServer exposes the Prometheus registry over HTTP.
func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.Sugar.Infow("Metrics endpoint listening", "port", a.Config.Metrics.Port)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Sugar.Errorw("Metrics server failed", "error", err)
		}
	}()
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	if a.Refresher != nil {
		a.Refresher.Stop()
		a.Sugar.Info("Baseline refresher stopped")
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop metrics server", "error", err)
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Sugar.Errorw("Failed to close store", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}
