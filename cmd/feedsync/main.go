package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedsync/internal/config"
	"feedsync/internal/engine"
	"feedsync/internal/metrics"
	"feedsync/internal/publisher"
	"feedsync/internal/realtime"
	"feedsync/internal/scheduler"
	"feedsync/internal/service"
	"feedsync/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// changeFeed is what main needs from either feed driver.
type changeFeed interface {
	realtime.ChangeFeed
	Close() error
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	viewerID := flag.String("viewer", "", "viewer whose session to run (overrides viewer_id)")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *viewerID != "" {
		cfg.ViewerID = *viewerID
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var notifier engine.Notifier = engine.NewLogNotifier(logger)
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(cfg.RabbitMQ, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		notifier = rabbitMQ
	} else {
		logger.Warn("rabbitmq url not set, notices go to the log only")
	}

	txManager := postgres.NewTransactionManager(db)
	store := postgres.NewStore(db, txManager)
	contentStore := postgres.NewContentStore(db)
	counterStore := postgres.NewCounterStore(db)

	eng := engine.New(store, notifier, cfg.Mutation, logger, m)
	reconciler := service.NewReconciler(eng, counterStore, logger, m)
	eng.SetResync(func(ctx context.Context) {
		if err := reconciler.Reconcile(ctx); err != nil {
			logger.Warn("resync failed", "error", err)
		}
	})

	var feed changeFeed
	switch cfg.Realtime.Driver {
	case "postgres":
		feed = realtime.NewPostgresFeed(cfg.Database.DSN(), cfg.Realtime.Backoff, logger)
	default:
		feed = realtime.NewWebsocketFeed(cfg.Realtime, logger)
	}
	defer feed.Close()

	subscriber := realtime.NewSubscriber(
		feed,
		realtime.NewNormalizer(),
		eng,
		reconciler,
		cfg.Realtime.Backoff,
		logger,
		m,
	)
	session := service.NewSession(eng, subscriber, cfg.Realtime.Collections, logger)
	feedService := service.NewFeedService(contentStore, counterStore, eng, logger, m, cfg.Feed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	if err := session.Start(ctx); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	slots, err := feedService.Refresh(ctx, cfg.ViewerID)
	if err != nil {
		logger.Error("failed to build feed", "error", err)
	} else {
		logger.Info("feed ready", "viewer_id", cfg.ViewerID, "slots", len(slots))
	}

	logger.Info("starting feedsync",
		"driver", cfg.Realtime.Driver,
		"collections", cfg.Realtime.Collections,
		"reconcile_interval", cfg.Reconcile.Interval,
		"metrics_addr", cfg.Metrics.Addr,
	)

	sched := scheduler.NewScheduler(reconciler, cfg.Reconcile.Interval, logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := session.Close(shutdownCtx); err != nil {
		logger.Warn("session close", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
	logger.Info("feedsync stopped")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
