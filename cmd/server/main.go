package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"sangha-backend/internal/config"
	"sangha-backend/internal/database"
	"sangha-backend/internal/handlers"
	"sangha-backend/internal/presence"
	"sangha-backend/internal/repository"
	"sangha-backend/internal/router"
	"sangha-backend/internal/services"
	"sangha-backend/internal/websocket"
	"sangha-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	setupLogging(cfg)
	logrus.WithField("env", cfg.Env).Info("starting sangha backend")

	ctx := context.Background()

	// ──── Step 2: Practitioner Directory ────
	var store services.PractitionerStore
	var settingsStore services.SettingsStore
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logrus.WithError(err).Fatal("postgres connection failed")
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			logrus.WithError(err).Fatal("database migration failed")
		}
		store = repository.NewPractitionerRepo(pool)
		settingsStore = repository.NewSettingsRepo(pool)
		logrus.Info("postgres connected, migrations applied")
	} else {
		store = repository.NewMemoryPractitionerRepo()
		settingsStore = repository.NewMemorySettingsRepo()
		logrus.Warn("DATABASE_URL not set, practitioners are kept in memory")
	}

	// ──── Step 3: Spirit Bank Ledger Writer ────
	var ledger presence.LedgerWriter
	var workerPool *worker.Pool
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Fatal("redis connection failed")
		}
		defer redisClient.Close()

		ledger = services.NewSpiritBankQueue(redisClient)
		workerPool = worker.NewPool(redisClient, store, cfg.SpiritBankWorkers)
		workerPool.Start()
		logrus.WithField("workers", cfg.SpiritBankWorkers).Info("spirit bank worker pool started")
	} else {
		ledger = services.NewDirectLedgerWriter(store)
		logrus.Info("REDIS_URL not set, ledger writes applied inline")
	}

	// ──── Step 4: Presence ────
	registry := presence.NewRegistry(store, ledger, cfg.VirtualSessionCost, nil)
	wsHub := websocket.NewHub(presence.NewProtocol(registry), cfg.PresenceIdleTimeout)

	// ──── Step 5: Services & Handlers ────
	practitionerService := services.NewPractitionerService(store, services.Economics{
		ContributionPercent: cfg.CircleContributionPercent,
		CreationMinimum:     cfg.CircleCreationMinimum,
		VirtualSessionCost:  cfg.VirtualSessionCost,
	}, nil)

	r, stopLimiter := router.New(
		handlers.NewPractitionerHandler(practitionerService),
		handlers.NewCircleHandler(practitionerService),
		handlers.NewPresenceHandler(registry),
		handlers.NewSettingsHandler(services.NewSettingsService(settingsStore)),
		wsHub,
		cfg.WriteRateLimitPerMin,
		cfg.FrontendURL,
	)

	// ──── Step 6: Start HTTP Server ────
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logrus.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("http shutdown incomplete")
		}

		wsHub.Shutdown()
		registry.Wait()
		if workerPool != nil {
			workerPool.Stop()
		}
		stopLimiter()
	}()

	logrus.WithFields(logrus.Fields{
		"api": fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port),
		"ws":  fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port),
	}).Info("sangha backend ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logrus.WithError(err).Fatal("server error")
	}
	<-shutdownDone
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
