package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hostscout/api/internal/config"
	"github.com/hostscout/api/internal/infra/http"
	"github.com/hostscout/api/internal/infra/jobs"
	"github.com/hostscout/api/internal/infra/postgres"
	"github.com/hostscout/api/internal/infra/redis"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ==========================================================================
	// Configuration & Logging
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().Error("failed to load config", "error", err)
		return 1
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.Info("starting hostscout api",
		"env", cfg.App.Env,
		"addr", cfg.Server.Addr(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	// ==========================================================================
	// Repositories
	// ==========================================================================
	repos := NewRepositories(db)
	log.Info("repositories initialized")

	// ==========================================================================
	// Job Queue & Signals
	// ==========================================================================
	jobClient := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	defer closeWithLog(jobClient, "job client", log)

	signals := redis.NewSignalNotifier(redisClient, log)

	// ==========================================================================
	// Services
	// ==========================================================================
	services, err := NewServices(&ServiceDeps{
		Config:    cfg,
		Log:       log,
		Repos:     repos,
		JobClient: jobClient,
		Signals:   signals,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}
	log.Info("services initialized")

	// ==========================================================================
	// Handlers & HTTP Server
	// ==========================================================================
	handlers := NewHandlers(&HandlerDeps{
		Config:    cfg,
		Log:       log,
		Validator: validator.New(),
		DB:        db,
		Redis:     redisClient,
		Services:  services,
	})

	server := http.NewServer(cfg, handlers, log)

	// ==========================================================================
	// Workers
	// ==========================================================================
	workers, err := NewWorkers(&WorkerDeps{
		Config:   cfg,
		Log:      log,
		Repos:    repos,
		Services: services,
		Signals:  signals,
	})
	if err != nil {
		log.Error("failed to initialize workers", "error", err)
		return 1
	}

	if err := workers.Start(ctx, log); err != nil {
		log.Error("failed to start workers", "error", err)
		return 1
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop the signal listener first, then drain running scans.
	cancel()
	workers.Stop(log)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
