package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hostscout/api/internal/config"
	"github.com/hostscout/api/internal/fingerprint"
	"github.com/hostscout/api/internal/infra/jobs"
	"github.com/hostscout/api/internal/infra/redis"
	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/internal/scanner/apisource"
	"github.com/hostscout/api/internal/scanner/network"
	"github.com/hostscout/api/internal/scanner/satellite"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
)

// Workers holds the scan worker and the interrupt plumbing behind it.
type Workers struct {
	JobWorker  *jobs.Worker
	Interrupts *scanner.InterruptHub
	Signals    *redis.SignalNotifier
}

// WorkerDeps contains dependencies needed to create workers.
type WorkerDeps struct {
	Config   *config.Config
	Log      *logger.Logger
	Repos    *Repositories
	Services *Services
	Signals  *redis.SignalNotifier
}

// NewWorkers builds the scan runner registry, the scan manager and the
// asynq worker that drives it.
func NewWorkers(deps *WorkerDeps) (*Workers, error) {
	cfg := deps.Config
	log := deps.Log
	repos := deps.Repos

	registry, err := newRunnerRegistry(cfg, repos, log)
	if err != nil {
		return nil, err
	}

	interrupts := scanner.NewInterruptHub()
	manager := scanner.NewManager(
		repos.ScanJob,
		repos.Source,
		repos.Credential,
		repos.Store(),
		registry,
		deps.Services.Encryptor,
		interrupts,
		log,
	)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
	}, manager, log)

	return &Workers{
		JobWorker:  worker,
		Interrupts: interrupts,
		Signals:    deps.Signals,
	}, nil
}

// Start launches the scan worker and the pause/cancel signal listener.
func (w *Workers) Start(ctx context.Context, log *logger.Logger) error {
	if err := w.Signals.StartListener(ctx, w.Interrupts); err != nil {
		return fmt.Errorf("start signal listener: %w", err)
	}
	if err := w.JobWorker.Start(); err != nil {
		return fmt.Errorf("start job worker: %w", err)
	}
	log.Info("scan worker started")
	return nil
}

// Stop stops all workers gracefully.
func (w *Workers) Stop(log *logger.Logger) {
	w.JobWorker.Stop()
	log.Info("scan worker stopped")
}

// newRunnerRegistry binds a runner factory to every supported
// (source type, scan phase) pair plus the fingerprint phase.
func newRunnerRegistry(cfg *config.Config, repos *Repositories, log *logger.Logger) (*scanner.Registry, error) {
	registry := scanner.NewRegistry()

	keyDir := cfg.Scan.KeyDir
	if keyDir == "" {
		dir, err := os.MkdirTemp("", "hostscout-keys-")
		if err != nil {
			return nil, fmt.Errorf("create ssh key dir: %w", err)
		}
		keyDir = dir
	}

	sshBackend := network.NewSSHBackend(cfg.Scan.HTTPTimeout, log)
	registry.Register(source.TypeNetwork, scan.TypeConnect, network.NewConnectFactory(sshBackend, keyDir, log))
	registry.Register(source.TypeNetwork, scan.TypeInspect, network.NewInspectFactory(sshBackend, keyDir, log))

	satOpts := satellite.Options{
		HTTPTimeout:       cfg.Scan.HTTPTimeout,
		RequestsPerSecond: cfg.Scan.SatelliteRequestsPerSecond,
	}
	registry.Register(source.TypeSatellite, scan.TypeConnect, satellite.NewConnectFactory(satOpts, log))
	registry.Register(source.TypeSatellite, scan.TypeInspect, satellite.NewInspectFactory(satOpts, log))

	collectors := map[source.Type]apisource.CollectorFactory{
		source.TypeVCenter:   apisource.NewVCenterCollector(cfg.Scan.HTTPTimeout),
		source.TypeOpenShift: apisource.NewOpenShiftCollector(cfg.Scan.HTTPTimeout),
		source.TypeAnsible:   apisource.NewAnsibleCollector(cfg.Scan.HTTPTimeout),
		source.TypeRHACS:     apisource.NewRHACSCollector(cfg.Scan.HTTPTimeout),
	}
	for srcType, collector := range collectors {
		registry.Register(srcType, scan.TypeConnect, apisource.NewConnectFactory(collector, log))
		registry.Register(srcType, scan.TypeInspect, apisource.NewInspectFactory(collector, log))
	}

	engine := fingerprint.NewEngine(log)
	registry.RegisterFingerprint(fingerprint.NewFactory(engine, repos.Report, repos.Source, cfg.App.Name, log))

	return registry, nil
}
