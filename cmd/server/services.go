package main

import (
	"github.com/hostscout/api/internal/app"
	"github.com/hostscout/api/internal/config"
	"github.com/hostscout/api/internal/infra/jobs"
	"github.com/hostscout/api/internal/infra/redis"
	"github.com/hostscout/api/pkg/crypto"
	"github.com/hostscout/api/pkg/logger"
)

// Services holds all application service instances.
type Services struct {
	Credential *app.CredentialService
	Source     *app.SourceService
	ScanJob    *app.ScanJobService
	Report     *app.ReportService

	Encryptor crypto.Encryptor
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config    *config.Config
	Log       *logger.Logger
	Repos     *Repositories
	JobClient *jobs.Client
	Signals   *redis.SignalNotifier
}

// NewServices initializes all application services.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	log := deps.Log
	repos := deps.Repos

	encryptor, err := newEncryptor(cfg, log)
	if err != nil {
		return nil, err
	}

	return &Services{
		Credential: app.NewCredentialService(repos.Credential, repos.Source, encryptor, log),
		Source:     app.NewSourceService(repos.Source, repos.Credential, log),
		ScanJob:    app.NewScanJobService(repos.ScanJob, repos.Source, deps.JobClient, deps.Signals, log),
		Report:     app.NewReportService(repos.Report, repos.ScanJob, deps.JobClient, log),
		Encryptor:  encryptor,
	}, nil
}

// newEncryptor builds the secret encryptor from the configured vault
// secret. Outside production an empty secret falls back to plaintext
// storage so local setups work without key material.
func newEncryptor(cfg *config.Config, log *logger.Logger) (crypto.Encryptor, error) {
	if cfg.Encryption.VaultSecret == "" {
		log.Warn("no vault secret configured, credential secrets stored in plaintext")
		return crypto.NewNoOpEncryptor(), nil
	}
	return crypto.NewVault(cfg.Encryption.VaultSecret)
}
